package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel carries unlock notifications for the display layer.
const DefaultChannel = "progress:unlocks"

// Publisher sends JSON messages to a pub/sub channel.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher creates a Publisher. An empty channel uses DefaultChannel.
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Channel returns the channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish marshals message and publishes it.
func (p *Publisher) Publish(ctx context.Context, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("redis: marshal message: %w", err)
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Subscribe opens a subscription to the channel.
func (p *Publisher) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}
