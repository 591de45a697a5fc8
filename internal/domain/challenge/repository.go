package challenge

import "context"

// Repository хранит недельные вызовы пользователя.
type Repository interface {
	Load(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, userID string, state *State) error
	Delete(ctx context.Context, userID string) error
}
