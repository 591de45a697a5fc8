// Package progress implements the domain repositories on top of blob
// envelopes. Each subsystem owns one blob per user, see kv.UserKey.
package progress

import (
	"context"

	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
)

// Schema versions of the stored payloads. Bumping a version makes older
// blobs read as corrupt, which the services treat as absent.
const (
	SchemaAchievements  = 1
	SchemaStreak        = 1
	SchemaStreakHistory = 1
	SchemaChallenges    = 1
	SchemaCosmetics     = 1
	SchemaHealthHistory = 1
	SchemaDirectory     = 1
)

// load decodes key into a fresh T and maps the gateway status onto the
// domain error kinds: absent -> shared.ErrNotFound, corrupt -> shared.ErrCorrupted,
// unavailable -> shared.ErrStorage.
func load[T any](ctx context.Context, gw *blob.Gateway, domain, key string, schema int, validate func(*T) error) (*T, error) {
	v := new(T)
	var check func() error
	if validate != nil {
		check = func() error { return validate(v) }
	}

	status, err := gw.Load(ctx, key, schema, v, check)
	switch status {
	case blob.StatusFound:
		return v, nil
	case blob.StatusAbsent:
		return nil, shared.NotFoundf(domain, "Load", "no stored state at %q", key)
	default:
		return nil, err
	}
}
