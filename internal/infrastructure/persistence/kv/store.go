// Package kv defines the key-value persistence contract the progression
// engine is written against, along with key naming and an in-memory store.
//
// Backends (redis, postgres, s3store) implement Store; everything above
// this layer only sees opaque byte blobs addressed by string keys.
package kv

import (
	"context"
	"errors"
	"strings"
)

// Store is the injected persistence collaborator.
//
// Get reports found=false for a missing key; a non-nil error always means
// the backend could not answer (network, closed pool, and so on).
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// ErrEmptyKey is returned for an empty key.
var ErrEmptyKey = errors.New("kv: key cannot be empty")

// ══════════════════════════════════════════════════════════════════════════════
// KEY NAMING
// ══════════════════════════════════════════════════════════════════════════════

// Subsystem identifies one per-user blob.
type Subsystem string

const (
	SubsystemAchievements  Subsystem = "achievements"
	SubsystemStreak        Subsystem = "streak"
	SubsystemStreakHistory Subsystem = "streak_history"
	SubsystemChallenges    Subsystem = "challenges"
	SubsystemCosmetics     Subsystem = "cosmetics"
	SubsystemHealthHistory Subsystem = "health_history"
)

// UserSubsystems lists every per-user blob, used by a full reset.
var UserSubsystems = []Subsystem{
	SubsystemAchievements,
	SubsystemStreak,
	SubsystemStreakHistory,
	SubsystemChallenges,
	SubsystemCosmetics,
	SubsystemHealthHistory,
}

// KeyPrefix namespaces all progression keys.
const KeyPrefix = "progress:"

// DirectoryKey holds the list of known user ids.
const DirectoryKey = KeyPrefix + "directory"

// UserKey returns progress:{userID}:{subsystem}.
func UserKey(userID string, s Subsystem) string {
	var b strings.Builder
	b.Grow(len(KeyPrefix) + len(userID) + len(s) + 1)
	b.WriteString(KeyPrefix)
	b.WriteString(userID)
	b.WriteByte(':')
	b.WriteString(string(s))
	return b.String()
}
