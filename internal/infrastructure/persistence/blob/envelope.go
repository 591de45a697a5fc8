// Package blob stores typed state as self-checking JSON envelopes on top of
// a kv.Store. An envelope that fails its schema or checksum check is reported
// as corrupt, never as an error, so callers can fall back to defaults.
package blob

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrSchemaMismatch is returned when the stored schema version differs.
	ErrSchemaMismatch = errors.New("blob: schema version mismatch")

	// ErrChecksumMismatch is returned when the payload checksum is wrong.
	ErrChecksumMismatch = errors.New("blob: checksum mismatch")

	// ErrMalformed is returned when the envelope or payload cannot be decoded.
	ErrMalformed = errors.New("blob: malformed envelope")
)

// ══════════════════════════════════════════════════════════════════════════════
// ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Envelope is the stored representation of one blob.
type Envelope struct {
	Schema   int             `json:"schema"`
	Checksum string          `json:"checksum"`
	SavedAt  time.Time       `json:"saved_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Checksum returns the hex BLAKE2b-256 digest of payload.
func Checksum(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Encode marshals v into an envelope.
func Encode(schema int, v any, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("blob: marshal payload: %w", err)
	}
	return json.Marshal(Envelope{
		Schema:   schema,
		Checksum: Checksum(payload),
		SavedAt:  at.UTC(),
		Payload:  payload,
	})
}

// Decode verifies the envelope and unmarshals its payload into dest.
func Decode(data []byte, schema int, dest any) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Schema != schema {
		return fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, env.Schema, schema)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	if Checksum(env.Payload) != env.Checksum {
		return ErrChecksumMismatch
	}
	if err := json.Unmarshal(env.Payload, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
