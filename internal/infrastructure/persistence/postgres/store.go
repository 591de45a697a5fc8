package postgres

import (
	"context"

	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
)

const (
	queryGetBlob    = `SELECT value FROM kv_blobs WHERE key = $1`
	queryUpsertBlob = `
		INSERT INTO kv_blobs (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	queryDeleteBlob = `DELETE FROM kv_blobs WHERE key = $1`
)

// Store implements kv.Store over the kv_blobs table.
type Store struct {
	conn *Connection
}

var _ kv.Store = (*Store)(nil)

// NewStore creates a Store. Run NewMigrator(conn).Migrate first.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// Get reads one blob.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, kv.ErrEmptyKey
	}

	var value []byte
	err := s.conn.QueryRow(ctx, queryGetBlob, key).Scan(&value)
	if err != nil {
		if IsNoRows(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set upserts one blob.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	_, err := s.conn.Exec(ctx, queryUpsertBlob, key, value)
	return err
}

// Remove deletes one blob.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == "" {
		return kv.ErrEmptyKey
	}
	_, err := s.conn.Exec(ctx, queryDeleteBlob, key)
	return err
}
