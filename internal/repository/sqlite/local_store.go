package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/repository"
)

type localStore struct {
	db *sql.DB
}

// NewLocalStore creates a LocalStore backed by the kv_store table.
func NewLocalStore(db *sql.DB) repository.LocalStore {
	return &localStore{db: db}
}

func (s *localStore) Get(ctx context.Context, key string) ([]byte, error) {
	log := logger.FromContext(ctx).WithPrefix("local_store")
	log.Debug("reading key: %s", key)

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("key not found: %s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to read key %s: %v", key, err)
		return nil, err
	}
	return value, nil
}

func (s *localStore) Put(ctx context.Context, key string, value []byte) error {
	log := logger.FromContext(ctx).WithPrefix("local_store")
	log.Debug("writing key: %s (%d bytes)", key, len(value))

	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv_store (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, value, time.Now().UTC())
	if err != nil {
		log.Error("failed to write key %s: %v", key, err)
	}
	return err
}
