// Package badgerstore is the default LocalStore, an embedded BadgerDB.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/repository"
)

type Config struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// InMemoryConfig is meant for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type Store struct {
	db  *badger.DB
	log *logger.Logger
}

var _ repository.LocalStore = (*Store)(nil)

// badgerLogger routes BadgerDB's own messages through our logger.
type badgerLogger struct {
	log *logger.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.log.Error(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warn(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.log.Debug(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debug(format, args...) }

func Open(cfg Config) (*Store, error) {
	log := logger.Default().WithPrefix("badger")

	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		log.Error("failed to open badger: %v", err)
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	log.Info("badger ready: path=%s in_memory=%t", cfg.Path, cfg.InMemory)
	return &Store{db: db, log: log}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	log := logger.FromContext(ctx).WithPrefix("local_store")

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		log.Debug("key not found: %s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to read key %s: %v", key, err)
		return nil, err
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	log := logger.FromContext(ctx).WithPrefix("local_store")
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		log.Error("failed to write key %s: %v", key, err)
		return err
	}
	log.Debug("wrote key: %s (%d bytes)", key, len(value))
	return nil
}

// RunGC runs one value log garbage collection pass. It reports false when
// there was nothing worth rewriting.
func (s *Store) RunGC(ratio float64) (bool, error) {
	err := s.db.RunValueLogGC(ratio)
	switch {
	case err == nil:
		s.log.Debug("value log GC reclaimed space")
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) Close() error {
	s.log.Info("closing badger")
	return s.db.Close()
}
