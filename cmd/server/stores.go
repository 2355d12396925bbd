package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vytor/kotoflash/internal/config"
	"github.com/vytor/kotoflash/internal/connectivity"
	"github.com/vytor/kotoflash/internal/db"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/remote"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/repository/badgerstore"
	"github.com/vytor/kotoflash/internal/repository/sqlite"
)

const deviceIDKey = "device_id"

// localStores holds the progress store and the sync journal. The journal
// always lives in SQLite; progress lives in Badger or SQLite.
type localStores struct {
	store   repository.LocalStore
	journal repository.SyncJournal
	badger  *badgerstore.Store
	db      *db.DB
}

func openLocalStores(cfg config.Config) (*localStores, error) {
	log := logger.Default().WithPrefix("startup")

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	out := &localStores{
		db:      database,
		journal: sqlite.NewSyncJournal(database.DB, cfg.JournalMaxEntries),
	}

	switch cfg.LocalStore {
	case config.LocalStoreBadger:
		store, err := badgerstore.Open(badgerstore.Config{Path: cfg.BadgerPath, SyncWrites: true})
		if err != nil {
			database.Close()
			return nil, err
		}
		out.badger = store
		out.store = store
	default:
		out.store = sqlite.NewLocalStore(database.DB)
	}
	log.Info("local store ready: %s", cfg.LocalStore)
	return out, nil
}

// ready reports whether the progress store answers reads.
func (l *localStores) ready() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := l.store.Get(ctx, repository.ProgressKey); err != nil {
		return err
	}
	return l.db.PingContext(ctx)
}

func (l *localStores) Close() {
	log := logger.Default().WithPrefix("shutdown")
	if l.badger != nil {
		log.Debug("closing badger")
		if err := l.badger.Close(); err != nil {
			log.Error("failed to close badger: %v", err)
		}
	}
	log.Debug("closing database connection")
	if err := l.db.Close(); err != nil {
		log.Error("failed to close database: %v", err)
	}
}

type remoteStores struct {
	store remote.Store
	close func()
}

func openRemoteStore(ctx context.Context, cfg config.Config) (*remoteStores, error) {
	log := logger.Default().WithPrefix("startup")

	switch cfg.RemoteStore {
	case config.RemoteStoreMemory:
		log.Info("remote store: in-process memory")
		return &remoteStores{store: remote.NewMemoryStore()}, nil
	case config.RemoteStoreMongo:
		store, err := remote.ConnectMongo(ctx, remote.MongoConfig{
			URI:            cfg.MongoURI,
			Database:       cfg.MongoDatabase,
			Collection:     cfg.MongoCollection,
			ConnectTimeout: 10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return &remoteStores{store: store, close: func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				log.Warn("failed to disconnect mongo: %v", err)
			}
		}}, nil
	case config.RemoteStoreRedis:
		store := remote.NewRedisStore(remote.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		log.Info("remote store: redis at %s", cfg.RedisAddr)
		return &remoteStores{store: store, close: func() {
			if err := store.Close(); err != nil {
				log.Warn("failed to close redis: %v", err)
			}
		}}, nil
	default:
		log.Info("no remote store configured, running local-only")
		return &remoteStores{}, nil
	}
}

func (r *remoteStores) Close() {
	if r.close != nil {
		r.close()
	}
}

// loadDeviceID returns the configured device id, or the one stored on a
// previous run, or a fresh one which is then stored.
func loadDeviceID(ctx context.Context, store repository.LocalStore, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	raw, err := store.Get(ctx, deviceIDKey)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	if len(raw) > 0 {
		return string(raw), nil
	}
	id := uuid.NewString()
	if err := store.Put(ctx, deviceIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store device id: %w", err)
	}
	return id, nil
}

type netSignal struct {
	signal  connectivity.Signal
	monitor *connectivity.Monitor
}

// connectivitySignal probes CONNECTIVITY_PROBE_URL when set. Without a probe
// the device is treated as always online.
func connectivitySignal(cfg config.Config) netSignal {
	if cfg.ConnectivityProbeURL == "" {
		return netSignal{signal: connectivity.NewManual(true)}
	}
	m := connectivity.NewMonitor(cfg.ConnectivityProbeURL, cfg.ConnectivityInterval)
	return netSignal{signal: m, monitor: m}
}
