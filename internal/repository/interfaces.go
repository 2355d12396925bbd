package repository

import (
	"context"

	"github.com/vytor/kotoflash/internal/models"
)

// ProgressKey is the well-known key under which the whole ProgressState is stored.
const ProgressKey = "progress_state"

// LocalStore is durable key-value storage that survives restarts and
// offline periods.
type LocalStore interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

// SyncJournal keeps a bounded log of sync activity.
type SyncJournal interface {
	Append(ctx context.Context, entry models.SyncJournalEntry) (int64, error)
	List(ctx context.Context, filter models.SyncJournalFilter) ([]models.SyncJournalEntry, error)
}
