package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/repository"
)

const defaultJournalLimit = 100

type syncJournal struct {
	db         *sql.DB
	dbx        *sqlx.DB
	maxEntries int
}

// NewSyncJournal creates a SyncJournal that keeps at most maxEntries rows.
// maxEntries <= 0 disables pruning.
func NewSyncJournal(db *sql.DB, maxEntries int) repository.SyncJournal {
	return &syncJournal{
		db:         db,
		dbx:        sqlx.NewDb(db, "sqlite3"),
		maxEntries: maxEntries,
	}
}

func (j *syncJournal) Append(ctx context.Context, e models.SyncJournalEntry) (int64, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_journal")
	log.Debug("appending entry: direction=%s, outcome=%s, attempt=%d", e.Direction, e.Outcome, e.Attempt)

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	insert, args, err := sqlBuilder.Insert("sync_journal").
		Columns("user_id", "device_id", "direction", "reason", "outcome", "attempt", "state_updated_at", "error", "created_at").
		Values(e.UserID, e.DeviceID, e.Direction, e.Reason, e.Outcome, e.Attempt, e.StateUpdatedAt, e.Error, e.CreatedAt).
		ToSql()
	if err != nil {
		log.Error("failed to build insert: %v", err)
		return 0, err
	}

	var id int64
	err = tx(ctx, j.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insert, args...)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if j.maxEntries <= 0 {
			return nil
		}
		prune, pruneArgs, err := sqlBuilder.Delete("sync_journal").
			Where(squirrel.LtOrEq{"id": id - int64(j.maxEntries)}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, prune, pruneArgs...)
		return err
	})
	if err != nil {
		log.Error("failed to append entry: %v", err)
		return 0, err
	}
	return id, nil
}

func (j *syncJournal) List(ctx context.Context, filter models.SyncJournalFilter) ([]models.SyncJournalEntry, error) {
	log := logger.FromContext(ctx).WithPrefix("sync_journal")
	log.Debug("listing entries: user_id=%s, direction=%s, outcome=%s", filter.UserID, filter.Direction, filter.Outcome)

	query := sqlBuilder.Select(
		"id", "user_id", "device_id", "direction", "reason", "outcome",
		"attempt", "state_updated_at", "error", "created_at",
	).From("sync_journal")

	if filter.UserID != "" {
		query = query.Where(squirrel.Eq{"user_id": filter.UserID})
	}
	if filter.Direction != "" {
		query = query.Where(squirrel.Eq{"direction": filter.Direction})
	}
	if filter.Outcome != "" {
		query = query.Where(squirrel.Eq{"outcome": filter.Outcome})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	query = query.OrderBy("id DESC").Limit(uint64(limit))

	stmt, args, err := query.ToSql()
	if err != nil {
		log.Error("failed to build query: %v", err)
		return nil, err
	}

	entries := []models.SyncJournalEntry{}
	if err := j.dbx.SelectContext(ctx, &entries, stmt, args...); err != nil {
		log.Error("failed to list entries: %v", err)
		return nil, err
	}
	log.Debug("found %d entries", len(entries))
	return entries, nil
}
