package services

import (
	"context"
	"strings"

	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/session"
	"github.com/vytor/kotoflash/internal/syncer"
)

// SyncService exposes sync health, manual sync and the signed-in user
type SyncService interface {
	Status(ctx context.Context) syncer.Status
	Watch(ctx context.Context) (<-chan syncer.Status, func())
	SyncNow(ctx context.Context) error
	Journal(ctx context.Context, filter models.SyncJournalFilter) ([]models.SyncJournalEntry, error)
	SignIn(ctx context.Context, userID string) error
	SignOut(ctx context.Context)
}

type syncService struct {
	coord   *syncer.Coordinator
	session *session.Session
	journal repository.SyncJournal
}

// NewSyncService creates a new SyncService. journal may be nil.
func NewSyncService(coord *syncer.Coordinator, sess *session.Session, journal repository.SyncJournal) SyncService {
	return &syncService{coord: coord, session: sess, journal: journal}
}

func (s *syncService) Status(ctx context.Context) syncer.Status {
	return s.coord.Status()
}

func (s *syncService) Watch(ctx context.Context) (<-chan syncer.Status, func()) {
	logger.FromContext(ctx).Debug("watching sync status")
	return s.coord.Watch()
}

func (s *syncService) SyncNow(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("manual sync requested")

	if err := s.coord.SyncNow(ctx); err != nil {
		log.Warn("manual sync rejected: %v", err)
		return mapError(err)
	}
	return nil
}

func (s *syncService) Journal(ctx context.Context, filter models.SyncJournalFilter) ([]models.SyncJournalEntry, error) {
	log := logger.FromContext(ctx)
	log.Debug("listing sync journal: limit=%d", filter.Limit)

	if s.journal == nil {
		return []models.SyncJournalEntry{}, nil
	}
	entries, err := s.journal.List(ctx, filter)
	if err != nil {
		log.Error("failed to list sync journal: %v", err)
		return nil, errors.NewInternalError(err)
	}
	return entries, nil
}

func (s *syncService) SignIn(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.NewValidationError("userId", "cannot be empty")
	}
	logger.FromContext(ctx).Info("signing in: user_id=%s", userID)
	s.session.SignIn(userID)
	return nil
}

func (s *syncService) SignOut(ctx context.Context) {
	logger.FromContext(ctx).Info("signing out")
	s.session.SignOut()
}
