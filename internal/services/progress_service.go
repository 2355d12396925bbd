package services

import (
	"context"
	"time"

	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/vytor/kotoflash/internal/review"
)

const maxDueItems = 500

// ProgressService handles learning mutations and progress reads
type ProgressService interface {
	RecordAnswer(ctx context.Context, itemID string, correct bool, activity string) (*models.ItemRecord, error)
	RateReview(ctx context.Context, itemID string, quality int) (*models.ItemRecord, error)
	RateReviewByName(ctx context.Context, itemID string, rating string) (*models.ItemRecord, error)
	ToggleFavorite(ctx context.Context, itemID string) (*models.ItemRecord, error)
	RegisterItems(ctx context.Context, seeds []progress.ItemSeed) (int, error)
	AddStudySession(ctx context.Context, session models.StudySession) (*models.Statistics, error)
	UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.Preferences, error)
	ResetAll(ctx context.Context) error

	GetItem(ctx context.Context, itemID string) (*models.ItemRecord, error)
	DueItems(ctx context.Context, limit int) ([]models.ItemRecord, error)
	GetSections(ctx context.Context) (map[models.Section]models.SectionAggregate, error)
	GetSection(ctx context.Context, key string) (*models.SectionAggregate, error)
	GetStatistics(ctx context.Context) (*models.Statistics, error)
	GetPreferences(ctx context.Context) (*models.Preferences, error)
	Snapshot(ctx context.Context) (*models.ProgressState, error)
}

type progressService struct {
	tracker *progress.Tracker
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewProgressService creates a new ProgressService. m may be nil.
func NewProgressService(tracker *progress.Tracker, m *metrics.Metrics) ProgressService {
	return &progressService{tracker: tracker, metrics: m, now: time.Now}
}

func (s *progressService) RecordAnswer(ctx context.Context, itemID string, correct bool, activity string) (*models.ItemRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("recording answer: item_id=%s, correct=%t, activity=%s", itemID, correct, activity)

	if activity == "" {
		activity = string(models.ActivityFlashcards)
	}
	start := time.Now()
	_, err := s.tracker.RecordAnswer(ctx, itemID, correct, models.ActivityType(activity))
	s.metrics.ObserveMutation("record_answer", start, err)
	if err != nil {
		log.Warn("failed to record answer: %v", err)
		return nil, mapError(err)
	}
	return s.item(itemID)
}

func (s *progressService) RateReview(ctx context.Context, itemID string, quality int) (*models.ItemRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("rating review: item_id=%s, quality=%d", itemID, quality)

	start := time.Now()
	_, err := s.tracker.RateReview(ctx, itemID, review.Quality(quality))
	s.metrics.ObserveMutation("rate_review", start, err)
	if err != nil {
		log.Warn("failed to rate review: %v", err)
		return nil, mapError(err)
	}
	return s.item(itemID)
}

func (s *progressService) RateReviewByName(ctx context.Context, itemID string, rating string) (*models.ItemRecord, error) {
	q, err := review.ParseRating(rating)
	if err != nil {
		return nil, errors.WrapValidationError("rating", err)
	}
	return s.RateReview(ctx, itemID, int(q))
}

func (s *progressService) ToggleFavorite(ctx context.Context, itemID string) (*models.ItemRecord, error) {
	log := logger.FromContext(ctx)
	log.Debug("toggling favorite: item_id=%s", itemID)

	start := time.Now()
	_, err := s.tracker.ToggleFavorite(ctx, itemID)
	s.metrics.ObserveMutation("toggle_favorite", start, err)
	if err != nil {
		log.Warn("failed to toggle favorite: %v", err)
		return nil, mapError(err)
	}
	return s.item(itemID)
}

func (s *progressService) RegisterItems(ctx context.Context, seeds []progress.ItemSeed) (int, error) {
	log := logger.FromContext(ctx)
	log.Debug("registering %d items", len(seeds))

	if len(seeds) == 0 {
		return 0, errors.NewValidationError("items", "cannot be empty")
	}
	start := time.Now()
	_, err := s.tracker.RegisterItems(ctx, seeds)
	s.metrics.ObserveMutation("register_items", start, err)
	if err != nil {
		log.Warn("failed to register items: %v", err)
		return 0, mapError(err)
	}
	return len(seeds), nil
}

func (s *progressService) AddStudySession(ctx context.Context, session models.StudySession) (*models.Statistics, error) {
	log := logger.FromContext(ctx)
	log.Debug("adding study session: activity=%s, duration=%d", session.ActivityType, session.DurationMinutes)

	start := time.Now()
	state, err := s.tracker.AddStudySession(ctx, session)
	s.metrics.ObserveMutation("add_study_session", start, err)
	if err != nil {
		log.Warn("failed to add study session: %v", err)
		return nil, mapError(err)
	}
	return &state.Statistics, nil
}

func (s *progressService) UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.Preferences, error) {
	log := logger.FromContext(ctx)
	log.Debug("updating preferences")

	start := time.Now()
	state, err := s.tracker.UpdatePreferences(ctx, prefs)
	s.metrics.ObserveMutation("update_preferences", start, err)
	if err != nil {
		log.Warn("failed to update preferences: %v", err)
		return nil, mapError(err)
	}
	return &state.Preferences, nil
}

func (s *progressService) ResetAll(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info("resetting all progress")

	start := time.Now()
	_, err := s.tracker.ResetAll(ctx)
	s.metrics.ObserveMutation("reset_all", start, err)
	if err != nil {
		log.Error("failed to reset progress: %v", err)
		return mapError(err)
	}
	return nil
}

func (s *progressService) GetItem(ctx context.Context, itemID string) (*models.ItemRecord, error) {
	logger.FromContext(ctx).Debug("getting item: item_id=%s", itemID)
	if itemID == "" {
		return nil, mapError(progress.ErrEmptyItemID)
	}
	return s.item(itemID)
}

func (s *progressService) DueItems(ctx context.Context, limit int) ([]models.ItemRecord, error) {
	log := logger.FromContext(ctx)
	if limit <= 0 {
		limit = s.tracker.Preferences().ReviewBatchSize
	}
	limit = min(limit, maxDueItems)
	log.Debug("listing due items: limit=%d", limit)

	return s.tracker.DueItems(s.now(), limit), nil
}

func (s *progressService) GetSections(ctx context.Context) (map[models.Section]models.SectionAggregate, error) {
	logger.FromContext(ctx).Debug("getting sections")
	return s.tracker.Sections(), nil
}

func (s *progressService) GetSection(ctx context.Context, key string) (*models.SectionAggregate, error) {
	logger.FromContext(ctx).Debug("getting section: key=%s", key)

	section, err := models.ParseSection(key)
	if err != nil {
		return nil, mapError(err)
	}
	agg, err := s.tracker.Section(section)
	if err != nil {
		return nil, mapError(err)
	}
	return &agg, nil
}

func (s *progressService) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	logger.FromContext(ctx).Debug("getting statistics")
	st := s.tracker.Statistics()
	return &st, nil
}

func (s *progressService) GetPreferences(ctx context.Context) (*models.Preferences, error) {
	logger.FromContext(ctx).Debug("getting preferences")
	p := s.tracker.Preferences()
	return &p, nil
}

func (s *progressService) Snapshot(ctx context.Context) (*models.ProgressState, error) {
	logger.FromContext(ctx).Debug("taking snapshot")
	return s.tracker.Snapshot(), nil
}

func (s *progressService) item(itemID string) (*models.ItemRecord, error) {
	rec, ok := s.tracker.Item(itemID)
	if !ok {
		return nil, errors.NewNotFoundError("item", itemID)
	}
	return &rec, nil
}
