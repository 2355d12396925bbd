// Package progress owns the in-memory ProgressState and serializes every
// mutation applied to it.
package progress

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/mastery"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/review"
)

var (
	ErrEmptyItemID        = errors.New("progress: item id is required")
	ErrInvalidSession     = errors.New("progress: invalid study session")
	ErrInvalidPreferences = errors.New("progress: invalid preferences")
	ErrInvalidItem        = errors.New("progress: invalid item")
	ErrNilState           = errors.New("progress: state is nil")
)

// Origin tells a Persister where a snapshot came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Persister makes a snapshot durable. It is called with the tracker lock
// held, so it must not call back into the Tracker.
type Persister interface {
	Persist(ctx context.Context, snapshot *models.ProgressState, origin Origin) error
}

// ItemSeed registers catalog content for an item without studying it.
type ItemSeed struct {
	ID         string
	Kind       models.ItemKind
	Difficulty models.Difficulty
	Category   string
	Section    models.Section
	Word       *models.WordDetails
	Kanji      *models.KanjiDetails
}

type Tracker struct {
	mu        sync.Mutex
	state     *models.ProgressState
	persister Persister
	now       func() time.Time
	loc       *time.Location
	retention models.Retention
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLocation sets the time zone used for calendar-day streak math.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) { t.loc = loc }
}

func WithRetention(r models.Retention) Option {
	return func(t *Tracker) { t.retention = r }
}

// NewTracker takes ownership of initial. A nil initial starts from defaults.
func NewTracker(initial *models.ProgressState, opts ...Option) *Tracker {
	if initial == nil {
		initial = models.DefaultProgressState()
	}
	t := &Tracker{
		state:     initial,
		now:       time.Now,
		loc:       time.UTC,
		retention: models.DefaultRetention(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetPersister installs the durability hook. Call before serving mutations.
func (t *Tracker) SetPersister(p Persister) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.persister = p
}

// RecordAnswer records one answer. A correct answer is scheduled as Good,
// an incorrect one as Hard.
func (t *Tracker) RecordAnswer(ctx context.Context, itemID string, correct bool, activity models.ActivityType) (*models.ProgressState, error) {
	if itemID == "" {
		return nil, ErrEmptyItemID
	}
	if !activity.IsValid() {
		return nil, models.ErrUnknownActivity
	}
	q := review.Hard
	score := 0.0
	if correct {
		q = review.Good
		score = 1
	}
	return t.mutate(ctx, "record_answer", func(s *models.ProgressState, now time.Time) error {
		return t.answer(s, itemID, q, correct, score, activity, now)
	})
}

// RateReview runs the scheduler with an explicit grade. Grades of 3 and
// above count as correct answers.
func (t *Tracker) RateReview(ctx context.Context, itemID string, q review.Quality) (*models.ProgressState, error) {
	if itemID == "" {
		return nil, ErrEmptyItemID
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	score := float64(q) / float64(review.MaxQuality)
	return t.mutate(ctx, "rate_review", func(s *models.ProgressState, now time.Time) error {
		return t.answer(s, itemID, q, q.Successful(), score, models.ActivityReview, now)
	})
}

func (t *Tracker) ToggleFavorite(ctx context.Context, itemID string) (*models.ProgressState, error) {
	if itemID == "" {
		return nil, ErrEmptyItemID
	}
	return t.mutate(ctx, "toggle_favorite", func(s *models.ProgressState, now time.Time) error {
		items := NewItemStore(s.Items)
		before, existed := items.Get(itemID)
		fav := !before.Favorite
		after := items.Upsert(itemID, ItemPatch{Favorite: &fav}, now)
		mastery.ApplyItemChange(s.Sections, previous(before, existed), after)
		return nil
	})
}

// RegisterItems adds catalog items as not started, or updates the content
// fields of items that already exist. Learning counters are untouched.
func (t *Tracker) RegisterItems(ctx context.Context, seeds []ItemSeed) (*models.ProgressState, error) {
	for _, seed := range seeds {
		if err := validateSeed(seed); err != nil {
			return nil, err
		}
	}
	return t.mutate(ctx, "register_items", func(s *models.ProgressState, now time.Time) error {
		items := NewItemStore(s.Items)
		for _, seed := range seeds {
			before, existed := items.Get(seed.ID)
			after := before.Clone()
			if !existed {
				after = NewRecord(seed.ID, now)
			}
			applyPatch(&after, seed.patch())
			after.MasteryLevel = mastery.Derive(after)
			items.Put(after)
			mastery.ApplyItemChange(s.Sections, previous(before, existed), after)
		}
		return nil
	})
}

func (t *Tracker) AddStudySession(ctx context.Context, session models.StudySession) (*models.ProgressState, error) {
	if session.DurationMinutes < 0 || session.ItemsStudied < 0 || session.CorrectAnswers < 0 || session.Points < 0 {
		return nil, ErrInvalidSession
	}
	if !session.ActivityType.IsValid() {
		return nil, models.ErrUnknownActivity
	}
	if session.Section != "" && !session.Section.IsValid() {
		return nil, models.ErrUnknownSection
	}
	return t.mutate(ctx, "add_study_session", func(s *models.ProgressState, now time.Time) error {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		if session.StartedAt.IsZero() {
			session.StartedAt = now
		}
		if session.ActivityType == models.ActivityQuiz {
			session.IsQuiz = true
		}

		st := &s.Statistics
		st.StudySessions = t.retention.TrimSessions(append(st.StudySessions, session))
		st.TotalStudyTimeMinutes += session.DurationMinutes
		if st.DailyProgress == nil {
			st.DailyProgress = make(map[string]int)
		}
		st.DailyProgress[mastery.DayKey(session.StartedAt, t.loc)] += session.DurationMinutes
		t.retention.TrimDailyProgress(st.DailyProgress)
		if session.IsQuiz {
			st.TotalQuizzes++
		}
		st.TotalPoints += session.Points
		*st = mastery.UpdateStreak(*st, now, t.loc)

		if session.Section != "" {
			s.Sections[session.Section] = mastery.UpdateSectionStreak(s.Sections[session.Section], now, t.loc)
		}
		return nil
	})
}

func (t *Tracker) UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.ProgressState, error) {
	if prefs.DailyGoalMinutes < 0 || prefs.ReviewBatchSize < 0 {
		return nil, ErrInvalidPreferences
	}
	return t.mutate(ctx, "update_preferences", func(s *models.ProgressState, _ time.Time) error {
		s.Preferences = prefs
		return nil
	})
}

// ResetAll replaces everything with the default state.
func (t *Tracker) ResetAll(ctx context.Context) (*models.ProgressState, error) {
	return t.mutate(ctx, "reset_all", func(s *models.ProgressState, _ time.Time) error {
		*s = *models.DefaultProgressState()
		return nil
	})
}

// Replace installs an externally produced state, such as an accepted remote
// snapshot. The state must already have passed migration.
func (t *Tracker) Replace(ctx context.Context, state *models.ProgressState) error {
	if state == nil {
		return ErrNilState
	}
	log := logger.FromContext(ctx).WithPrefix("tracker")

	t.mu.Lock()
	defer t.mu.Unlock()

	next := state.Clone()
	if err := t.persist(ctx, next, OriginRemote); err != nil {
		log.Error("failed to persist replaced state: %v", err)
		return apperrors.NewLocalPersistenceError(err)
	}
	t.state = next
	log.Info("state replaced, updated_at=%s items=%d", next.UpdatedAt.Format(time.RFC3339), len(next.Items))
	return nil
}

func (t *Tracker) Snapshot() *models.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

func (t *Tracker) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.UpdatedAt
}

func (t *Tracker) Item(id string) (models.ItemRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.state.Items[id]
	if !ok {
		return models.ItemRecord{}, false
	}
	return rec.Clone(), true
}

func (t *Tracker) Section(key models.Section) (models.SectionAggregate, error) {
	if !key.IsValid() {
		return models.SectionAggregate{}, models.ErrUnknownSection
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Sections[key], nil
}

func (t *Tracker) Sections() map[models.Section]models.SectionAggregate {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[models.Section]models.SectionAggregate, len(t.state.Sections))
	for k, v := range t.state.Sections {
		out[k] = v
	}
	return out
}

func (t *Tracker) Statistics() models.Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Statistics.Clone()
}

func (t *Tracker) Preferences() models.Preferences {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Preferences
}

// DueItems returns items due at now, earliest first. limit <= 0 means all.
func (t *Tracker) DueItems(now time.Time, limit int) []models.ItemRecord {
	t.mu.Lock()
	due := make([]models.ItemRecord, 0)
	for _, rec := range t.state.Items {
		if rec.IsDue(now) {
			due = append(due, rec.Clone())
		}
	}
	t.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReviewDate.Equal(due[j].NextReviewDate) {
			return due[i].NextReviewDate.Before(due[j].NextReviewDate)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

func (t *Tracker) mutate(ctx context.Context, op string, fn func(s *models.ProgressState, now time.Time) error) (*models.ProgressState, error) {
	log := logger.FromContext(ctx).WithPrefix("tracker").WithField("op", op)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	next := t.state.Clone()
	if err := fn(next, now); err != nil {
		log.Debug("mutation rejected: %v", err)
		return nil, err
	}
	if ids := unlockAchievements(next, now); len(ids) > 0 {
		log.Info("achievements unlocked: %v", ids)
	}
	next.SchemaVersion = models.CurrentSchemaVersion
	next.UpdatedAt = now

	if err := t.persist(ctx, next, OriginLocal); err != nil {
		log.Error("local persistence failed, mutation rolled back: %v", err)
		return nil, apperrors.NewLocalPersistenceError(err)
	}
	t.state = next
	log.Debug("mutation applied")
	return next.Clone(), nil
}

func (t *Tracker) persist(ctx context.Context, s *models.ProgressState, origin Origin) error {
	if t.persister == nil {
		return nil
	}
	return t.persister.Persist(ctx, s, origin)
}

func (t *Tracker) answer(s *models.ProgressState, id string, q review.Quality, correct bool, score float64, activity models.ActivityType, now time.Time) error {
	items := NewItemStore(s.Items)
	before, existed := items.Get(id)
	before = before.Clone()
	rec := items.Upsert(id, ItemPatch{}, now)

	sched, err := review.Schedule(rec.Scheduler, q)
	if err != nil {
		return err
	}
	rec.Scheduler = sched
	rec.NextReviewDate = review.NextReviewDate(sched, now)

	if correct {
		rec.CorrectAnswers++
		rec.ConsecutiveCorrect++
		rec.MasteryLevel = min(models.MaxMastery, rec.MasteryLevel+1)
	} else {
		rec.IncorrectAnswers++
		rec.ConsecutiveCorrect = 0
		rec.MasteryLevel = max(models.MinMastery, rec.MasteryLevel-1)
	}
	rec.ReviewCount = rec.CorrectAnswers + rec.IncorrectAnswers
	rec.LastAnswerCorrect = correct
	rec.LastPracticeDate = now
	rec.PracticeHistory = t.retention.TrimHistory(append(rec.PracticeHistory, models.PracticeEntry{
		Timestamp:    now,
		Score:        score,
		ActivityType: activity,
	}))
	rec.MasteryLevel = mastery.Derive(rec)
	items.Put(rec)

	mastery.ApplyItemChange(s.Sections, previous(before, existed), rec)
	if rec.Section.IsValid() {
		s.Sections[rec.Section] = mastery.UpdateSectionStreak(s.Sections[rec.Section], now, t.loc)
	}
	s.Statistics.TotalReviews++
	s.Statistics = mastery.UpdateStreak(s.Statistics, now, t.loc)
	return nil
}

func previous(rec models.ItemRecord, existed bool) *models.ItemRecord {
	if !existed {
		return nil
	}
	return &rec
}

func validateSeed(seed ItemSeed) error {
	if seed.ID == "" {
		return ErrEmptyItemID
	}
	if seed.Section != "" && !seed.Section.IsValid() {
		return models.ErrUnknownSection
	}
	if seed.Kind != "" && !seed.Kind.IsValid() {
		return ErrInvalidItem
	}
	if seed.Difficulty != "" && !seed.Difficulty.IsValid() {
		return ErrInvalidItem
	}
	return nil
}

func (seed ItemSeed) patch() ItemPatch {
	var p ItemPatch
	if seed.Kind != "" {
		p.Kind = &seed.Kind
	}
	if seed.Difficulty != "" {
		p.Difficulty = &seed.Difficulty
	}
	if seed.Category != "" {
		p.Category = &seed.Category
	}
	if seed.Section != "" {
		p.Section = &seed.Section
	}
	p.Word = seed.Word
	p.Kanji = seed.Kanji
	if p.Kind == nil && seed.Kanji != nil && seed.Word == nil {
		kind := models.KindKanji
		p.Kind = &kind
	}
	return p
}
