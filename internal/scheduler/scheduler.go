// Package scheduler runs periodic maintenance: remote reconciliation,
// local store garbage collection and the due-items report.
package scheduler

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/syncer"
)

const (
	TagReconcile = "reconcile"
	TagBadgerGC  = "badger-gc"
	TagDueItems  = "due-items"

	defaultDiscardRatio = 0.5
	maxGCRounds         = 10
)

// ErrUnknownJob is returned by RunNow for a tag with no registered job.
var ErrUnknownJob = errors.New("scheduler: unknown job")

// Reconciler queues a local/remote comparison.
type Reconciler interface {
	RequestReconcile(reason string) error
}

// GarbageCollector reclaims value-log space. It reports whether a round
// rewrote anything.
type GarbageCollector interface {
	RunGC(discardRatio float64) (bool, error)
}

type DueLister interface {
	DueItems(now time.Time, limit int) []models.ItemRecord
}

type Config struct {
	ReconcileInterval time.Duration
	GCInterval        time.Duration
	GCDiscardRatio    float64
	DueInterval       time.Duration
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler  *gocron.Scheduler
	cfg        Config
	reconciler Reconciler
	gc         GarbageCollector
	due        DueLister
	metrics    *metrics.Metrics
	now        func() time.Time
	log        *logger.Logger
}

// New creates a scheduler. Any of reconciler, gc and due may be nil, in
// which case its job is not scheduled.
func New(cfg Config, reconciler Reconciler, gc GarbageCollector, due DueLister, m *metrics.Metrics) *Scheduler {
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = defaultDiscardRatio
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		cfg:        cfg,
		reconciler: reconciler,
		gc:         gc,
		due:        due,
		metrics:    m,
		now:        time.Now,
		log:        logger.Default().WithPrefix("scheduler"),
	}
}

// Start registers every job and runs the scheduler in the background.
func (s *Scheduler) Start() error {
	if s.reconciler != nil {
		if err := s.every(s.cfg.ReconcileInterval, TagReconcile, s.reconcile); err != nil {
			return err
		}
	}
	if s.gc != nil {
		if err := s.every(s.cfg.GCInterval, TagBadgerGC, s.collectGarbage); err != nil {
			return err
		}
	}
	if s.due != nil {
		if err := s.every(s.cfg.DueInterval, TagDueItems, s.reportDue); err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	s.log.Info("scheduler started with %d jobs", s.scheduler.Len())
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.log.Info("scheduler stopped")
}

// RunNow triggers the job registered under tag outside its schedule.
func (s *Scheduler) RunNow(tag string) error {
	if err := s.scheduler.RunByTag(tag); err != nil {
		if errors.Is(err, gocron.ErrJobNotFoundWithTag) {
			return ErrUnknownJob
		}
		return err
	}
	return nil
}

func (s *Scheduler) every(interval time.Duration, tag string, fn func()) error {
	_, err := s.scheduler.Every(interval).Tag(tag).SingletonMode().WaitForSchedule().Do(fn)
	if err != nil {
		s.log.Error("failed to schedule %s every %v: %v", tag, interval, err)
		return err
	}
	s.log.Debug("scheduled %s every %v", tag, interval)
	return nil
}

func (s *Scheduler) reconcile() {
	if err := s.reconciler.RequestReconcile(syncer.ReasonPeriodic); err != nil {
		s.log.Warn("periodic reconcile not queued: %v", err)
	}
}

// collectGarbage repeats GC rounds while they keep rewriting files.
func (s *Scheduler) collectGarbage() {
	rounds := 0
	for rounds < maxGCRounds {
		rewrote, err := s.gc.RunGC(s.cfg.GCDiscardRatio)
		if err != nil {
			s.log.Warn("value log GC failed after %d rounds: %v", rounds, err)
			return
		}
		if !rewrote {
			break
		}
		rounds++
	}
	s.log.Debug("value log GC finished, %d rounds rewrote files", rounds)
}

func (s *Scheduler) reportDue() {
	n := len(s.due.DueItems(s.now(), 0))
	s.metrics.SetDueItems(n)
	if n > 0 {
		s.log.Info("%d items due for review", n)
	}
}
