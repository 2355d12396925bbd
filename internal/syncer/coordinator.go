// Package syncer makes every progress snapshot durable locally and mirrors
// it to the remote store when the device is online and signed in.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vytor/kotoflash/internal/connectivity"
	apperrors "github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/vytor/kotoflash/internal/remote"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/session"
	"github.com/vytor/kotoflash/internal/worker"
)

var (
	ErrNoRemote  = errors.New("syncer: no remote store configured")
	ErrSignedOut = errors.New("syncer: not signed in")
	ErrOffline   = errors.New("syncer: offline")
)

type Config struct {
	DeviceID          string
	Debounce          time.Duration
	RetryInitialDelay time.Duration
	RetryMultiplier   float64
	RetryMaxAttempts  int
	PushTimeout       time.Duration
	QueueSize         int
	Retention         models.Retention
}

func DefaultConfig() Config {
	return Config{
		Debounce:          time.Second,
		RetryInitialDelay: time.Second,
		RetryMultiplier:   2,
		RetryMaxAttempts:  3,
		PushTimeout:       10 * time.Second,
		QueueSize:         8,
		Retention:         models.DefaultRetention(),
	}
}

type Option func(*Coordinator)

// WithRemote enables pushing to and subscribing on store.
func WithRemote(store remote.Store) Option {
	return func(c *Coordinator) { c.remote = store }
}

// WithSignal sets the connectivity source. Without one the device is
// always considered online.
func WithSignal(sig connectivity.Signal) Option {
	return func(c *Coordinator) { c.signal = sig }
}

func WithSession(s *session.Session) Option {
	return func(c *Coordinator) { c.session = s }
}

func WithJournal(j repository.SyncJournal) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator implements progress.Persister. The local store is written
// only through Persist.
type Coordinator struct {
	cfg     Config
	local   repository.LocalStore
	tracker *progress.Tracker
	remote  remote.Store
	signal  connectivity.Signal
	session *session.Session
	journal repository.SyncJournal
	metrics *metrics.Metrics
	pool    *worker.Pool
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	latest         []byte
	latestAt       time.Time
	version        uint64
	dirty          bool
	pushQueued     bool
	timer          *time.Timer
	degraded       bool
	attempts       int
	lastErr        string
	lastPushAt     time.Time
	subscribedPath string
	unsubscribe    remote.Unsubscribe

	// subMu serializes replacing the remote subscription.
	subMu sync.Mutex

	// applyMu keeps remote snapshots applied one at a time in receipt order.
	applyMu sync.Mutex

	watchMu   sync.Mutex
	watchers  map[int]chan Status
	nextWatch int
}

var _ progress.Persister = (*Coordinator)(nil)

// New creates a coordinator and installs it as tracker's persister.
func New(cfg Config, local repository.LocalStore, tracker *progress.Tracker, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		local:    local,
		tracker:  tracker,
		state:    StateIdle,
		log:      logger.Default().WithPrefix("syncer"),
		watchers: make(map[int]chan Status),
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.RetryMaxAttempts < 1 {
		c.cfg.RetryMaxAttempts = 1
	}
	c.pool = worker.NewPool("sync", 1, c.cfg.QueueSize)
	tracker.SetPersister(c)
	return c
}

// Start begins background work: the push worker, connectivity and session
// hooks, and the remote subscription for the signed-in user.
func (c *Coordinator) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(logger.NewContext(ctx, c.log))
	c.pool.Start(c.ctx)

	snap := c.tracker.Snapshot()
	if data, err := json.Marshal(snap); err == nil {
		c.mu.Lock()
		if c.latest == nil {
			c.latest = data
			c.latestAt = snap.UpdatedAt
		}
		c.mu.Unlock()
	}

	if c.signal != nil {
		c.signal.OnOnline(c.handleOnline)
		c.signal.OnOffline(func() {
			c.log.Info("connectivity lost, pushes paused")
			c.notify()
		})
	}
	if c.session != nil {
		c.session.OnChange(c.handleSession)
		if userID := c.session.UserID(); userID != "" {
			c.handleSession(userID)
		}
	}
	c.log.Info("sync coordinator started (remote=%t, device=%s)", c.remote != nil, c.cfg.DeviceID)
}

// Stop cancels pending and running pushes and drops the remote subscription.
// Local state is already durable, so nothing is flushed.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	c.pool.Stop()
	c.dropSubscription()

	c.watchMu.Lock()
	for id, ch := range c.watchers {
		delete(c.watchers, id)
		close(ch)
	}
	c.watchMu.Unlock()
	c.log.Info("sync coordinator stopped")
}

// Persist writes snapshot to the local store and, for local mutations,
// schedules a debounced push. It runs under the tracker lock and never
// calls back into the tracker.
func (c *Coordinator) Persist(ctx context.Context, snapshot *models.ProgressState, origin progress.Origin) error {
	log := logger.FromContext(ctx).WithPrefix("syncer")

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	err = c.local.Put(ctx, repository.ProgressKey, data)
	c.metrics.LocalWrite(err)
	if err != nil {
		log.Error("local write failed: %v", err)
		return err
	}

	c.mu.Lock()
	c.latest = data
	c.latestAt = snapshot.UpdatedAt
	c.version++

	if origin == progress.OriginRemote {
		c.dirty = false
		c.stopTimerLocked()
		c.state = StateIdle
		c.mu.Unlock()
		log.Debug("remote snapshot persisted locally (%d bytes)", len(data))
		c.notify()
		return nil
	}

	c.dirty = true
	c.state = StateLocalPersisted
	if c.remote == nil || !c.authenticated() {
		c.state = StateIdle
		c.mu.Unlock()
		log.Debug("snapshot persisted locally (%d bytes), local-only", len(data))
		c.notify()
		return nil
	}
	c.state = StatePendingPush
	if c.online() {
		c.scheduleLocked()
	}
	c.mu.Unlock()

	log.Debug("snapshot persisted locally (%d bytes), push pending", len(data))
	c.notify()
	return nil
}

// SyncNow pushes the latest snapshot right away, bypassing the debounce
// window. A successful push clears a degraded state.
func (c *Coordinator) SyncNow(ctx context.Context) error {
	if c.remote == nil {
		return ErrNoRemote
	}
	if !c.authenticated() {
		return ErrSignedOut
	}
	if !c.online() {
		return ErrOffline
	}
	logger.FromContext(ctx).WithPrefix("syncer").Info("manual sync requested")

	c.mu.Lock()
	c.dirty = true
	c.stopTimerLocked()
	c.state = StatePendingPush
	c.mu.Unlock()

	c.enqueuePush("manual")
	return nil
}

func (c *Coordinator) Status() Status {
	online := c.online()
	userID := ""
	if c.session != nil {
		userID = c.session.UserID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:          c.state,
		Online:         online,
		Authenticated:  userID != "",
		UserID:         userID,
		RemoteEnabled:  c.remote != nil,
		Pending:        c.dirty,
		Degraded:       c.degraded,
		Attempts:       c.attempts,
		LastError:      c.lastErr,
		LastPushAt:     c.lastPushAt,
		LocalUpdatedAt: c.latestAt,
	}
}

// handleOnline queues a reconnect: resubscribe, then reconcile, which pulls a
// newer remote snapshot or pushes unpushed local changes.
func (c *Coordinator) handleOnline() {
	c.log.Info("connectivity restored")

	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()

	if c.remote != nil && c.authenticated() {
		if err := c.pool.Submit(&reconnectJob{c: c}); err != nil {
			c.log.Warn("reconnect not queued: %v", err)
		}
	}
	c.notify()
}

// scheduleLocked restarts the debounce window. A zero window pushes at once.
func (c *Coordinator) scheduleLocked() {
	c.stopTimerLocked()
	if c.cfg.Debounce <= 0 {
		go c.enqueuePush("mutation")
		return
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, func() { c.enqueuePush("debounce") })
}

func (c *Coordinator) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// enqueuePush queues one push job. While a job is queued, further requests
// coalesce into it since the job reads the latest snapshot when it runs.
func (c *Coordinator) enqueuePush(reason string) {
	if c.remote == nil || !c.authenticated() || !c.online() {
		return
	}

	c.mu.Lock()
	if !c.dirty || c.pushQueued {
		c.mu.Unlock()
		return
	}
	c.pushQueued = true
	c.mu.Unlock()

	if err := c.pool.Submit(&pushJob{c: c, reason: reason}); err != nil {
		c.mu.Lock()
		c.pushQueued = false
		c.mu.Unlock()
		c.log.Warn("push not queued (%s): %v", reason, err)
	}
}

// push runs on the single sync worker, so pushes never overlap.
func (c *Coordinator) push(ctx context.Context, reason string) error {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("reason", reason)

	userID := ""
	if c.session != nil {
		userID = c.session.UserID()
	}
	online := c.online()

	c.mu.Lock()
	c.pushQueued = false
	if dirty := c.dirty; !dirty || userID == "" || !online {
		c.mu.Unlock()
		log.Debug("push skipped (dirty=%t, signed_in=%t, online=%t)", dirty, userID != "", online)
		return nil
	}
	c.state = StatePushing
	c.attempts = 0
	c.mu.Unlock()
	c.notify()

	path := remote.ProgressPath(userID)
	var pushedVersion uint64
	var pushedAt time.Time

	operation := func() (struct{}, error) {
		if !c.online() {
			return struct{}{}, backoff.Permanent(ErrOffline)
		}

		c.mu.Lock()
		data, at, version := c.latest, c.latestAt, c.version
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		c.metrics.PushAttempted()
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
		err := c.remote.SetDocument(attemptCtx, path, remote.Document{
			Path:      path,
			Data:      data,
			UpdatedAt: at,
			Origin:    c.cfg.DeviceID,
		})
		cancel()

		if err != nil {
			c.metrics.PushFinished(models.OutcomeFailure)
			c.record(ctx, models.SyncJournalEntry{
				UserID: userID, Direction: models.SyncPush, Reason: reason,
				Outcome: models.OutcomeFailure, Attempt: attempt, StateUpdatedAt: at, Error: err.Error(),
			})
			return struct{}{}, err
		}
		pushedVersion, pushedAt = version, at
		c.record(ctx, models.SyncJournalEntry{
			UserID: userID, Direction: models.SyncPush, Reason: reason,
			Outcome: models.OutcomeSuccess, Attempt: attempt, StateUpdatedAt: at,
		})
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(uint(c.cfg.RetryMaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("push attempt failed, retrying in %v: %v", next, err)
			c.mu.Lock()
			c.state = StatePushFailed
			c.lastErr = err.Error()
			c.mu.Unlock()
			c.notify()
		}),
	)

	switch {
	case err == nil:
		c.mu.Lock()
		switch {
		case c.version == pushedVersion:
			c.dirty = false
			c.state = StatePushed
		case c.dirty:
			c.state = StatePendingPush
		default:
			c.state = StateIdle
		}
		c.degraded = false
		c.lastErr = ""
		c.lastPushAt = time.Now()
		attempts := c.attempts
		c.mu.Unlock()

		c.metrics.PushFinished(models.OutcomeSuccess)
		c.metrics.SetDegraded(false)
		log.Info("pushed snapshot updated_at=%s after %d attempt(s)", pushedAt.Format(time.RFC3339Nano), attempts)

	case errors.Is(err, ErrOffline):
		c.mu.Lock()
		c.state = StatePendingPush
		c.mu.Unlock()
		log.Info("went offline during push, waiting for reconnect")

	case ctx.Err() != nil:
		log.Debug("push cancelled: %v", ctx.Err())
		return ctx.Err()

	default:
		c.mu.Lock()
		attempts, at := c.attempts, c.latestAt
		c.mu.Unlock()

		c.metrics.PushFinished(models.OutcomeExhausted)
		c.metrics.SetDegraded(true)
		c.record(ctx, models.SyncJournalEntry{
			UserID: userID, Direction: models.SyncPush, Reason: reason,
			Outcome: models.OutcomeExhausted, Attempt: attempts, StateUpdatedAt: at, Error: err.Error(),
		})

		c.mu.Lock()
		c.state = StatePushFailed
		c.degraded = true
		c.lastErr = err.Error()
		c.mu.Unlock()
		log.Error("push gave up after %d attempt(s), sync degraded: %v", attempts, err)
		c.notify()
		return apperrors.NewSyncError("push", err)
	}

	c.notify()
	return nil
}

func (c *Coordinator) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialDelay
	b.Multiplier = c.cfg.RetryMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(float64(c.cfg.RetryInitialDelay) * math.Pow(c.cfg.RetryMultiplier, float64(c.cfg.RetryMaxAttempts)))
	return b
}

func (c *Coordinator) record(ctx context.Context, entry models.SyncJournalEntry) {
	if c.journal == nil {
		return
	}
	entry.DeviceID = c.cfg.DeviceID
	if _, err := c.journal.Append(ctx, entry); err != nil {
		logger.FromContext(ctx).WithPrefix("syncer").Warn("failed to journal %s %s: %v", entry.Direction, entry.Outcome, err)
	}
}

func (c *Coordinator) authenticated() bool {
	return c.session != nil && c.session.Authenticated()
}

func (c *Coordinator) online() bool {
	return c.signal == nil || c.signal.Online()
}
