package syncer

import (
	"context"
	"time"

	apperrors "github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/migration"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/remote"
)

// Reasons passed to Reconcile by the coordinator and the scheduler.
const (
	ReasonSignIn    = "sign-in"
	ReasonReconnect = "reconnect"
	ReasonPeriodic  = "periodic"
)

// handleSession moves the remote subscription to the new user and
// reconciles. An empty userID means signed out: local-only from here on.
func (c *Coordinator) handleSession(userID string) {
	log := c.log.WithField("user_id", userID)

	if userID == "" {
		c.mu.Lock()
		c.stopTimerLocked()
		c.state = StateIdle
		c.mu.Unlock()
	}
	if userID == "" || c.remote == nil {
		c.dropSubscription()
		log.Info("signed out or no remote, running local-only")
		c.notify()
		return
	}

	if err := c.resubscribe(userID); err != nil {
		log.Error("failed to subscribe to %s: %v", remote.ProgressPath(userID), err)
	}
	if err := c.Reconcile(c.ctx, ReasonSignIn); err != nil {
		log.Warn("sign-in reconcile failed: %v", err)
	}
	c.notify()
}

// reconnect runs on the sync worker after connectivity returns. The
// subscription is rebuilt since a stream may have ended while offline.
func (c *Coordinator) reconnect(ctx context.Context) error {
	if c.remote == nil || !c.authenticated() {
		return nil
	}
	userID := c.session.UserID()
	if err := c.resubscribe(userID); err != nil {
		logger.FromContext(ctx).WithPrefix("syncer").Warn("failed to resubscribe to %s: %v", remote.ProgressPath(userID), err)
	}
	return c.Reconcile(ctx, ReasonReconnect)
}

// resubscribe replaces the current subscription with one on userID's path.
func (c *Coordinator) resubscribe(userID string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.dropSubscriptionLocked()
	if err := c.ctx.Err(); err != nil {
		return err
	}

	path := remote.ProgressPath(userID)
	unsubscribe, err := c.remote.Subscribe(c.ctx, path, func(doc remote.Document) {
		_ = c.applyRemote(c.ctx, doc, "subscription", true)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.subscribedPath = path
	c.mu.Unlock()
	c.log.Info("subscribed to %s", path)
	return nil
}

func (c *Coordinator) dropSubscription() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.dropSubscriptionLocked()
}

// dropSubscriptionLocked requires subMu.
func (c *Coordinator) dropSubscriptionLocked() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.subscribedPath = ""
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// RequestReconcile queues a Reconcile on the sync worker.
func (c *Coordinator) RequestReconcile(reason string) error {
	return c.pool.Submit(&reconcileJob{c: c, reason: reason})
}

// Reconcile compares the local and remote snapshots by updatedAt and pulls
// or pushes so both sides converge. It does nothing while offline, signed
// out or without a remote. A periodic reconcile never pushes while sync is
// degraded; only a mutation, reconnect, sign-in or SyncNow retries.
func (c *Coordinator) Reconcile(ctx context.Context, reason string) error {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("reason", reason)

	if c.remote == nil || !c.authenticated() || !c.online() {
		log.Debug("reconcile skipped")
		return nil
	}
	userID := c.session.UserID()
	path := remote.ProgressPath(userID)

	getCtx, cancel := context.WithTimeout(ctx, c.cfg.PushTimeout)
	doc, err := c.remote.GetDocument(getCtx, path)
	cancel()
	if err != nil {
		log.Warn("failed to fetch remote snapshot: %v", err)
		c.record(ctx, models.SyncJournalEntry{
			UserID: userID, Direction: models.SyncPull, Reason: reason,
			Outcome: models.OutcomeFailure, Attempt: 1, Error: err.Error(),
		})
		return apperrors.NewSyncError("pull", err)
	}

	c.mu.Lock()
	holdPush := c.degraded && reason == ReasonPeriodic
	c.mu.Unlock()

	localAt := c.tracker.UpdatedAt()
	switch {
	case doc == nil && localAt.IsZero():
		log.Debug("nothing stored locally or remotely")
	case doc != nil && doc.UpdatedAt.After(localAt):
		log.Info("remote is newer (%s > %s), pulling", doc.UpdatedAt.Format(time.RFC3339Nano), localAt.Format(time.RFC3339Nano))
		return c.applyRemote(ctx, *doc, reason, false)
	case holdPush && (doc == nil || localAt.After(doc.UpdatedAt)):
		log.Debug("sync degraded, leaving local changes for the next retry trigger")
	case doc == nil:
		log.Info("remote empty, pushing local snapshot")
		c.markDirty()
		c.enqueuePush(reason)
	case localAt.After(doc.UpdatedAt):
		log.Info("local is newer (%s > %s), pushing", localAt.Format(time.RFC3339Nano), doc.UpdatedAt.Format(time.RFC3339Nano))
		c.markDirty()
		c.enqueuePush(reason)
	default:
		c.mu.Lock()
		if c.latestAt.Equal(localAt) {
			c.dirty = false
		}
		c.mu.Unlock()
		log.Debug("local and remote in sync")
		c.notify()
	}
	return nil
}

// applyRemote runs a remote snapshot through migration and installs it as
// the current state. Subscription echoes of this device's own pushes are
// ignored.
func (c *Coordinator) applyRemote(ctx context.Context, doc remote.Document, reason string, fromSubscription bool) error {
	log := logger.FromContext(ctx).WithPrefix("syncer").WithField("reason", reason)

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	userID := ""
	if c.session != nil {
		userID = c.session.UserID()
	}
	entry := models.SyncJournalEntry{
		UserID: userID, Direction: models.SyncPull, Reason: reason,
		Attempt: 1, StateUpdatedAt: doc.UpdatedAt,
	}

	if fromSubscription {
		if doc.Origin == c.cfg.DeviceID {
			log.Debug("ignoring echo of own push updated_at=%s", doc.UpdatedAt.Format(time.RFC3339Nano))
			c.metrics.RemoteUpdate(models.OutcomeIgnored)
			return nil
		}
		c.mu.Lock()
		current := c.subscribedPath
		c.mu.Unlock()
		if doc.Path != "" && doc.Path != current {
			log.Debug("ignoring update for stale path %s", doc.Path)
			c.metrics.RemoteUpdate(models.OutcomeIgnored)
			return nil
		}
	}

	state, err := migration.Migrate(doc.Data, c.cfg.Retention)
	if err != nil {
		log.Warn("remote snapshot from %s rejected: %v", doc.Origin, err)
		c.metrics.RemoteUpdate(models.OutcomeIgnored)
		entry.Outcome = models.OutcomeIgnored
		entry.Error = err.Error()
		c.record(ctx, entry)
		return err
	}

	if err := c.tracker.Replace(ctx, state); err != nil {
		log.Error("failed to apply remote snapshot: %v", err)
		entry.Outcome = models.OutcomeFailure
		entry.Error = err.Error()
		c.record(ctx, entry)
		return err
	}

	c.metrics.RemoteUpdate(models.OutcomeApplied)
	entry.Outcome = models.OutcomeApplied
	c.record(ctx, entry)
	log.Info("applied remote snapshot from %s updated_at=%s", doc.Origin, doc.UpdatedAt.Format(time.RFC3339Nano))
	return nil
}

func (c *Coordinator) markDirty() {
	c.mu.Lock()
	c.dirty = true
	c.state = StatePendingPush
	c.mu.Unlock()
}
