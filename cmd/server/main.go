package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/kotoflash/internal/api"
	"github.com/vytor/kotoflash/internal/config"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/migration"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/scheduler"
	"github.com/vytor/kotoflash/internal/services"
	"github.com/vytor/kotoflash/internal/session"
	"github.com/vytor/kotoflash/internal/syncer"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	log.Info("===========================================")
	log.Info("KotoFlash Server Starting")
	log.Info("===========================================")

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("local_store=%s", cfg.LocalStore)
	log.Debug("remote_store=%s", cfg.RemoteStore)
	log.Debug("sync_debounce=%v", cfg.SyncDebounce)
	log.Debug("sync_retry_initial=%v multiplier=%g max_attempts=%d", cfg.SyncRetryInitialDelay, cfg.SyncRetryMultiplier, cfg.SyncRetryMaxAttempts)
	log.Debug("reconcile_interval=%v", cfg.ReconcileInterval)
	log.Debug("streak_timezone=%s", cfg.StreakTimezone)
	log.Debug("log_level=%s", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("KotoFlash Server Stopped")
	log.Info("===========================================")
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	retention := cfg.Retention()

	local, err := openLocalStores(cfg)
	if err != nil {
		return err
	}
	defer local.Close()

	remoteStore, err := openRemoteStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer remoteStore.Close()

	deviceID, err := loadDeviceID(ctx, local.store, cfg.DeviceID)
	if err != nil {
		return err
	}
	log.Info("device id: %s", deviceID)

	initial := loadProgress(ctx, local.store, retention)

	m := metrics.New()
	sess := session.New(cfg.UserID)
	tracker := progress.NewTracker(initial,
		progress.WithLocation(loc),
		progress.WithRetention(retention),
	)
	sig := connectivitySignal(cfg)

	opts := []syncer.Option{
		syncer.WithSession(sess),
		syncer.WithSignal(sig.signal),
		syncer.WithJournal(local.journal),
		syncer.WithMetrics(m),
	}
	if remoteStore.store != nil {
		opts = append(opts, syncer.WithRemote(remoteStore.store))
	}
	coord := syncer.New(syncer.Config{
		DeviceID:          deviceID,
		Debounce:          cfg.SyncDebounce,
		RetryInitialDelay: cfg.SyncRetryInitialDelay,
		RetryMultiplier:   cfg.SyncRetryMultiplier,
		RetryMaxAttempts:  cfg.SyncRetryMaxAttempts,
		PushTimeout:       cfg.SyncPushTimeout,
		QueueSize:         cfg.SyncQueueSize,
		Retention:         retention,
	}, local.store, tracker, opts...)

	// Nil collaborators must stay untyped nil so the scheduler skips them.
	var gc scheduler.GarbageCollector
	if local.badger != nil {
		gc = local.badger
	}
	var reconciler scheduler.Reconciler
	if remoteStore.store != nil {
		reconciler = coord
	}
	sched := scheduler.New(scheduler.Config{
		ReconcileInterval: cfg.ReconcileInterval,
		GCInterval:        cfg.BadgerGCInterval,
		DueInterval:       cfg.DueReportInterval,
	}, reconciler, gc, tracker, m)

	srv := &api.Server{
		ProgressService: services.NewProgressService(tracker, m),
		SyncService:     services.NewSyncService(coord, sess, local.journal),
		Metrics:         m,
		Location:        loc,
		Ready:           local.ready,
		RequestTimeout:  30 * time.Second,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // /sync/ws streams
		IdleTimeout:  60 * time.Second,
	}

	coord.Start(ctx)
	defer coord.Stop()

	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if sig.monitor != nil {
		g.Go(func() error {
			return sig.monitor.Run(gctx)
		})
	}

	g.Go(func() error {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Debug("shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error: %v", err)
			return err
		}
		return nil
	})

	return g.Wait()
}

// loadProgress reads the persisted snapshot through the migration gate. An
// unreadable or unrecoverable snapshot starts from the default state and is
// overwritten by the next mutation.
func loadProgress(ctx context.Context, store repository.LocalStore, retention models.Retention) *models.ProgressState {
	log := logger.FromContext(ctx).WithPrefix("startup")

	raw, err := store.Get(ctx, repository.ProgressKey)
	if err != nil {
		log.Error("failed to read stored progress, starting fresh: %v", err)
		return models.DefaultProgressState()
	}
	if raw == nil {
		log.Info("no stored progress, starting fresh")
		return models.DefaultProgressState()
	}

	state, err := migration.Migrate(raw, retention)
	if err != nil {
		log.Error("stored progress rejected by migration, starting fresh: %v", err)
		return models.DefaultProgressState()
	}
	log.Info("loaded progress: %d items, schema v%d", len(state.Items), state.SchemaVersion)
	return state
}
