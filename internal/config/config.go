package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vytor/kotoflash/internal/models"
)

const (
	LocalStoreBadger = "badger"
	LocalStoreSQLite = "sqlite"

	RemoteStoreNone   = "none"
	RemoteStoreMemory = "memory"
	RemoteStoreMongo  = "mongo"
	RemoteStoreRedis  = "redis"
)

type Config struct {
	Addr     string
	LogLevel string

	LocalStore string
	BadgerPath string
	DBPath     string

	RemoteStore     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	UserID   string
	DeviceID string

	SyncDebounce          time.Duration
	SyncRetryInitialDelay time.Duration
	SyncRetryMultiplier   float64
	SyncRetryMaxAttempts  int
	SyncPushTimeout       time.Duration
	SyncQueueSize         int
	ReconcileInterval     time.Duration
	BadgerGCInterval      time.Duration
	DueReportInterval     time.Duration
	JournalMaxEntries     int

	ConnectivityProbeURL string
	ConnectivityInterval time.Duration

	StreakTimezone       string
	PracticeHistoryLimit int
	StudySessionLimit    int
	DailyProgressDays    int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent.
	_ = godotenv.Load()

	return Config{
		Addr:     envOr("ADDR", ":8080"),
		LogLevel: envOr("LOG_LEVEL", "INFO"),

		LocalStore: strings.ToLower(envOr("LOCAL_STORE", LocalStoreBadger)),
		BadgerPath: envOr("BADGER_PATH", "data/progress"),
		DBPath:     envOr("DB_PATH", "file:kotoflash.db"),

		RemoteStore:     strings.ToLower(envOr("REMOTE_STORE", RemoteStoreNone)),
		MongoURI:        envOr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   envOr("MONGO_DATABASE", "kotoflash"),
		MongoCollection: envOr("MONGO_COLLECTION", "progress"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envIntOr("REDIS_DB", 0),

		UserID:   os.Getenv("USER_ID"),
		DeviceID: os.Getenv("DEVICE_ID"),

		SyncDebounce:          envDurationMsOr("SYNC_DEBOUNCE_MS", time.Second),
		SyncRetryInitialDelay: envDurationMsOr("SYNC_RETRY_INITIAL_MS", time.Second),
		SyncRetryMultiplier:   envFloatOr("SYNC_RETRY_MULTIPLIER", 2),
		SyncRetryMaxAttempts:  envIntOr("SYNC_RETRY_MAX_ATTEMPTS", 3),
		SyncPushTimeout:       envDurationMsOr("SYNC_PUSH_TIMEOUT_MS", 10*time.Second),
		SyncQueueSize:         envIntOr("SYNC_QUEUE_SIZE", 8),
		ReconcileInterval:     envDurationMsOr("RECONCILE_INTERVAL_MS", 5*time.Minute),
		BadgerGCInterval:      envDurationMsOr("BADGER_GC_INTERVAL_MS", 10*time.Minute),
		DueReportInterval:     envDurationMsOr("DUE_REPORT_INTERVAL_MS", time.Minute),
		JournalMaxEntries:     envIntOr("JOURNAL_MAX_ENTRIES", 1000),

		ConnectivityProbeURL: os.Getenv("CONNECTIVITY_PROBE_URL"),
		ConnectivityInterval: envDurationMsOr("CONNECTIVITY_INTERVAL_MS", 15*time.Second),

		StreakTimezone:       envOr("STREAK_TIMEZONE", "UTC"),
		PracticeHistoryLimit: envIntOr("PRACTICE_HISTORY_LIMIT", 50),
		StudySessionLimit:    envIntOr("STUDY_SESSION_LIMIT", 500),
		DailyProgressDays:    envIntOr("DAILY_PROGRESS_DAYS", 365),
	}
}

// Validate checks the configuration and returns the first problem found,
// named by its environment variable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ADDR cannot be empty")
	}
	switch c.LocalStore {
	case LocalStoreBadger:
		if c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH cannot be empty when LOCAL_STORE=badger")
		}
	case LocalStoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when LOCAL_STORE=sqlite")
		}
	default:
		return fmt.Errorf("LOCAL_STORE must be one of badger, sqlite (got %q)", c.LocalStore)
	}
	switch c.RemoteStore {
	case RemoteStoreNone, RemoteStoreMemory:
	case RemoteStoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI cannot be empty when REMOTE_STORE=mongo")
		}
		if c.MongoDatabase == "" || c.MongoCollection == "" {
			return fmt.Errorf("MONGO_DATABASE and MONGO_COLLECTION are required when REMOTE_STORE=mongo")
		}
	case RemoteStoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty when REMOTE_STORE=redis")
		}
	default:
		return fmt.Errorf("REMOTE_STORE must be one of none, memory, mongo, redis (got %q)", c.RemoteStore)
	}
	if c.SyncDebounce < 0 {
		return fmt.Errorf("SYNC_DEBOUNCE_MS must be >= 0")
	}
	if c.SyncRetryInitialDelay <= 0 {
		return fmt.Errorf("SYNC_RETRY_INITIAL_MS must be > 0")
	}
	if c.SyncRetryMultiplier < 1 {
		return fmt.Errorf("SYNC_RETRY_MULTIPLIER must be >= 1")
	}
	if c.SyncRetryMaxAttempts < 1 || c.SyncRetryMaxAttempts > 20 {
		return fmt.Errorf("SYNC_RETRY_MAX_ATTEMPTS must be between 1 and 20")
	}
	if c.SyncPushTimeout <= 0 {
		return fmt.Errorf("SYNC_PUSH_TIMEOUT_MS must be > 0")
	}
	if c.SyncQueueSize < 1 {
		return fmt.Errorf("SYNC_QUEUE_SIZE must be >= 1")
	}
	if c.ReconcileInterval <= 0 || c.BadgerGCInterval <= 0 || c.DueReportInterval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL_MS, BADGER_GC_INTERVAL_MS and DUE_REPORT_INTERVAL_MS must be > 0")
	}
	if c.ConnectivityProbeURL != "" && c.ConnectivityInterval <= 0 {
		return fmt.Errorf("CONNECTIVITY_INTERVAL_MS must be > 0 when CONNECTIVITY_PROBE_URL is set")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("STREAK_TIMEZONE is invalid: %w", err)
	}
	if c.PracticeHistoryLimit < 1 {
		return fmt.Errorf("PRACTICE_HISTORY_LIMIT must be >= 1")
	}
	if c.StudySessionLimit < 1 {
		return fmt.Errorf("STUDY_SESSION_LIMIT must be >= 1")
	}
	if c.DailyProgressDays < 1 {
		return fmt.Errorf("DAILY_PROGRESS_DAYS must be >= 1")
	}
	return nil
}

// Location resolves StreakTimezone, the single zone used for calendar-day math.
func (c Config) Location() (*time.Location, error) {
	if c.StreakTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.StreakTimezone)
}

// Retention bounds the history kept in the progress snapshot.
func (c Config) Retention() models.Retention {
	return models.Retention{
		PracticeHistory:   c.PracticeHistoryLimit,
		StudySessions:     c.StudySessionLimit,
		DailyProgressDays: c.DailyProgressDays,
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %g", key, v, def)
	}
	return def
}

func envDurationMsOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		log.Printf("invalid value for %s=%q, using default %v", key, v, def)
	}
	return def
}
