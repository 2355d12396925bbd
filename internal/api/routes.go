package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/services"
)

// Server serves the progress and sync HTTP API.
type Server struct {
	ProgressService services.ProgressService
	SyncService     services.SyncService
	Metrics         *metrics.Metrics
	Location        *time.Location
	// Ready reports whether local storage is usable. Nil means always ready.
	Ready          func() error
	RequestTimeout time.Duration
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler())
	}
	// The websocket is long-lived and must not sit behind the request timeout.
	r.Get("/sync/ws", s.handleSyncWebSocket)

	r.Group(func(r chi.Router) {
		if s.RequestTimeout > 0 {
			r.Use(timeoutMiddleware(s.RequestTimeout))
		}

		r.Post("/items", s.handleRegisterItems)
		r.Post("/items/import", s.handleImportItems)
		r.Get("/items/due", s.handleDueItems)
		r.Get("/items/{id}", s.handleGetItem)
		r.Post("/items/{id}/answer", s.handleRecordAnswer)
		r.Post("/items/{id}/review", s.handleRateReview)
		r.Post("/items/{id}/favorite", s.handleToggleFavorite)

		r.Post("/sessions", s.handleAddStudySession)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handleUpdatePreferences)
		r.Post("/reset", s.handleReset)

		r.Get("/sections", s.handleSections)
		r.Get("/sections/{key}", s.handleSection)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/export.xlsx", s.handleExport)

		r.Post("/session", s.handleSignIn)
		r.Delete("/session", s.handleSignOut)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/sync/now", s.handleSyncNow)
		r.Get("/sync/journal", s.handleSyncJournal)
	})
	return r
}
