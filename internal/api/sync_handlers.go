package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/models"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type signInRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.SyncService.Status(r.Context()))
}

func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.SyncService.SyncNow(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, s.SyncService.Status(r.Context()))
}

func (s *Server) handleSyncJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SyncJournalFilter{
		UserID:    q.Get("user_id"),
		Direction: models.SyncDirection(q.Get("direction")),
		Outcome:   models.SyncOutcome(q.Get("outcome")),
		Limit:     50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			handleError(w, r, errors.NewValidationError("limit", "must be between 1 and 1000"))
			return
		}
		filter.Limit = n
	}

	entries, err := s.SyncService.Journal(r.Context(), filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, entries)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if err := s.SyncService.SignIn(r.Context(), req.UserID); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, s.SyncService.Status(r.Context()))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.SyncService.SignOut(r.Context())
	writeJSON(w, r, http.StatusOK, s.SyncService.Status(r.Context()))
}

// handleSyncWebSocket streams sync status changes until the client goes away.
// The current status is sent immediately on connect.
func (s *Server) handleSyncWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("failed to upgrade the websocket: %v", err)
		return
	}
	defer ws.Close()
	log.Info("sync status client connected")

	updates, cancel := s.SyncService.Watch(r.Context())
	defer cancel()

	// Reads only serve to notice the close frame and to handle pongs.
	closed := make(chan struct{})
	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			log.Info("sync status client disconnected")
			return
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(st); err != nil {
				log.Warn("failed to write sync status: %v", err)
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
