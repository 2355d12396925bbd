package api

import (
	"net/http"

	"github.com/vytor/kotoflash/internal/logger"
)

type healthResponse struct {
	Status string `json:"status"`
	Sync   string `json:"sync"`
	Online bool   `json:"online"`
}

// handleHealth is the liveness probe. It always answers 200 and reports
// whether sync is degraded without failing the probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Sync: "ok"}
	if s.SyncService != nil {
		st := s.SyncService.Status(r.Context())
		resp.Online = st.Online
		if st.Degraded {
			resp.Sync = "degraded"
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleReady returns 200 when local storage is usable, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if s.Ready != nil {
		if err := s.Ready(); err != nil {
			log.Warn("readiness check failed - local store: %v", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Local store unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
