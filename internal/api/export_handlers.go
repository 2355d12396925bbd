package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/export"
	"github.com/vytor/kotoflash/internal/logger"
)

const maxImportBytes = 16 << 20

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	state, err := s.ProgressService.Snapshot(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}

	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, state, loc); err != nil {
		handleError(w, r, errors.NewInternalError(err))
		return
	}

	name := fmt.Sprintf("kotoflash-progress-%s.xlsx", time.Now().In(loc).Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Warn("failed to write export: %v", err)
		return
	}
	log.Info("exported progress workbook: %d items, %d bytes", len(state.Items), buf.Len())
}

// handleImportItems registers catalog items from an uploaded workbook. The
// body is either the raw xlsx or a multipart form with a "file" field.
func (s *Server) handleImportItems(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			handleError(w, r, errors.NewBadRequestError("multipart upload needs a file field"))
			return
		}
		defer file.Close()
		body = file
	}

	seeds, err := export.ReadItemSeeds(body)
	if err != nil {
		log.Warn("failed to read item workbook: %v", err)
		handleError(w, r, errors.NewBadRequestError(fmt.Sprintf("invalid workbook: %v", err)))
		return
	}

	n, err := s.ProgressService.RegisterItems(r.Context(), seeds)
	if err != nil {
		handleError(w, r, err)
		return
	}
	log.Info("imported %d items from workbook", n)
	writeJSON(w, r, http.StatusCreated, registerItemsResponse{Registered: n})
}
