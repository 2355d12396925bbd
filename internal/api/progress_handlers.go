package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/logger"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
)

type answerRequest struct {
	Correct  *bool  `json:"correct" validate:"required"`
	Activity string `json:"activity" validate:"omitempty,oneof=flashcards quiz review writing reading listening"`
}

// reviewRequest takes either a numeric SM-2 quality or a rating name.
type reviewRequest struct {
	Quality *int   `json:"quality" validate:"required_without=Rating,omitempty,gte=0,lte=5"`
	Rating  string `json:"rating" validate:"required_without=Quality,omitempty,max=16"`
}

type itemSeedRequest struct {
	ID         string               `json:"id" validate:"required,max=128"`
	Kind       string               `json:"kind" validate:"omitempty,oneof=word kanji"`
	Difficulty string               `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Category   string               `json:"category"`
	Section    string               `json:"section"`
	Word       *models.WordDetails  `json:"word"`
	Kanji      *models.KanjiDetails `json:"kanji"`
}

type registerItemsRequest struct {
	Items []itemSeedRequest `json:"items" validate:"required,min=1,max=5000,dive"`
}

type registerItemsResponse struct {
	Registered int `json:"registered"`
}

type studySessionRequest struct {
	StartedAt       time.Time `json:"startedAt"`
	DurationMinutes int       `json:"durationMinutes" validate:"gte=0,lte=1440"`
	ActivityType    string    `json:"activityType" validate:"required"`
	Section         string    `json:"section"`
	ItemsStudied    int       `json:"itemsStudied" validate:"gte=0"`
	CorrectAnswers  int       `json:"correctAnswers" validate:"gte=0"`
	Points          int       `json:"points" validate:"gte=0"`
	IsQuiz          bool      `json:"isQuiz"`
}

type preferencesRequest struct {
	DailyGoalMinutes *int  `json:"dailyGoalMinutes" validate:"required,gte=0"`
	ReviewBatchSize  *int  `json:"reviewBatchSize" validate:"required,gte=0"`
	ShowRomaji       *bool `json:"showRomaji" validate:"required"`
	AudioEnabled     *bool `json:"audioEnabled" validate:"required"`
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req answerRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	log = log.WithFields(map[string]any{
		"item_id":  id,
		"correct":  *req.Correct,
		"activity": req.Activity,
	})
	log.Debug("recording answer")

	rec, err := s.ProgressService.RecordAnswer(r.Context(), id, *req.Correct, req.Activity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleRateReview(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	var (
		rec *models.ItemRecord
		err error
	)
	if req.Quality != nil {
		log.Debug("rating review: item_id=%s, quality=%d", id, *req.Quality)
		rec, err = s.ProgressService.RateReview(r.Context(), id, *req.Quality)
	} else {
		log.Debug("rating review: item_id=%s, rating=%s", id, req.Rating)
		rec, err = s.ProgressService.RateReviewByName(r.Context(), id, req.Rating)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ProgressService.ToggleFavorite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleRegisterItems(w http.ResponseWriter, r *http.Request) {
	var req registerItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	seeds := make([]progress.ItemSeed, 0, len(req.Items))
	for _, it := range req.Items {
		seed := progress.ItemSeed{
			ID:         it.ID,
			Kind:       models.ItemKind(it.Kind),
			Difficulty: models.Difficulty(it.Difficulty),
			Category:   it.Category,
			Word:       it.Word,
			Kanji:      it.Kanji,
		}
		if it.Section != "" {
			section, err := models.ParseSection(it.Section)
			if err != nil {
				handleError(w, r, errors.WrapValidationError("section", err))
				return
			}
			seed.Section = section
		}
		seeds = append(seeds, seed)
	}

	n, err := s.ProgressService.RegisterItems(r.Context(), seeds)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, registerItemsResponse{Registered: n})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ProgressService.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleDueItems(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handleError(w, r, errors.NewValidationError("limit", "must be a non-negative integer"))
			return
		}
		limit = n
	}

	items, err := s.ProgressService.DueItems(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items)
}

func (s *Server) handleAddStudySession(w http.ResponseWriter, r *http.Request) {
	var req studySessionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	session := models.StudySession{
		StartedAt:       req.StartedAt,
		DurationMinutes: req.DurationMinutes,
		ActivityType:    models.ActivityType(strings.ToLower(req.ActivityType)),
		ItemsStudied:    req.ItemsStudied,
		CorrectAnswers:  req.CorrectAnswers,
		Points:          req.Points,
		IsQuiz:          req.IsQuiz,
	}
	if req.Section != "" {
		section, err := models.ParseSection(req.Section)
		if err != nil {
			handleError(w, r, errors.WrapValidationError("section", err))
			return
		}
		session.Section = section
	}

	stats, err := s.ProgressService.AddStudySession(r.Context(), session)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stats)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.ProgressService.GetPreferences(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	prefs, err := s.ProgressService.UpdatePreferences(r.Context(), models.Preferences{
		DailyGoalMinutes: *req.DailyGoalMinutes,
		ReviewBatchSize:  *req.ReviewBatchSize,
		ShowRomaji:       *req.ShowRomaji,
		AudioEnabled:     *req.AudioEnabled,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.ProgressService.ResetAll(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	sections, err := s.ProgressService.GetSections(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sections)
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	agg, err := s.ProgressService.GetSection(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, agg)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ProgressService.GetStatistics(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
