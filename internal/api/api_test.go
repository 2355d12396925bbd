package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vytor/kotoflash/internal/api"
	"github.com/vytor/kotoflash/internal/connectivity"
	"github.com/vytor/kotoflash/internal/export"
	"github.com/vytor/kotoflash/internal/metrics"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/vytor/kotoflash/internal/remote"
	"github.com/vytor/kotoflash/internal/repository"
	"github.com/vytor/kotoflash/internal/services"
	"github.com/vytor/kotoflash/internal/session"
	"github.com/vytor/kotoflash/internal/syncer"
	"github.com/vytor/kotoflash/internal/testutil/mocks"
	"github.com/xuri/excelize/v2"
)

type fixture struct {
	handler http.Handler
	server  *api.Server
	local   *mocks.MockLocalStore
	journal *mocks.MockSyncJournal
	remote  *remote.MemoryStore
	tracker *progress.Tracker
}

func newFixture(t *testing.T, putErr error) *fixture {
	t.Helper()

	local := new(mocks.MockLocalStore)
	local.On("Put", mock.Anything, repository.ProgressKey, mock.Anything).Return(putErr)

	journal := new(mocks.MockSyncJournal)
	journal.On("Append", mock.Anything, mock.Anything).Return(int64(1), nil).Maybe()

	m := metrics.New()
	store := remote.NewMemoryStore()
	sess := session.New("")
	tr := progress.NewTracker(nil)

	cfg := syncer.DefaultConfig()
	cfg.DeviceID = "api-test"
	cfg.Debounce = 10 * time.Millisecond
	cfg.RetryInitialDelay = 5 * time.Millisecond
	coord := syncer.New(cfg, local, tr,
		syncer.WithRemote(store),
		syncer.WithSignal(connectivity.NewManual(true)),
		syncer.WithSession(sess),
		syncer.WithJournal(journal),
		syncer.WithMetrics(m),
	)
	coord.Start(context.Background())
	t.Cleanup(coord.Stop)

	srv := &api.Server{
		ProgressService: services.NewProgressService(tr, m),
		SyncService:     services.NewSyncService(coord, sess, journal),
		Metrics:         m,
		Location:        time.UTC,
		RequestTimeout:  5 * time.Second,
	}
	return &fixture{
		handler: srv.Routes(),
		server:  srv,
		local:   local,
		journal: journal,
		remote:  store,
		tracker: tr,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decode[errorResponse](t, rec).Error.Code)
}

func TestRecordAnswer(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true, "activity": "quiz"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	item := decode[models.ItemRecord](t, rec)
	assert.Equal(t, "word-1", item.ID)
	assert.Equal(t, 1, item.ReviewCount)
	assert.Equal(t, 1, item.CorrectAnswers)
	f.local.AssertCalled(t, "Put", mock.Anything, repository.ProgressKey, mock.Anything)

	rec = f.do(t, http.MethodGet, "/items/word-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.ItemRecord](t, rec).ReviewCount)
}

func TestRecordAnswer_RejectsBadRequests(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"missing correct", map[string]any{"activity": "quiz"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown activity", map[string]any{"correct": true, "activity": "juggling"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", `{"correct":true,"bonus":3}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"malformed json", `{"correct":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"empty body", "", http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/items/word-1/answer", tt.body)
			assertError(t, rec, tt.status, tt.code)
		})
	}
	f.local.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordAnswer_LocalPersistenceFailure(t *testing.T) {
	f := newFixture(t, errors.New("disk full"))

	rec := f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true})
	assertError(t, rec, http.StatusServiceUnavailable, "LOCAL_PERSISTENCE_ERROR")

	rec = f.do(t, http.MethodGet, "/items/word-1", nil)
	assertError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestRateReview(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/items/word-1/review", map[string]any{"quality": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[models.ItemRecord](t, rec).Scheduler.Repetitions)

	rec = f.do(t, http.MethodPost, "/items/word-1/review", map[string]any{"rating": "good"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[models.ItemRecord](t, rec).Scheduler.Repetitions)

	assertError(t, f.do(t, http.MethodPost, "/items/word-1/review", map[string]any{"quality": 7}), http.StatusBadRequest, "VALIDATION_ERROR")
	assertError(t, f.do(t, http.MethodPost, "/items/word-1/review", map[string]any{}), http.StatusBadRequest, "VALIDATION_ERROR")
	assertError(t, f.do(t, http.MethodPost, "/items/word-1/review", map[string]any{"rating": "brilliant"}), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/items/word-1/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.ItemRecord](t, rec).Favorite)

	rec = f.do(t, http.MethodPost, "/items/word-1/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.ItemRecord](t, rec).Favorite)
}

func TestGetItem_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	assertError(t, f.do(t, http.MethodGet, "/items/missing", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestRegisterItemsAndSections(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/items", map[string]any{
		"items": []map[string]any{
			{"id": "kanji-1", "kind": "kanji", "section": "Kanji", "kanji": map[string]any{"character": "日", "strokeCount": 4}},
			{"id": "word-1", "kind": "word", "word": map[string]any{"term": "ねこ", "meaning": "cat"}},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[map[string]int](t, rec)["registered"])

	rec = f.do(t, http.MethodGet, "/sections/kanji", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.SectionAggregate](t, rec).TotalItems)

	rec = f.do(t, http.MethodGet, "/sections", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string]models.SectionAggregate](t, rec), len(models.AllSections()))

	assertError(t, f.do(t, http.MethodGet, "/sections/astronomy", nil), http.StatusBadRequest, "VALIDATION_ERROR")
	assertError(t, f.do(t, http.MethodPost, "/items", map[string]any{"items": []any{}}), http.StatusBadRequest, "VALIDATION_ERROR")
	assertError(t, f.do(t, http.MethodPost, "/items", map[string]any{
		"items": []map[string]any{{"id": "x", "kind": "sentence"}},
	}), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestDueItems(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/items/due?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.ItemRecord](t, rec))

	assertError(t, f.do(t, http.MethodGet, "/items/due?limit=abc", nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestStudySessionsAndStatistics(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/sessions", map[string]any{
		"durationMinutes": 12,
		"activityType":    "quiz",
		"itemsStudied":    10,
		"correctAnswers":  8,
		"points":          80,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	stats := decode[models.Statistics](t, rec)
	assert.Equal(t, 12, stats.TotalStudyTimeMinutes)
	assert.Equal(t, 1, stats.TotalQuizzes)

	rec = f.do(t, http.MethodGet, "/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 80, decode[models.Statistics](t, rec).TotalPoints)

	assertError(t, f.do(t, http.MethodPost, "/sessions", map[string]any{"durationMinutes": -1, "activityType": "quiz"}), http.StatusBadRequest, "VALIDATION_ERROR")
	assertError(t, f.do(t, http.MethodPost, "/sessions", map[string]any{"durationMinutes": 5, "activityType": "juggling"}), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestPreferences(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DefaultPreferences(), decode[models.Preferences](t, rec))

	want := models.Preferences{DailyGoalMinutes: 30, ReviewBatchSize: 10, ShowRomaji: false, AudioEnabled: true}
	rec = f.do(t, http.MethodPut, "/preferences", want)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, want, decode[models.Preferences](t, rec))

	assertError(t, f.do(t, http.MethodPut, "/preferences", map[string]any{"dailyGoalMinutes": 30}), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true}).Code)

	rec := f.do(t, http.MethodPost, "/reset", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assertError(t, f.do(t, http.MethodGet, "/items/word-1", nil), http.StatusNotFound, "NOT_FOUND")
}

func TestSyncEndpoints_SignedOut(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/sync/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[syncer.Status](t, rec)
	assert.False(t, st.Authenticated)
	assert.True(t, st.RemoteEnabled)
	assert.True(t, st.Online)

	assertError(t, f.do(t, http.MethodPost, "/sync/now", nil), http.StatusConflict, "SYNC_ERROR")
}

func TestSessionSignInPushesLocalProgress(t *testing.T) {
	f := newFixture(t, nil)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true}).Code)
	assert.Empty(t, f.remote.Writes())

	assertError(t, f.do(t, http.MethodPost, "/session", map[string]any{"userId": ""}), http.StatusBadRequest, "VALIDATION_ERROR")

	rec := f.do(t, http.MethodPost, "/session", map[string]any{"userId": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[syncer.Status](t, rec).Authenticated)

	require.Eventually(t, func() bool {
		return len(f.remote.Writes()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, remote.ProgressPath("user-1"), f.remote.Writes()[0].Path)

	rec = f.do(t, http.MethodPost, "/sync/now", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[syncer.Status](t, rec).Authenticated)
}

func TestSyncJournal(t *testing.T) {
	f := newFixture(t, nil)

	entries := []models.SyncJournalEntry{
		{ID: 2, UserID: "user-1", Direction: models.SyncPush, Outcome: models.OutcomeFailure, Attempt: 1},
	}
	f.journal.On("List", mock.Anything, models.SyncJournalFilter{
		Outcome: models.OutcomeFailure,
		Limit:   5,
	}).Return(entries, nil).Once()

	rec := f.do(t, http.MethodGet, "/sync/journal?outcome=failure&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[[]models.SyncJournalEntry](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
	f.journal.AssertExpectations(t)

	assertError(t, f.do(t, http.MethodGet, "/sync/journal?limit=0", nil), http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestSyncJournal_StoreFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.journal.On("List", mock.Anything, mock.Anything).Return(nil, errors.New("database is locked")).Once()

	assertError(t, f.do(t, http.MethodGet, "/sync/journal", nil), http.StatusInternalServerError, "INTERNAL_ERROR")
}

func TestExportWorkbook(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true}).Code)

	rec := f.do(t, http.MethodGet, "/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	wb, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer wb.Close()
	assert.Contains(t, wb.GetSheetList(), export.SheetItems)

	rows, err := wb.GetRows(export.SheetItems)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "word-1", rows[1][0])
}

func TestImportItems(t *testing.T) {
	f := newFixture(t, nil)

	wb := excelize.NewFile()
	_, err := wb.NewSheet(export.SheetItems)
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow(export.SheetItems, "A1", &[]interface{}{"ID", "Kind", "Section", "Term", "Meaning"}))
	require.NoError(t, wb.SetSheetRow(export.SheetItems, "A2", &[]interface{}{"word-9", "word", "phrases", "ありがとう", "thank you"}))
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/items/import", bytes.NewReader(buf.Bytes()))
	req.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	item, ok := f.tracker.Item("word-9")
	require.True(t, ok)
	assert.Equal(t, models.SectionPhrases, item.Section)
	require.NotNil(t, item.Word)
	assert.Equal(t, "thank you", item.Word.Meaning)

	assertError(t, f.do(t, http.MethodPost, "/items/import", "not a workbook"), http.StatusBadRequest, "BAD_REQUEST")
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", nil).Code)

	f.server.Ready = func() error { return errors.New("closed") }
	handler := f.server.Routes()
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/items/word-1/answer", map[string]any{"correct": true}).Code)

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kotoflash_sync_degraded")
	assert.Contains(t, rec.Body.String(), "kotoflash_progress_mutation_duration_seconds")
}

func TestSyncWebSocket_StreamsStatus(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/sync/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var st syncer.Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.False(t, st.Authenticated)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/session", map[string]any{"userId": "user-1"}).Code)

	for !st.Authenticated {
		require.NoError(t, conn.ReadJSON(&st))
	}
	assert.Equal(t, "user-1", st.UserID)
}
