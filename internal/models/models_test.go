package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/kotoflash/internal/models"
)

func TestDefaultProgressState_HasEverySection(t *testing.T) {
	state := models.DefaultProgressState()

	assert.Equal(t, models.CurrentSchemaVersion, state.SchemaVersion)
	require.Len(t, state.Sections, 8)
	for _, s := range models.AllSections() {
		assert.Contains(t, state.Sections, s)
	}
}

func TestParseSection(t *testing.T) {
	s, err := models.ParseSection(" Kanji ")
	require.NoError(t, err)
	assert.Equal(t, models.SectionKanji, s)

	_, err = models.ParseSection("music")
	assert.ErrorIs(t, err, models.ErrUnknownSection)
}

func TestProgressState_CloneIsDeep(t *testing.T) {
	state := models.DefaultProgressState()
	state.Items["neko"] = models.ItemRecord{
		ID:              "neko",
		Kind:            models.KindKanji,
		PracticeHistory: []models.PracticeEntry{{Score: 1}},
		Kanji:           &models.KanjiDetails{Character: "猫", Meanings: []string{"cat"}},
	}
	state.Statistics.DailyProgress["2024-01-01"] = 10

	clone := state.Clone()
	rec := clone.Items["neko"]
	rec.PracticeHistory[0].Score = 0
	rec.Kanji.Meanings[0] = "dog"
	clone.Statistics.DailyProgress["2024-01-01"] = 99
	clone.Sections[models.SectionKanji] = models.SectionAggregate{TotalItems: 3}

	orig := state.Items["neko"]
	assert.Equal(t, 1.0, orig.PracticeHistory[0].Score)
	assert.Equal(t, "cat", orig.Kanji.Meanings[0])
	assert.Equal(t, 10, state.Statistics.DailyProgress["2024-01-01"])
	assert.Equal(t, 0, state.Sections[models.SectionKanji].TotalItems)
}

func TestItemRecord_IsDue(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	rec := models.ItemRecord{NextReviewDate: now}

	assert.True(t, rec.IsDue(now))
	assert.False(t, rec.IsDue(now.Add(-time.Second)))
}

func TestRetention_Trim(t *testing.T) {
	r := models.Retention{PracticeHistory: 2, StudySessions: 1, DailyProgressDays: 2}

	h := r.TrimHistory([]models.PracticeEntry{{Score: 1}, {Score: 2}, {Score: 3}})
	assert.Equal(t, []models.PracticeEntry{{Score: 2}, {Score: 3}}, h)

	s := r.TrimSessions([]models.StudySession{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, []models.StudySession{{ID: "b"}}, s)

	days := map[string]int{"2024-01-01": 1, "2024-01-03": 3, "2024-01-02": 2}
	r.TrimDailyProgress(days)
	assert.Equal(t, map[string]int{"2024-01-02": 2, "2024-01-03": 3}, days)
}
