package migration_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/migration"
	"github.com/vytor/kotoflash/internal/models"
)

const legacyDocument = `{
	"items": {
		"taberu": {"id": "taberu", "masteryLevel": 3, "reviewCount": 9, "correctAnswers": 4, "incorrectAnswers": 1,
			"consecutiveCorrect": 7, "section": "vocabulary", "japanese": "食べる", "meaning": "to eat",
			"scheduler": {"repetitions": 2, "intervalDays": 6, "easeFactor": 0}},
		"hi": {"masteryLevel": 1, "correctAnswers": 3, "consecutiveCorrect": 3, "section": "kanji",
			"character": "日", "onyomi": ["ニチ"], "meanings": ["day", "sun"]},
		"neko": {"masteryLevel": 5, "section": "dictionary", "difficulty": "brutal",
			"scheduler": {"repetitions": 4, "intervalDays": 20, "easeFactor": 1.1}}
	},
	"sections": {
		"dictionary": {"totalItems": 42, "masteredItems": 40, "lastStudied": "2024-02-01T10:00:00Z", "streak": 3},
		"kanji": {"totalItems": 1},
		"vocabulary": {"totalItems": 9}
	},
	"statistics": {
		"currentStreak": 4, "longestStreak": 2,
		"achievements": [{"id": "first_review", "unlockedAt": "2024-01-01T00:00:00Z"}, {"id": "first_review", "unlockedAt": "2024-01-05T00:00:00Z"}]
	},
	"preferences": {"dailyGoalMinutes": 20}
}`

func TestMigrate_LegacyDocument(t *testing.T) {
	state, err := migration.Migrate([]byte(legacyDocument), models.DefaultRetention())
	require.NoError(t, err)

	assert.Equal(t, models.CurrentSchemaVersion, state.SchemaVersion)
	require.Len(t, state.Sections, 8)
	assert.NotContains(t, state.Sections, models.Section("vocabulary"))

	taberu := state.Items["taberu"]
	assert.Equal(t, models.DefaultSection, taberu.Section)
	assert.Equal(t, models.KindWord, taberu.Kind)
	require.NotNil(t, taberu.Word)
	assert.Equal(t, "食べる", taberu.Word.Term)
	assert.Equal(t, 5, taberu.ReviewCount)
	assert.Equal(t, 4, taberu.ConsecutiveCorrect)
	assert.Equal(t, models.DefaultEaseFactor, taberu.Scheduler.EaseFactor)

	hi := state.Items["hi"]
	assert.Equal(t, "hi", hi.ID)
	assert.Equal(t, models.KindKanji, hi.Kind)
	require.NotNil(t, hi.Kanji)
	assert.Equal(t, "日", hi.Kanji.Character)
	assert.InDelta(t, 4.3, hi.MasteryLevel, 1e-9)

	neko := state.Items["neko"]
	assert.Equal(t, models.DifficultyMedium, neko.Difficulty)
	assert.Equal(t, models.MinEaseFactor, neko.Scheduler.EaseFactor)

	dict := state.Sections[models.SectionDictionary]
	assert.Equal(t, 2, dict.TotalItems)
	assert.Equal(t, 1, dict.MasteredItems)
	assert.Equal(t, 1, dict.InProgressItems)
	assert.Equal(t, 3, dict.Streak)
	assert.Equal(t, 1, state.Sections[models.SectionKanji].MasteredItems)

	assert.Equal(t, 4, state.Statistics.LongestStreak)
	require.Len(t, state.Statistics.Achievements, 1)
	assert.Equal(t, 20, state.Preferences.DailyGoalMinutes)

	for key, agg := range state.Sections {
		assert.Equal(t, agg.TotalItems, agg.MasteredItems+agg.InProgressItems+agg.NotStartedItems, "section %s", key)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	inputs := map[string]string{
		"legacy":  legacyDocument,
		"empty":   `{}`,
		"current": mustJSON(t, models.DefaultProgressState()),
		"partial": `{"schemaVersion": 2, "sections": {"kanji": {"streak": -2}}, "items": {"": {"masteryLevel": 2}}}`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			once, err := migration.Migrate([]byte(raw), models.DefaultRetention())
			require.NoError(t, err)
			onceJSON := mustJSON(t, once)

			twice, err := migration.Migrate([]byte(onceJSON), models.DefaultRetention())
			require.NoError(t, err)

			assert.JSONEq(t, onceJSON, mustJSON(t, twice))
			assert.False(t, migration.NeedsMigration(twice))
		})
	}
}

func TestMigrate_TrimsHistory(t *testing.T) {
	state := models.DefaultProgressState()
	history := make([]models.PracticeEntry, 10)
	for i := range history {
		history[i] = models.PracticeEntry{Timestamp: time.Unix(int64(i), 0).UTC(), Score: float64(i)}
	}
	state.Items["a"] = models.ItemRecord{ID: "a", Section: models.SectionNumbers, PracticeHistory: history}

	out := migration.MigrateState(state, models.Retention{PracticeHistory: 3, StudySessions: 10, DailyProgressDays: 10})

	got := out.Items["a"].PracticeHistory
	require.Len(t, got, 3)
	assert.Equal(t, 9.0, got[2].Score)
	assert.Len(t, state.Items["a"].PracticeHistory, 10, "input must not be modified")
}

func TestMigrate_Errors(t *testing.T) {
	tests := map[string]string{
		"garbage": `{"items": [`,
		"null":    `null`,
		"blank":   `  `,
		"future":  `{"schemaVersion": 99}`,
		"wrong":   `{"items": {"a": {"masteryLevel": "high"}}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			state, err := migration.Migrate([]byte(raw), models.DefaultRetention())
			assert.Nil(t, state)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMigration))
		})
	}
}

func TestNeedsMigration(t *testing.T) {
	assert.False(t, migration.NeedsMigration(models.DefaultProgressState()))

	old := models.DefaultProgressState()
	old.SchemaVersion = 1
	assert.True(t, migration.NeedsMigration(old))

	missing := models.DefaultProgressState()
	delete(missing.Sections, models.SectionCulture)
	assert.True(t, migration.NeedsMigration(missing))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
