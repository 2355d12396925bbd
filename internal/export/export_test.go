package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/kotoflash/internal/export"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/vytor/kotoflash/internal/progress"
	"github.com/xuri/excelize/v2"
)

func sampleState() *models.ProgressState {
	now := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	s := models.DefaultProgressState()

	word := progress.NewRecord("w-neko", now)
	word.Word = &models.WordDetails{Term: "猫", Reading: "ねこ", Meaning: "cat"}
	word.MasteryLevel = 4
	word.ReviewCount, word.CorrectAnswers = 4, 4
	s.Items[word.ID] = word

	kanji := progress.NewRecord("k-hi", now)
	kanji.Kind = models.KindKanji
	kanji.Section = models.SectionKanji
	kanji.Kanji = &models.KanjiDetails{
		Character: "日", Onyomi: []string{"ニチ", "ジツ"}, Kunyomi: []string{"ひ"},
		Meanings: []string{"day", "sun"}, StrokeCount: 4, JLPTLevel: 5,
	}
	s.Items[kanji.ID] = kanji

	s.Statistics.DailyProgress["2024-05-02"] = 15
	s.Statistics.StudySessions = append(s.Statistics.StudySessions, models.StudySession{
		ID: "s1", StartedAt: now, DurationMinutes: 15, ActivityType: models.ActivityQuiz, IsQuiz: true,
	})
	s.UpdatedAt = now
	return s
}

func TestWriteWorkbook_Sheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, sampleState(), time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t,
		[]string{export.SheetItems, export.SheetSections, export.SheetStatistics, export.SheetSessions},
		f.GetSheetList())

	items, err := f.GetRows(export.SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "ID", items[0][0])
	assert.Equal(t, "k-hi", items[1][0], "rows are sorted by id")
	assert.Equal(t, "w-neko", items[2][0])
	assert.Contains(t, items[2], "mastered")

	sections, err := f.GetRows(export.SheetSections)
	require.NoError(t, err)
	assert.Len(t, sections, 9)

	sessions, err := f.GetRows(export.SheetSessions)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[1][0])
}

func TestReadItemSeeds_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteWorkbook(&buf, sampleState(), time.UTC))

	seeds, err := export.ReadItemSeeds(&buf)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	kanji := seeds[0]
	assert.Equal(t, "k-hi", kanji.ID)
	assert.Equal(t, models.KindKanji, kanji.Kind)
	assert.Equal(t, models.SectionKanji, kanji.Section)
	require.NotNil(t, kanji.Kanji)
	assert.Equal(t, []string{"ニチ", "ジツ"}, kanji.Kanji.Onyomi)
	assert.Equal(t, 4, kanji.Kanji.StrokeCount)
	assert.Equal(t, 5, kanji.Kanji.JLPTLevel)
	assert.Nil(t, kanji.Word)

	word := seeds[1]
	require.NotNil(t, word.Word)
	assert.Equal(t, "猫", word.Word.Term)
	assert.Equal(t, "cat", word.Word.Meaning)
}

func TestReadItemSeeds_HandWrittenSheet(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"id", "section", "term", "meaning"},
		{"w1", "Phrases", "おはよう", "good morning"},
		{"", "phrases", "skipped", ""},
		{"w2", "", "ありがとう", "thanks"},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	seeds, err := export.ReadItemSeeds(&buf)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, models.SectionPhrases, seeds[0].Section)
	assert.Equal(t, models.Section(""), seeds[1].Section)
	assert.Equal(t, "ありがとう", seeds[1].Word.Term)
}

func TestReadItemSeeds_Errors(t *testing.T) {
	_, err := export.ReadItemSeeds(bytes.NewReader([]byte("not a workbook")))
	assert.Error(t, err)

	f := excelize.NewFile()
	row := []interface{}{"name"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &row))
	row2 := []interface{}{"x"}
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &row2))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	_, err = export.ReadItemSeeds(&buf)
	assert.ErrorIs(t, err, export.ErrNoItemSheet)
}
