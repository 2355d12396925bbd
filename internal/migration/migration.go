// Package migration upgrades persisted progress state to the current schema.
package migration

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "github.com/vytor/kotoflash/internal/errors"
	"github.com/vytor/kotoflash/internal/mastery"
	"github.com/vytor/kotoflash/internal/models"
)

// legacyItem captures the flat shape older builds wrote, where kanji fields
// sat directly on the item instead of under "kanji".
type legacyItem struct {
	Character   string   `json:"character"`
	Onyomi      []string `json:"onyomi"`
	Kunyomi     []string `json:"kunyomi"`
	Meanings    []string `json:"meanings"`
	StrokeCount int      `json:"strokeCount"`
	JLPTLevel   int      `json:"jlptLevel"`
	Japanese    string   `json:"japanese"`
	Reading     string   `json:"reading"`
	Meaning     string   `json:"meaning"`
}

type rawState struct {
	Items map[string]legacyItem `json:"items"`
}

// NeedsMigration reports whether s predates the current schema or is
// missing any section aggregate.
func NeedsMigration(s *models.ProgressState) bool {
	if s == nil || s.SchemaVersion < models.CurrentSchemaVersion {
		return true
	}
	for _, key := range models.AllSections() {
		if _, ok := s.Sections[key]; !ok {
			return true
		}
	}
	return false
}

// Migrate decodes raw and returns it upgraded to the current schema.
// Input that cannot be decoded yields a MIGRATION_ERROR; callers fall back
// to models.DefaultProgressState.
func Migrate(raw []byte, retention models.Retention) (*models.ProgressState, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, apperrors.NewMigrationError("empty progress document", nil)
	}
	var state *models.ProgressState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, apperrors.NewMigrationError("undecodable progress document", err)
	}
	if state == nil {
		return nil, apperrors.NewMigrationError("progress document is null", nil)
	}
	if state.SchemaVersion > models.CurrentSchemaVersion {
		return nil, apperrors.NewMigrationError(
			fmt.Sprintf("schema version %d is newer than supported %d", state.SchemaVersion, models.CurrentSchemaVersion), nil)
	}

	var legacy rawState
	if err := json.Unmarshal(raw, &legacy); err == nil {
		for id, rec := range state.Items {
			if l, ok := legacy.Items[id]; ok {
				state.Items[id] = inferPayload(rec, l)
			}
		}
	}
	return MigrateState(state, retention), nil
}

// MigrateState repairs a decoded state. The result is deterministic in its
// input, so applying it twice changes nothing.
func MigrateState(in *models.ProgressState, retention models.Retention) *models.ProgressState {
	s := in.Clone()
	if s == nil {
		s = models.DefaultProgressState()
	}

	items := make(map[string]models.ItemRecord, len(s.Items))
	for key, rec := range s.Items {
		if key == "" {
			continue
		}
		rec.ID = key
		items[key] = repairItem(rec, retention)
	}
	s.Items = items

	s.Sections = mastery.RecalculateSections(s.Items, s.Sections)
	for key, agg := range s.Sections {
		if agg.Streak < 0 {
			agg.Streak = 0
		}
		s.Sections[key] = agg
	}

	s.Statistics = repairStatistics(s.Statistics, retention)
	s.SchemaVersion = models.CurrentSchemaVersion
	return s
}

func inferPayload(rec models.ItemRecord, l legacyItem) models.ItemRecord {
	if rec.Kanji == nil && l.Character != "" {
		rec.Kanji = &models.KanjiDetails{
			Character:   l.Character,
			Onyomi:      l.Onyomi,
			Kunyomi:     l.Kunyomi,
			Meanings:    l.Meanings,
			StrokeCount: l.StrokeCount,
			JLPTLevel:   l.JLPTLevel,
		}
	}
	if rec.Word == nil && rec.Kanji == nil && (l.Japanese != "" || l.Reading != "" || l.Meaning != "") {
		rec.Word = &models.WordDetails{Term: l.Japanese, Reading: l.Reading, Meaning: l.Meaning}
	}
	return rec
}

func repairItem(rec models.ItemRecord, retention models.Retention) models.ItemRecord {
	if !rec.Section.IsValid() {
		rec.Section = models.DefaultSection
	}
	if !rec.Kind.IsValid() {
		rec.Kind = models.KindWord
		if rec.Kanji != nil {
			rec.Kind = models.KindKanji
		}
	}
	if !rec.Difficulty.IsValid() {
		rec.Difficulty = models.DifficultyMedium
	}

	rec.CorrectAnswers = max(0, rec.CorrectAnswers)
	rec.IncorrectAnswers = max(0, rec.IncorrectAnswers)
	rec.ReviewCount = rec.CorrectAnswers + rec.IncorrectAnswers
	rec.ConsecutiveCorrect = min(max(0, rec.ConsecutiveCorrect), rec.CorrectAnswers)

	if math.IsNaN(rec.MasteryLevel) {
		rec.MasteryLevel = 0
	}
	rec.MasteryLevel = mastery.Derive(rec)

	sched := rec.Scheduler
	sched.Repetitions = max(0, sched.Repetitions)
	if math.IsNaN(sched.IntervalDays) || sched.IntervalDays < 0 {
		sched.IntervalDays = 0
	}
	switch {
	case sched.EaseFactor == 0 || math.IsNaN(sched.EaseFactor):
		sched.EaseFactor = models.DefaultEaseFactor
	case sched.EaseFactor < models.MinEaseFactor:
		sched.EaseFactor = models.MinEaseFactor
	}
	rec.Scheduler = sched

	if rec.PracticeHistory == nil {
		rec.PracticeHistory = []models.PracticeEntry{}
	}
	rec.PracticeHistory = retention.TrimHistory(rec.PracticeHistory)
	return rec
}

func repairStatistics(st models.Statistics, retention models.Retention) models.Statistics {
	st.TotalStudyTimeMinutes = max(0, st.TotalStudyTimeMinutes)
	st.CurrentStreak = max(0, st.CurrentStreak)
	st.LongestStreak = max(st.LongestStreak, st.CurrentStreak)
	st.TotalQuizzes = max(0, st.TotalQuizzes)
	st.TotalPoints = max(0, st.TotalPoints)
	st.TotalReviews = max(0, st.TotalReviews)

	if st.DailyProgress == nil {
		st.DailyProgress = make(map[string]int)
	}
	retention.TrimDailyProgress(st.DailyProgress)

	if st.StudySessions == nil {
		st.StudySessions = []models.StudySession{}
	}
	st.StudySessions = retention.TrimSessions(st.StudySessions)

	seen := make(map[string]bool, len(st.Achievements))
	achievements := make([]models.Achievement, 0, len(st.Achievements))
	for _, a := range st.Achievements {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		achievements = append(achievements, a)
	}
	sort.SliceStable(achievements, func(i, j int) bool {
		return achievements[i].UnlockedAt.Before(achievements[j].UnlockedAt)
	})
	st.Achievements = achievements
	return st
}
