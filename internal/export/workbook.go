// Package export writes progress to an Excel workbook and reads item
// catalogs back from one.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vytor/kotoflash/internal/mastery"
	"github.com/vytor/kotoflash/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetItems      = "Items"
	SheetSections   = "Sections"
	SheetStatistics = "Statistics"
	SheetSessions   = "Sessions"

	listSeparator = ", "
	dateLayout    = "2006-01-02"
)

var itemHeader = []string{
	"ID", "Kind", "Section", "Difficulty", "Category",
	"Term", "Reading", "Meaning",
	"Character", "Onyomi", "Kunyomi", "Meanings", "StrokeCount", "JLPT",
	"Mastery", "Status", "Reviews", "Correct", "Incorrect", "Consecutive",
	"Favorite", "LastReviewed", "NextReview", "Repetitions", "IntervalDays", "EaseFactor",
}

// WriteWorkbook renders state as an xlsx workbook with one sheet each for
// items, sections, statistics and study sessions. Dates are rendered in loc.
func WriteWorkbook(w io.Writer, state *models.ProgressState, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	writers := []struct {
		name  string
		write func(*excelize.File, string, int, *models.ProgressState, *time.Location) error
	}{
		{SheetItems, writeItems},
		{SheetSections, writeSections},
		{SheetStatistics, writeStatistics},
		{SheetSessions, writeSessions},
	}
	for i, sw := range writers {
		idx, err := f.NewSheet(sw.name)
		if err != nil {
			return fmt.Errorf("create sheet %s: %w", sw.name, err)
		}
		if i == 0 {
			f.SetActiveSheet(idx)
		}
		if err := sw.write(f, sw.name, header, state, loc); err != nil {
			return fmt.Errorf("write sheet %s: %w", sw.name, err)
		}
	}
	f.DeleteSheet("Sheet1")

	return f.Write(w)
}

func writeHeader(f *excelize.File, sheet string, style int, cols []string) error {
	row := make([]interface{}, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return err
	}
	return f.SetRowStyle(sheet, 1, 1, style)
}

func writeItems(f *excelize.File, sheet string, style int, s *models.ProgressState, loc *time.Location) error {
	if err := writeHeader(f, sheet, style, itemHeader); err != nil {
		return err
	}
	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for i, id := range ids {
		rec := s.Items[id]
		var term, reading, meaning string
		if rec.Word != nil {
			term, reading, meaning = rec.Word.Term, rec.Word.Reading, rec.Word.Meaning
		}
		var char, on, kun, meanings string
		var strokes, jlpt interface{}
		if rec.Kanji != nil {
			char = rec.Kanji.Character
			on = strings.Join(rec.Kanji.Onyomi, listSeparator)
			kun = strings.Join(rec.Kanji.Kunyomi, listSeparator)
			meanings = strings.Join(rec.Kanji.Meanings, listSeparator)
			strokes, jlpt = rec.Kanji.StrokeCount, rec.Kanji.JLPTLevel
		}
		row := []interface{}{
			rec.ID, string(rec.Kind), string(rec.Section), string(rec.Difficulty), rec.Category,
			term, reading, meaning,
			char, on, kun, meanings, strokes, jlpt,
			rec.MasteryLevel, mastery.Classify(rec.MasteryLevel).String(),
			rec.ReviewCount, rec.CorrectAnswers, rec.IncorrectAnswers, rec.ConsecutiveCorrect,
			rec.Favorite, formatTime(rec.LastReviewed, loc), formatTime(rec.NextReviewDate, loc),
			rec.Scheduler.Repetitions, rec.Scheduler.IntervalDays, rec.Scheduler.EaseFactor,
		}
		if err := f.SetSheetRow(sheet, cellName(i+2), &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 18)
}

func writeSections(f *excelize.File, sheet string, style int, s *models.ProgressState, loc *time.Location) error {
	cols := []string{"Section", "Total", "Mastered", "InProgress", "NotStarted", "AverageMastery", "LastStudied", "Streak"}
	if err := writeHeader(f, sheet, style, cols); err != nil {
		return err
	}
	for i, key := range models.AllSections() {
		agg := s.Sections[key]
		row := []interface{}{
			string(key), agg.TotalItems, agg.MasteredItems, agg.InProgressItems, agg.NotStartedItems,
			agg.AverageMastery, formatTime(agg.LastStudied, loc), agg.Streak,
		}
		if err := f.SetSheetRow(sheet, cellName(i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func writeStatistics(f *excelize.File, sheet string, style int, s *models.ProgressState, loc *time.Location) error {
	if err := writeHeader(f, sheet, style, []string{"Metric", "Value"}); err != nil {
		return err
	}
	st := s.Statistics
	rows := [][]interface{}{
		{"totalStudyTimeMinutes", st.TotalStudyTimeMinutes},
		{"currentStreak", st.CurrentStreak},
		{"longestStreak", st.LongestStreak},
		{"lastStudyDate", formatTime(st.LastStudyDate, loc)},
		{"totalQuizzes", st.TotalQuizzes},
		{"totalPoints", st.TotalPoints},
		{"totalReviews", st.TotalReviews},
		{"achievements", len(st.Achievements)},
		{"updatedAt", formatTime(s.UpdatedAt, loc)},
	}

	days := make([]string, 0, len(st.DailyProgress))
	for day := range st.DailyProgress {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		rows = append(rows, []interface{}{"minutes " + day, st.DailyProgress[day]})
	}

	for i := range rows {
		if err := f.SetSheetRow(sheet, cellName(i+2), &rows[i]); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 24)
}

func writeSessions(f *excelize.File, sheet string, style int, s *models.ProgressState, loc *time.Location) error {
	cols := []string{"ID", "StartedAt", "DurationMinutes", "Activity", "Section", "ItemsStudied", "Correct", "Points", "Quiz"}
	if err := writeHeader(f, sheet, style, cols); err != nil {
		return err
	}
	for i, ss := range s.Statistics.StudySessions {
		row := []interface{}{
			ss.ID, formatTime(ss.StartedAt, loc), ss.DurationMinutes, string(ss.ActivityType), string(ss.Section),
			ss.ItemsStudied, ss.CorrectAnswers, ss.Points, ss.IsQuiz,
		}
		if err := f.SetSheetRow(sheet, cellName(i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func cellName(row int) string {
	return "A" + strconv.Itoa(row)
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(time.RFC3339)
}
