package mastery

import (
	"time"

	"github.com/vytor/kotoflash/internal/models"
)

const dayLayout = "2006-01-02"

// DayKey formats t as a calendar date in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(location(loc)).Format(dayLayout)
}

// UpdateStreak advances the global streak for a study event at now.
// Same calendar day is a no-op, the following day extends the streak and
// anything else restarts it at 1. An event earlier than the last study date
// (clock skew between devices) counts as the same day and never moves the
// date backwards.
func UpdateStreak(stats models.Statistics, now time.Time, loc *time.Location) models.Statistics {
	stats.CurrentStreak = nextStreak(stats.LastStudyDate, stats.CurrentStreak, now, loc)
	if stats.CurrentStreak > stats.LongestStreak {
		stats.LongestStreak = stats.CurrentStreak
	}
	stats.LastStudyDate = later(stats.LastStudyDate, now)
	return stats
}

// UpdateSectionStreak applies the streak rule to a single section.
func UpdateSectionStreak(agg models.SectionAggregate, now time.Time, loc *time.Location) models.SectionAggregate {
	agg.Streak = nextStreak(agg.LastStudied, agg.Streak, now, loc)
	agg.LastStudied = later(agg.LastStudied, now)
	return agg
}

func nextStreak(last time.Time, current int, now time.Time, loc *time.Location) int {
	if last.IsZero() {
		return 1
	}
	switch gap := daysBetween(last, now, loc); {
	case gap <= 0:
		if current < 1 {
			return 1
		}
		return current
	case gap == 1:
		return current + 1
	default:
		return 1
	}
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// daysBetween counts calendar days from a to b in loc.
func daysBetween(a, b time.Time, loc *time.Location) int {
	loc = location(loc)
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
