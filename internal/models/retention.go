package models

import "sort"

// Retention bounds the history collections of a ProgressState.
type Retention struct {
	PracticeHistory   int
	StudySessions     int
	DailyProgressDays int
}

func DefaultRetention() Retention {
	return Retention{PracticeHistory: 50, StudySessions: 500, DailyProgressDays: 365}
}

// TrimHistory keeps the newest r.PracticeHistory entries.
func (r Retention) TrimHistory(h []PracticeEntry) []PracticeEntry {
	if r.PracticeHistory <= 0 || len(h) <= r.PracticeHistory {
		return h
	}
	out := make([]PracticeEntry, r.PracticeHistory)
	copy(out, h[len(h)-r.PracticeHistory:])
	return out
}

// TrimSessions keeps the newest r.StudySessions sessions.
func (r Retention) TrimSessions(s []StudySession) []StudySession {
	if r.StudySessions <= 0 || len(s) <= r.StudySessions {
		return s
	}
	out := make([]StudySession, r.StudySessions)
	copy(out, s[len(s)-r.StudySessions:])
	return out
}

// TrimDailyProgress drops the oldest days so that at most
// r.DailyProgressDays keys remain. Keys are YYYY-MM-DD and sort by date.
func (r Retention) TrimDailyProgress(m map[string]int) {
	if r.DailyProgressDays <= 0 || len(m) <= r.DailyProgressDays {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-r.DailyProgressDays] {
		delete(m, k)
	}
}
