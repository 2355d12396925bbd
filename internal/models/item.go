package models

import "time"

const (
	MinMastery = 0.0
	MaxMastery = 5.0

	DefaultEaseFactor = 2.5
	MinEaseFactor     = 1.3
)

// SchedulerState is the SM-2 state of one item.
type SchedulerState struct {
	Repetitions  int     `json:"repetitions"`
	IntervalDays float64 `json:"intervalDays"`
	EaseFactor   float64 `json:"easeFactor"`
}

func DefaultSchedulerState() SchedulerState {
	return SchedulerState{EaseFactor: DefaultEaseFactor}
}

type PracticeEntry struct {
	Timestamp    time.Time    `json:"timestamp"`
	Score        float64      `json:"score"`
	ActivityType ActivityType `json:"activityType"`
}

type WordDetails struct {
	Term    string `json:"term"`
	Reading string `json:"reading,omitempty"`
	Meaning string `json:"meaning,omitempty"`
}

type KanjiDetails struct {
	Character   string   `json:"character"`
	Onyomi      []string `json:"onyomi,omitempty"`
	Kunyomi     []string `json:"kunyomi,omitempty"`
	Meanings    []string `json:"meanings,omitempty"`
	StrokeCount int      `json:"strokeCount,omitempty"`
	JLPTLevel   int      `json:"jlptLevel,omitempty"`
}

// ItemRecord is the learning state of one item. Kind selects which of Word
// or Kanji carries the item's content.
type ItemRecord struct {
	ID                 string          `json:"id"`
	Kind               ItemKind        `json:"kind"`
	MasteryLevel       float64         `json:"masteryLevel"`
	ReviewCount        int             `json:"reviewCount"`
	CorrectAnswers     int             `json:"correctAnswers"`
	IncorrectAnswers   int             `json:"incorrectAnswers"`
	ConsecutiveCorrect int             `json:"consecutiveCorrect"`
	LastAnswerCorrect  bool            `json:"lastAnswerCorrect"`
	Difficulty         Difficulty      `json:"difficulty"`
	Category           string          `json:"category,omitempty"`
	Section            Section         `json:"section"`
	Favorite           bool            `json:"favorite"`
	LastReviewed       time.Time       `json:"lastReviewed"`
	LastPracticeDate   time.Time       `json:"lastPracticeDate"`
	NextReviewDate     time.Time       `json:"nextReviewDate"`
	Scheduler          SchedulerState  `json:"scheduler"`
	PracticeHistory    []PracticeEntry `json:"practiceHistory"`
	Word               *WordDetails    `json:"word,omitempty"`
	Kanji              *KanjiDetails   `json:"kanji,omitempty"`
}

// IsDue reports whether the item should be reviewed at now.
func (r ItemRecord) IsDue(now time.Time) bool {
	return !now.Before(r.NextReviewDate)
}

// Clone returns a deep copy of r.
func (r ItemRecord) Clone() ItemRecord {
	out := r
	if r.PracticeHistory != nil {
		out.PracticeHistory = make([]PracticeEntry, len(r.PracticeHistory))
		copy(out.PracticeHistory, r.PracticeHistory)
	}
	if r.Word != nil {
		w := *r.Word
		out.Word = &w
	}
	if r.Kanji != nil {
		k := *r.Kanji
		k.Onyomi = cloneStrings(r.Kanji.Onyomi)
		k.Kunyomi = cloneStrings(r.Kanji.Kunyomi)
		k.Meanings = cloneStrings(r.Kanji.Meanings)
		out.Kanji = &k
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
