package models

import "time"

// CurrentSchemaVersion is stamped on every state written by this build.
const CurrentSchemaVersion = 2

// SectionAggregate summarises the items of one section.
// MasteredItems + InProgressItems + NotStartedItems == TotalItems always holds.
type SectionAggregate struct {
	TotalItems      int       `json:"totalItems"`
	MasteredItems   int       `json:"masteredItems"`
	InProgressItems int       `json:"inProgressItems"`
	NotStartedItems int       `json:"notStartedItems"`
	AverageMastery  float64   `json:"averageMastery"`
	MasterySum      float64   `json:"masterySum"`
	LastStudied     time.Time `json:"lastStudied"`
	Streak          int       `json:"streak"`
}

type StudySession struct {
	ID              string       `json:"id"`
	StartedAt       time.Time    `json:"startedAt"`
	DurationMinutes int          `json:"durationMinutes"`
	ActivityType    ActivityType `json:"activityType"`
	Section         Section      `json:"section,omitempty"`
	ItemsStudied    int          `json:"itemsStudied"`
	CorrectAnswers  int          `json:"correctAnswers"`
	Points          int          `json:"points"`
	IsQuiz          bool         `json:"isQuiz"`
}

type Achievement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	UnlockedAt time.Time `json:"unlockedAt"`
}

type Statistics struct {
	TotalStudyTimeMinutes int            `json:"totalStudyTimeMinutes"`
	CurrentStreak         int            `json:"currentStreak"`
	LongestStreak         int            `json:"longestStreak"`
	LastStudyDate         time.Time      `json:"lastStudyDate"`
	DailyProgress         map[string]int `json:"dailyProgress"`
	StudySessions         []StudySession `json:"studySessions"`
	TotalQuizzes          int            `json:"totalQuizzes"`
	TotalPoints           int            `json:"totalPoints"`
	TotalReviews          int            `json:"totalReviews"`
	Achievements          []Achievement  `json:"achievements"`
}

// HasAchievement reports whether id has been unlocked.
func (s Statistics) HasAchievement(id string) bool {
	for _, a := range s.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

type Preferences struct {
	DailyGoalMinutes int  `json:"dailyGoalMinutes"`
	ReviewBatchSize  int  `json:"reviewBatchSize"`
	ShowRomaji       bool `json:"showRomaji"`
	AudioEnabled     bool `json:"audioEnabled"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		DailyGoalMinutes: 15,
		ReviewBatchSize:  20,
		ShowRomaji:       true,
		AudioEnabled:     true,
	}
}

// ProgressState is the whole persisted learning state of one user.
type ProgressState struct {
	SchemaVersion int                          `json:"schemaVersion"`
	Items         map[string]ItemRecord        `json:"items"`
	Sections      map[Section]SectionAggregate `json:"sections"`
	Statistics    Statistics                   `json:"statistics"`
	Preferences   Preferences                  `json:"preferences"`
	UpdatedAt     time.Time                    `json:"updatedAt"`
}

// DefaultSections returns a zeroed aggregate for every section.
func DefaultSections() map[Section]SectionAggregate {
	out := make(map[Section]SectionAggregate, len(allSections))
	for _, s := range allSections {
		out[s] = SectionAggregate{}
	}
	return out
}

func DefaultProgressState() *ProgressState {
	return &ProgressState{
		SchemaVersion: CurrentSchemaVersion,
		Items:         make(map[string]ItemRecord),
		Sections:      DefaultSections(),
		Statistics: Statistics{
			DailyProgress: make(map[string]int),
			StudySessions: []StudySession{},
			Achievements:  []Achievement{},
		},
		Preferences: DefaultPreferences(),
	}
}

// Clone returns a deep copy of s.
func (s *ProgressState) Clone() *ProgressState {
	if s == nil {
		return nil
	}
	out := *s
	if s.Items != nil {
		out.Items = make(map[string]ItemRecord, len(s.Items))
		for id, rec := range s.Items {
			out.Items[id] = rec.Clone()
		}
	}
	if s.Sections != nil {
		out.Sections = make(map[Section]SectionAggregate, len(s.Sections))
		for k, v := range s.Sections {
			out.Sections[k] = v
		}
	}
	out.Statistics = s.Statistics.Clone()
	return &out
}

// Clone returns a deep copy of s.
func (s Statistics) Clone() Statistics {
	out := s
	if s.DailyProgress != nil {
		out.DailyProgress = make(map[string]int, len(s.DailyProgress))
		for k, v := range s.DailyProgress {
			out.DailyProgress[k] = v
		}
	}
	if s.StudySessions != nil {
		out.StudySessions = make([]StudySession, len(s.StudySessions))
		copy(out.StudySessions, s.StudySessions)
	}
	if s.Achievements != nil {
		out.Achievements = make([]Achievement, len(s.Achievements))
		copy(out.Achievements, s.Achievements)
	}
	return out
}
