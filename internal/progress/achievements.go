package progress

import (
	"time"

	"github.com/vytor/kotoflash/internal/mastery"
	"github.com/vytor/kotoflash/internal/models"
)

type achievementRule struct {
	id       string
	title    string
	unlocked func(s *models.ProgressState) bool
}

var achievementRules = []achievementRule{
	{"first_review", "First review", func(s *models.ProgressState) bool {
		return s.Statistics.TotalReviews >= 1
	}},
	{"streak_7", "Seven day streak", func(s *models.ProgressState) bool {
		return s.Statistics.LongestStreak >= 7
	}},
	{"streak_30", "Thirty day streak", func(s *models.ProgressState) bool {
		return s.Statistics.LongestStreak >= 30
	}},
	{"mastered_10", "Ten items mastered", func(s *models.ProgressState) bool {
		return mastery.CountMastered(s.Sections) >= 10
	}},
	{"mastered_100", "A hundred items mastered", func(s *models.ProgressState) bool {
		return mastery.CountMastered(s.Sections) >= 100
	}},
	{"quizzes_10", "Ten quizzes", func(s *models.ProgressState) bool {
		return s.Statistics.TotalQuizzes >= 10
	}},
}

// unlockAchievements appends newly earned achievements and returns their ids.
// Achievements are never revoked.
func unlockAchievements(s *models.ProgressState, now time.Time) []string {
	var unlocked []string
	for _, rule := range achievementRules {
		if s.Statistics.HasAchievement(rule.id) || !rule.unlocked(s) {
			continue
		}
		s.Statistics.Achievements = append(s.Statistics.Achievements, models.Achievement{
			ID:         rule.id,
			Title:      rule.title,
			UnlockedAt: now,
		})
		unlocked = append(unlocked, rule.id)
	}
	return unlocked
}
