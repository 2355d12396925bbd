package review

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/vytor/kotoflash/internal/models"
)

// Quality is an SM-2 recall grade on the 0..5 scale.
type Quality int

// Named ratings offered by the review UI.
const (
	Hard Quality = 0
	Good Quality = 3
	Easy Quality = 4

	MinQuality Quality = 0
	MaxQuality Quality = 5

	// PassingQuality is the lowest grade that counts as a successful recall.
	PassingQuality Quality = 3
)

var ErrInvalidQuality = errors.New("review: quality must be between 0 and 5")

func (q Quality) Validate() error {
	if q < MinQuality || q > MaxQuality {
		return ErrInvalidQuality
	}
	return nil
}

// Successful reports whether q counts as a correct answer.
func (q Quality) Successful() bool {
	return q >= PassingQuality
}

// ParseRating maps a named rating to its grade.
func ParseRating(name string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hard":
		return Hard, nil
	case "good":
		return Good, nil
	case "easy":
		return Easy, nil
	}
	return 0, ErrInvalidQuality
}

// Schedule applies one SM-2 step. The ease factor is updated first and the
// new value is used for the interval. Ease has a floor of 1.3 and no ceiling.
func Schedule(state models.SchedulerState, q Quality) (models.SchedulerState, error) {
	if err := q.Validate(); err != nil {
		return state, err
	}

	miss := float64(MaxQuality - q)
	ef := state.EaseFactor + 0.1 - miss*(0.08+miss*0.02)
	if ef < models.MinEaseFactor {
		ef = models.MinEaseFactor
	}

	next := models.SchedulerState{EaseFactor: ef}
	if q.Successful() {
		next.Repetitions = state.Repetitions + 1
		switch next.Repetitions {
		case 1:
			next.IntervalDays = 1
		case 2:
			next.IntervalDays = 6
		default:
			next.IntervalDays = math.Round(state.IntervalDays * ef)
		}
	} else {
		next.Repetitions = 0
		next.IntervalDays = 1
	}
	return next, nil
}

// NextReviewDate returns now plus the state's interval.
func NextReviewDate(state models.SchedulerState, now time.Time) time.Time {
	return now.Add(time.Duration(state.IntervalDays * float64(24*time.Hour)))
}
