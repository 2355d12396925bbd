// Package mastery derives mastery levels, section aggregates and streaks.
// Everything here is pure and never blocks.
package mastery

import (
	"math"

	"github.com/vytor/kotoflash/internal/models"
)

// Strategy computes the effective mastery level of a record.
type Strategy interface {
	Derive(rec models.ItemRecord) float64
}

// WordStrategy trusts the stored level; the mutation path is its only writer.
type WordStrategy struct{}

func (WordStrategy) Derive(rec models.ItemRecord) float64 {
	return clamp(rec.MasteryLevel, models.MinMastery, models.MaxMastery)
}

// KanjiStrategy recomputes the level from answer ratios:
// clamp(correctRatio*4 + min(consecutive*0.1, 0.5), 0, 5).
type KanjiStrategy struct{}

func (KanjiStrategy) Derive(rec models.ItemRecord) float64 {
	answered := rec.CorrectAnswers + rec.IncorrectAnswers
	ratio := float64(rec.CorrectAnswers) / float64(max(1, answered))
	bonus := math.Min(float64(rec.ConsecutiveCorrect)*0.1, 0.5)
	return clamp(ratio*4+bonus, models.MinMastery, models.MaxMastery)
}

var strategies = map[models.ItemKind]Strategy{
	models.KindWord:  WordStrategy{},
	models.KindKanji: KanjiStrategy{},
}

// StrategyFor returns the strategy for kind, falling back to WordStrategy.
func StrategyFor(kind models.ItemKind) Strategy {
	if s, ok := strategies[kind]; ok {
		return s
	}
	return WordStrategy{}
}

// Derive returns the mastery level of rec according to its kind.
func Derive(rec models.ItemRecord) float64 {
	return StrategyFor(rec.Kind).Derive(rec)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
