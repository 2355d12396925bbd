package models

import (
	"errors"
	"strings"
)

// Section is one of the fixed top-level learning categories.
type Section string

const (
	SectionDictionary Section = "dictionary"
	SectionKanji      Section = "kanji"
	SectionHiragana   Section = "hiragana"
	SectionKatakana   Section = "katakana"
	SectionGrammar    Section = "grammar"
	SectionPhrases    Section = "phrases"
	SectionNumbers    Section = "numbers"
	SectionCulture    Section = "culture"

	// DefaultSection is assigned to new items and to items whose stored
	// section is not recognised.
	DefaultSection = SectionDictionary
)

var ErrUnknownSection = errors.New("models: unknown section")

var allSections = []Section{
	SectionDictionary,
	SectionKanji,
	SectionHiragana,
	SectionKatakana,
	SectionGrammar,
	SectionPhrases,
	SectionNumbers,
	SectionCulture,
}

// AllSections returns the eight sections in display order.
func AllSections() []Section {
	out := make([]Section, len(allSections))
	copy(out, allSections)
	return out
}

func (s Section) String() string { return string(s) }

func (s Section) IsValid() bool {
	for _, known := range allSections {
		if s == known {
			return true
		}
	}
	return false
}

// ParseSection accepts a section key case-insensitively.
func ParseSection(v string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", ErrUnknownSection
	}
	return s, nil
}

// Difficulty is the author-assigned difficulty of an item.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// ItemKind discriminates the payload carried by an ItemRecord.
type ItemKind string

const (
	KindWord  ItemKind = "word"
	KindKanji ItemKind = "kanji"
)

func (k ItemKind) IsValid() bool {
	return k == KindWord || k == KindKanji
}

// ActivityType names the exercise that produced a practice entry or session.
type ActivityType string

const (
	ActivityFlashcards ActivityType = "flashcards"
	ActivityQuiz       ActivityType = "quiz"
	ActivityReview     ActivityType = "review"
	ActivityWriting    ActivityType = "writing"
	ActivityReading    ActivityType = "reading"
	ActivityListening  ActivityType = "listening"
)

var ErrUnknownActivity = errors.New("models: unknown activity type")

func (a ActivityType) IsValid() bool {
	switch a {
	case ActivityFlashcards, ActivityQuiz, ActivityReview, ActivityWriting, ActivityReading, ActivityListening:
		return true
	}
	return false
}
