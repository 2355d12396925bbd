package mastery

// Class is the section bucket an item falls into.
type Class int

const (
	NotStarted Class = iota
	InProgress
	Mastered
)

func (c Class) String() string {
	switch c {
	case Mastered:
		return "mastered"
	case InProgress:
		return "in_progress"
	default:
		return "not_started"
	}
}

// MasteredThreshold is the single classification cut-off. A normalized
// score of 0.8 on a 0..1 scale maps to the same value.
const MasteredThreshold = 4.0

func Classify(level float64) Class {
	switch {
	case level >= MasteredThreshold:
		return Mastered
	case level > 0:
		return InProgress
	default:
		return NotStarted
	}
}
