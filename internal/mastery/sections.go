package mastery

import (
	"sort"

	"github.com/vytor/kotoflash/internal/models"
)

// RecalculateSections rebuilds every section aggregate from items, visiting
// them in id order so the float sums are reproducible.
// LastStudied and Streak cannot be derived from items and are carried over
// from previous.
func RecalculateSections(items map[string]models.ItemRecord, previous map[models.Section]models.SectionAggregate) map[models.Section]models.SectionAggregate {
	out := models.DefaultSections()
	for key := range out {
		if prev, ok := previous[key]; ok {
			out[key] = models.SectionAggregate{LastStudied: prev.LastStudied, Streak: prev.Streak}
		}
	}
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := items[id]
		key := sectionOf(rec)
		agg := out[key]
		add(&agg, rec.MasteryLevel, 1)
		out[key] = agg
	}
	return out
}

// ApplyItemChange updates sections in place for a single record transition.
// before is nil when the record is new.
func ApplyItemChange(sections map[models.Section]models.SectionAggregate, before *models.ItemRecord, after models.ItemRecord) {
	if before != nil {
		key := sectionOf(*before)
		agg := sections[key]
		add(&agg, before.MasteryLevel, -1)
		sections[key] = agg
	}
	key := sectionOf(after)
	agg := sections[key]
	add(&agg, after.MasteryLevel, 1)
	sections[key] = agg
}

func add(agg *models.SectionAggregate, level float64, delta int) {
	agg.TotalItems += delta
	switch Classify(level) {
	case Mastered:
		agg.MasteredItems += delta
	case InProgress:
		agg.InProgressItems += delta
	default:
		agg.NotStartedItems += delta
	}
	agg.MasterySum += level * float64(delta)
	if agg.TotalItems <= 0 {
		agg.TotalItems = 0
		agg.MasterySum = 0
		agg.AverageMastery = 0
		return
	}
	agg.AverageMastery = agg.MasterySum / float64(agg.TotalItems)
}

func sectionOf(rec models.ItemRecord) models.Section {
	if rec.Section.IsValid() {
		return rec.Section
	}
	return models.DefaultSection
}

// CountMastered returns the number of mastered items across all sections.
func CountMastered(sections map[models.Section]models.SectionAggregate) int {
	n := 0
	for _, agg := range sections {
		n += agg.MasteredItems
	}
	return n
}
