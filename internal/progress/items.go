package progress

import (
	"time"

	"github.com/vytor/kotoflash/internal/models"
)

// ItemPatch holds the fields to merge into a record. Nil fields are left alone.
type ItemPatch struct {
	Kind       *models.ItemKind
	Difficulty *models.Difficulty
	Category   *string
	Section    *models.Section
	Favorite   *bool
	Word       *models.WordDetails
	Kanji      *models.KanjiDetails
}

// ItemStore is the in-memory item map of a ProgressState. It does no I/O.
type ItemStore struct {
	items map[string]models.ItemRecord
}

func NewItemStore(items map[string]models.ItemRecord) *ItemStore {
	if items == nil {
		items = make(map[string]models.ItemRecord)
	}
	return &ItemStore{items: items}
}

func (s *ItemStore) Get(id string) (models.ItemRecord, bool) {
	rec, ok := s.items[id]
	return rec, ok
}

// NewRecord returns a record with creation defaults.
func NewRecord(id string, now time.Time) models.ItemRecord {
	return models.ItemRecord{
		ID:              id,
		Kind:            models.KindWord,
		Difficulty:      models.DifficultyMedium,
		Section:         models.DefaultSection,
		NextReviewDate:  now.AddDate(0, 0, 1),
		Scheduler:       models.DefaultSchedulerState(),
		PracticeHistory: []models.PracticeEntry{},
	}
}

// Upsert creates the record with defaults if absent, merges patch over it
// and stamps LastReviewed.
func (s *ItemStore) Upsert(id string, patch ItemPatch, now time.Time) models.ItemRecord {
	rec, ok := s.items[id]
	if !ok {
		rec = NewRecord(id, now)
	}
	applyPatch(&rec, patch)
	rec.LastReviewed = now
	s.items[id] = rec
	return rec
}

// Put stores rec as is.
func (s *ItemStore) Put(rec models.ItemRecord) {
	s.items[rec.ID] = rec
}

func applyPatch(rec *models.ItemRecord, p ItemPatch) {
	if p.Kind != nil {
		rec.Kind = *p.Kind
	}
	if p.Difficulty != nil {
		rec.Difficulty = *p.Difficulty
	}
	if p.Category != nil {
		rec.Category = *p.Category
	}
	if p.Section != nil {
		rec.Section = *p.Section
	}
	if p.Favorite != nil {
		rec.Favorite = *p.Favorite
	}
	if p.Word != nil {
		w := *p.Word
		rec.Word = &w
	}
	if p.Kanji != nil {
		k := *p.Kanji
		rec.Kanji = &k
	}
}
