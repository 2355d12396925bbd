package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/kotoflash/internal/models"
)

// MockSyncJournal is a mock implementation of repository.SyncJournal
type MockSyncJournal struct {
	mock.Mock
}

func (m *MockSyncJournal) Append(ctx context.Context, entry models.SyncJournalEntry) (int64, error) {
	args := m.Called(ctx, entry)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSyncJournal) List(ctx context.Context, filter models.SyncJournalFilter) ([]models.SyncJournalEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SyncJournalEntry), args.Error(1)
}
