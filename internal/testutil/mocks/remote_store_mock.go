package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/vytor/kotoflash/internal/remote"
)

// MockRemoteStore is a mock implementation of remote.Store
type MockRemoteStore struct {
	mock.Mock
}

func (m *MockRemoteStore) GetDocument(ctx context.Context, path string) (*remote.Document, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Document), args.Error(1)
}

func (m *MockRemoteStore) SetDocument(ctx context.Context, path string, doc remote.Document) error {
	args := m.Called(ctx, path, doc)
	return args.Error(0)
}

func (m *MockRemoteStore) Subscribe(ctx context.Context, path string, onChange func(remote.Document)) (remote.Unsubscribe, error) {
	args := m.Called(ctx, path, onChange)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(remote.Unsubscribe), args.Error(1)
}
