package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockLocalStore is a mock implementation of repository.LocalStore
type MockLocalStore struct {
	mock.Mock
}

func (m *MockLocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockLocalStore) Put(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}
