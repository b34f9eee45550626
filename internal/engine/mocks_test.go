package engine_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"anonchat/backend/internal/storage"
)

// MockLedger records ledger calls for assertion.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) RecordOpen(a, b string) {
	m.Called(a, b)
}

func (m *MockLedger) RecordClose(a, b string) {
	m.Called(a, b)
}

// failingStore simulates a state store whose retries are exhausted:
// every operation reports ErrUnavailable.
type failingStore struct{}

func (failingStore) Enqueue(context.Context, string) error { return storage.ErrUnavailable }
func (failingStore) DequeueSkipping(context.Context, string) (string, bool, error) {
	return "", false, storage.ErrUnavailable
}
func (failingStore) RemoveFromQueue(context.Context, string) error { return storage.ErrUnavailable }
func (failingStore) IsQueued(context.Context, string) (bool, error) {
	return false, storage.ErrUnavailable
}
func (failingStore) QueueDepth(context.Context) (int, error) { return 0, storage.ErrUnavailable }
func (failingStore) SetPair(context.Context, string, string) error {
	return storage.ErrUnavailable
}
func (failingStore) GetPartner(context.Context, string) (string, bool, error) {
	return "", false, storage.ErrUnavailable
}
func (failingStore) ClearPair(context.Context, string) (string, bool, error) {
	return "", false, storage.ErrUnavailable
}
func (failingStore) PairCount(context.Context) (int, error) { return 0, storage.ErrUnavailable }
func (failingStore) SetPresence(context.Context, string, string) error {
	return storage.ErrUnavailable
}
func (failingStore) GetPresence(context.Context, string) (string, error) {
	return "", storage.ErrUnavailable
}
