package persist

import (
	"context"

	"github.com/huangsam/tzcluster/internal/contract"
	"github.com/huangsam/tzcluster/schema"
	"github.com/stretchr/testify/mock"
)

// MockSummaryStore is a mock implementation of SummaryStore for testing.
type MockSummaryStore struct {
	mock.Mock
}

var _ contract.SummaryStore = &MockSummaryStore{} // Compile-time check

// CommitRun implements the SummaryStore interface.
func (m *MockSummaryStore) CommitRun(ctx context.Context, run schema.RunRecord, summaries []schema.RegionalSummary) ([]schema.RegionalSummary, error) {
	args := m.Called(ctx, run, summaries)
	out, _ := args.Get(0).([]schema.RegionalSummary)
	return out, args.Error(1)
}

// GetSummaries implements the SummaryStore interface.
func (m *MockSummaryStore) GetSummaries(ctx context.Context) ([]schema.RegionalSummary, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.RegionalSummary)
	return out, args.Error(1)
}

// GetRuns implements the SummaryStore interface.
func (m *MockSummaryStore) GetRuns(ctx context.Context) ([]schema.RunRecord, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]schema.RunRecord)
	return out, args.Error(1)
}

// GetStatus implements the SummaryStore interface.
func (m *MockSummaryStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.StoreStatus), args.Error(1)
}

// Backend implements the SummaryStore interface.
func (m *MockSummaryStore) Backend() schema.DatabaseBackend {
	args := m.Called()
	return args.Get(0).(schema.DatabaseBackend)
}

// Close implements the SummaryStore interface.
func (m *MockSummaryStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ contract.StoreManager = &MockStoreManager{} // Compile-time check

// GetSummaryStore implements the StoreManager interface.
func (m *MockStoreManager) GetSummaryStore() contract.SummaryStore {
	args := m.Called()
	store, _ := args.Get(0).(contract.SummaryStore)
	return store
}
