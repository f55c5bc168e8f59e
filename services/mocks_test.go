package services

import (
	"context"
	"sync"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/stretchr/testify/mock"
)

// MockBlobStorage is a mock implementation of BlobStorage for testing
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockBlobStorage) DurableURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

// MockLookupRepository is a mock implementation of LookupRepository for testing
type MockLookupRepository struct {
	mock.Mock
}

func (m *MockLookupRepository) EnvironmentID(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLookupRepository) TriggerID(ctx context.Context, name string) (int64, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLookupRepository) ProjectIDForSuite(ctx context.Context, suite string) (int64, error) {
	args := m.Called(ctx, suite)
	return args.Get(0).(int64), args.Error(1)
}

// MockRunRepository is a mock implementation of TestRunRepository for testing
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) FindRunByContentHash(ctx context.Context, hash string, projectID int64) (*models.RunSummary, error) {
	args := m.Called(ctx, hash, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunSummary), args.Error(1)
}

func (m *MockRunRepository) CreateRun(ctx context.Context, run *models.RunSummary) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) UpsertTests(ctx context.Context, projectID int64, defs []models.CanonicalTest) ([]models.CanonicalTest, error) {
	args := m.Called(ctx, projectID, defs)
	if fn, ok := args.Get(0).(func([]models.CanonicalTest) []models.CanonicalTest); ok {
		return fn(defs), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CanonicalTest), args.Error(1)
}

func (m *MockRunRepository) InsertExecutions(ctx context.Context, records []models.ExecutionRecord) ([]models.ExecutionRecord, error) {
	args := m.Called(ctx, records)
	if fn, ok := args.Get(0).(func([]models.ExecutionRecord) []models.ExecutionRecord); ok {
		return fn(records), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExecutionRecord), args.Error(1)
}

func (m *MockRunRepository) InsertAttempts(ctx context.Context, records []models.AttemptRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRunRepository) ListRuns(ctx context.Context, projectID int64, limit, offset int) ([]models.RunSummary, error) {
	args := m.Called(ctx, projectID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RunSummary), args.Error(1)
}

func (m *MockRunRepository) CountRuns(ctx context.Context, projectID int64) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

func (m *MockRunRepository) GetRun(ctx context.Context, runID string) (*models.RunSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RunSummary), args.Error(1)
}

func (m *MockRunRepository) GetExecutions(ctx context.Context, runID string) ([]models.ExecutionRecord, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ExecutionRecord), args.Error(1)
}

// recordingBroadcaster captures broadcast events in order for assertions
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
	data   []interface{}
}

func (b *recordingBroadcaster) BroadcastToAll(msgType string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, msgType)
	b.data = append(b.data, data)
}

func (b *recordingBroadcaster) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string{}, b.events...)
}
