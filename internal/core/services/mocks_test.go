package services

import (
	"context"
	"io/fs"
	"time"

	"github.com/stretchr/testify/mock"

	"folder-mock/internal/core/domain"
)

// ============================================================================
// Mock Repositories
// ============================================================================

// MockAccessLogRepository mocks AccessLogRepository interface
type MockAccessLogRepository struct {
	mock.Mock
}

func (m *MockAccessLogRepository) SaveAccessLog(ctx context.Context, rec *domain.AccessRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAccessLogRepository) RecentAccessLogs(ctx context.Context, limit int) ([]domain.AccessRecord, error) {
	args := m.Called(ctx, limit)
	// Safely handle nil return
	if result := args.Get(0); result != nil {
		return result.([]domain.AccessRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccessLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

// MockHitCounter mocks HitCounter interface
type MockHitCounter struct {
	mock.Mock
}

func (m *MockHitCounter) Increment(ctx context.Context, requestPath, file string) error {
	args := m.Called(ctx, requestPath, file)
	return args.Error(0)
}

func (m *MockHitCounter) Counts(ctx context.Context) (*domain.HitCounts, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		return result.(*domain.HitCounts), args.Error(1)
	}
	return nil, args.Error(1)
}

// ============================================================================
// Fakes
// ============================================================================

// fakeFS answers from fixed sets of directories and files
type fakeFS struct {
	dirs  map[string]bool
	files map[string][]byte
}

func (f fakeFS) IsDir(path string) bool {
	return f.dirs[path]
}

func (f fakeFS) ReadFile(path string) ([]byte, error) {
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
