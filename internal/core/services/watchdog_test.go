package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestWatchdog(repo *MockAccessLogRepository, used float64, usageErr error) *Watchdog {
	w := NewWatchdog(repo, "/srv/mock", time.Minute, 70, 24*time.Hour)
	w.usage = func(ctx context.Context, path string) (float64, error) {
		return used, usageErr
	}
	w.now = func() time.Time {
		return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	}
	return w
}

func TestWatchdog_PurgesOverThreshold(t *testing.T) {
	repo := new(MockAccessLogRepository)
	cutoff := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.On("PurgeOlderThan", mock.Anything, cutoff, purgeBatchSize).Return(int64(42), nil).Once()

	w := newTestWatchdog(repo, 85, nil)

	assert.Equal(t, int64(42), w.Check(context.Background()))
	repo.AssertExpectations(t)
}

func TestWatchdog_ThresholdIsInclusive(t *testing.T) {
	repo := new(MockAccessLogRepository)
	repo.On("PurgeOlderThan", mock.Anything, mock.Anything, purgeBatchSize).Return(int64(1), nil).Once()

	w := newTestWatchdog(repo, 70, nil)

	assert.Equal(t, int64(1), w.Check(context.Background()))
	repo.AssertExpectations(t)
}

func TestWatchdog_BelowThresholdSkipsPurge(t *testing.T) {
	repo := new(MockAccessLogRepository)
	w := newTestWatchdog(repo, 40, nil)

	assert.Zero(t, w.Check(context.Background()))
	repo.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything, mock.Anything)
}

func TestWatchdog_UsageError(t *testing.T) {
	repo := new(MockAccessLogRepository)
	w := newTestWatchdog(repo, 0, errors.New("statfs failed"))

	assert.Zero(t, w.Check(context.Background()))
	repo.AssertNotCalled(t, "PurgeOlderThan", mock.Anything, mock.Anything, mock.Anything)
}

func TestWatchdog_PurgeError(t *testing.T) {
	repo := new(MockAccessLogRepository)
	repo.On("PurgeOlderThan", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), errors.New("lock wait timeout"))

	w := newTestWatchdog(repo, 99, nil)

	assert.Zero(t, w.Check(context.Background()))
}

func TestWatchdog_RunWithoutRepoReturns(t *testing.T) {
	w := NewWatchdog(nil, "/", time.Millisecond, 70, time.Hour)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately without a repository")
	}
}

func TestWatchdog_RunStopsOnCancel(t *testing.T) {
	repo := new(MockAccessLogRepository)
	repo.On("PurgeOlderThan", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	w := newTestWatchdog(repo, 90, nil)
	w.interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
