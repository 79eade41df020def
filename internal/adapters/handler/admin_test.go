package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"folder-mock/internal/adapters/storage"
	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/services"
)

// ============================================================================
// Mock Repositories
// ============================================================================

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
	if result := args.Get(0); result != nil {
		return result.([]domain.AccessRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAccessLogRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	args := m.Called(ctx, cutoff, limit)
	return args.Get(0).(int64), args.Error(1)
}

// fakeStreamer stands in for the websocket log hub
type fakeStreamer struct {
	clients int
}

func (f *fakeStreamer) ServeWS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

func (f *fakeStreamer) ClientCount() int {
	return f.clients
}

// ============================================================================
// Helpers
// ============================================================================

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, body string) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal([]byte(body), &env))
	return env
}

func newTestAdmin(t *testing.T, mapping string, hits *MockHitCounter, logs *MockAccessLogRepository, stream LogStreamer) (http.Handler, string) {
	t.Helper()
	root := newMockFolder(t)
	table, _ := services.ParseMapping(mapping)
	resolver := services.NewResolver(table, root, services.NewWeightedSelector(services.SystemRandom{}), storage.LocalDisk{})

	// Keep nil mocks as untyped nil interfaces
	h := &AdminHandler{
		resolver:   resolver,
		rootFolder: root,
		stream:     stream,
		startedAt:  time.Now(),
		threshold:  70,
	}
	if hits != nil {
		h.hits = hits
	}
	if logs != nil {
		h.logs = logs
	}
	return h.Routes(), root
}

// ============================================================================
// Tests
// ============================================================================

func TestAdmin_Health(t *testing.T) {
	h, _ := newTestAdmin(t, "", nil, nil, nil)

	resp, body := doRequest(h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	env := decodeEnvelope(t, body)
	assert.Equal(t, http.StatusOK, env.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestAdmin_Status(t *testing.T) {
	h, root := newTestAdmin(t, "/a = a.txt\n/b = b.txt", nil, nil, &fakeStreamer{clients: 3})

	resp, body := doRequest(h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, body).Data, &status))
	assert.True(t, status.Online)
	assert.Equal(t, Version, status.Version)
	assert.Equal(t, root, status.RootFolder)
	assert.Equal(t, 2, status.MapEntries)
	assert.Len(t, status.MapFingerprint, 16)
	assert.False(t, status.HitsEnabled)
	assert.False(t, status.AccessLogs)
	assert.Equal(t, 3, status.StreamClients)
}

func TestAdmin_Map(t *testing.T) {
	h, _ := newTestAdmin(t, "/z = z.txt\n/a = a1.txt'1, a2.txt'3", nil, nil, nil)

	_, body := doRequest(h, http.MethodGet, "/api/map")

	var entries []domain.MappingEntry
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, body).Data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "/a", entries[0].RequestPath)
	assert.Equal(t, uint32(3), entries[0].Targets[1].Weight)
	assert.Equal(t, "/z", entries[1].RequestPath)
}

func TestAdmin_MapEmpty(t *testing.T) {
	h, _ := newTestAdmin(t, "", nil, nil, nil)

	_, body := doRequest(h, http.MethodGet, "/api/map")
	assert.JSONEq(t, `[]`, string(decodeEnvelope(t, body).Data))
}

func TestAdmin_Resolve(t *testing.T) {
	h, root := newTestAdmin(t, "/req1 = res1.txt", nil, nil, nil)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantFound bool
		wantFile  string
		wantRule  domain.Rule
		wantIndex bool
	}{
		{"missing param", "", http.StatusBadRequest, false, "", "", false},
		{"override", "?path=/req1", http.StatusOK, true, filepath.Join(root, "res", "res1.txt"), domain.RuleOverride, false},
		{"directory", "?path=/site", http.StatusOK, true, filepath.Join(root, "res", "site", "index"), domain.RuleDefault, true},
		{"traversal", "?path=/../map.txt", http.StatusOK, false, "", domain.RuleDefault, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doRequest(h, http.MethodGet, "/api/resolve"+tt.query)
			require.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantCode != http.StatusOK {
				return
			}

			var got ResolveResponse
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, body).Data, &got))
			assert.Equal(t, tt.wantFound, got.Found)
			assert.Equal(t, tt.wantFile, got.File)
			assert.Equal(t, tt.wantRule, got.Rule)
			assert.Equal(t, tt.wantIndex, got.Index)
		})
	}
}

func TestAdmin_Hits(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h, _ := newTestAdmin(t, "", nil, nil, nil)
		resp, _ := doRequest(h, http.MethodGet, "/api/hits")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("counts", func(t *testing.T) {
		hits := new(MockHitCounter)
		hits.On("Counts", mock.Anything).Return(&domain.HitCounts{
			Paths: map[string]int64{"/req1": 4},
			Files: map[string]int64{"res1.txt": 4},
		}, nil)

		h, _ := newTestAdmin(t, "", hits, nil, nil)
		resp, body := doRequest(h, http.MethodGet, "/api/hits")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.HitCounts
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, body).Data, &got))
		assert.Equal(t, int64(4), got.Paths["/req1"])
		hits.AssertExpectations(t)
	})

	t.Run("backend error", func(t *testing.T) {
		hits := new(MockHitCounter)
		hits.On("Counts", mock.Anything).Return(nil, errors.New("connection refused"))

		h, _ := newTestAdmin(t, "", hits, nil, nil)
		resp, _ := doRequest(h, http.MethodGet, "/api/hits")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestAdmin_RecentLogs(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h, _ := newTestAdmin(t, "", nil, nil, nil)
		resp, _ := doRequest(h, http.MethodGet, "/api/logs/recent")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("limit validation", func(t *testing.T) {
		logs := new(MockAccessLogRepository)
		h, _ := newTestAdmin(t, "", nil, logs, nil)

		for _, q := range []string{"?limit=abc", "?limit=0", "?limit=-5"} {
			resp, _ := doRequest(h, http.MethodGet, "/api/logs/recent"+q)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
		logs.AssertNotCalled(t, "RecentAccessLogs", mock.Anything, mock.Anything)
	})

	t.Run("limits", func(t *testing.T) {
		logs := new(MockAccessLogRepository)
		logs.On("RecentAccessLogs", mock.Anything, defaultRecentLimit).Return(nil, nil).Once()
		logs.On("RecentAccessLogs", mock.Anything, 10).Return([]domain.AccessRecord{
			{ID: 2, Path: "/b", Status: 404},
			{ID: 1, Path: "/a", Status: 200},
		}, nil).Once()
		logs.On("RecentAccessLogs", mock.Anything, maxRecentLimit).Return([]domain.AccessRecord{}, nil).Once()

		h, _ := newTestAdmin(t, "", nil, logs, nil)

		_, body := doRequest(h, http.MethodGet, "/api/logs/recent")
		assert.JSONEq(t, `[]`, string(decodeEnvelope(t, body).Data))

		_, body = doRequest(h, http.MethodGet, "/api/logs/recent?limit=10")
		var records []domain.AccessRecord
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, body).Data, &records))
		require.Len(t, records, 2)
		assert.Equal(t, "/b", records[0].Path)

		resp, _ := doRequest(h, http.MethodGet, "/api/logs/recent?limit=999999")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		logs.AssertExpectations(t)
	})
}

func TestAdmin_LogStreamRoute(t *testing.T) {
	h, _ := newTestAdmin(t, "", nil, nil, &fakeStreamer{})
	resp, _ := doRequest(h, http.MethodGet, "/ws/logs")
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	h, _ = newTestAdmin(t, "", nil, nil, nil)
	resp, _ = doRequest(h, http.MethodGet, "/ws/logs")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0h 5m", formatDuration(5*time.Minute))
	assert.Equal(t, "3h 0m", formatDuration(3*time.Hour))
	assert.Equal(t, "2d 1h 30m", formatDuration(49*time.Hour+30*time.Minute))
}
