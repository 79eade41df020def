// Package ports defines interfaces for dependency inversion
// Following Hexagonal Architecture: Core defines contracts, Adapters implement them
package ports

import (
	"context"
	"time"

	"folder-mock/internal/core/domain"
)

// RandomSource supplies uniformly distributed draws for weighted selection.
// Implementations used by the server must be safe for concurrent use.
type RandomSource interface {
	// Uint64N returns a value in [0, n). n is never 0.
	Uint64N(n uint64) uint64
}

// FileSystem is the resolver's and handler's view of the disk
type FileSystem interface {
	// IsDir reports whether path exists and is a directory
	IsDir(path string) bool

	// ReadFile returns the full contents of a regular file
	ReadFile(path string) ([]byte, error)
}

// AccessSink receives a record for every served mock request.
// Record must not block the request path.
type AccessSink interface {
	Record(rec *domain.AccessRecord)
}

// AccessLogRepository persists access records for audit and replay
type AccessLogRepository interface {
	// SaveAccessLog persists one served request
	SaveAccessLog(ctx context.Context, rec *domain.AccessRecord) error

	// RecentAccessLogs returns the newest records first
	RecentAccessLogs(ctx context.Context, limit int) ([]domain.AccessRecord, error)

	// PurgeOlderThan deletes at most limit records created before cutoff
	PurgeOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// HitCounter keeps per path and per file request counters in a shared cache
type HitCounter interface {
	// Increment bumps the counters of a request path and the file that served it.
	// file is empty when the request was not found.
	Increment(ctx context.Context, requestPath, file string) error

	// Counts returns all counters
	Counts(ctx context.Context) (*domain.HitCounts, error)
}
