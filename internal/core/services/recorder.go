package services

import (
	"context"
	"log/slog"
	"sync"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
)

// DefaultRecorderBuffer is the queue size used when none is configured
const DefaultRecorderBuffer = 1024

// Ensure AccessRecorder implements AccessSink
var _ ports.AccessSink = (*AccessRecorder)(nil)

// AccessRecorder forwards access records to persistence off the request path.
// Records are queued without blocking and dropped when the queue is full.
type AccessRecorder struct {
	logRepo ports.AccessLogRepository
	hits    ports.HitCounter
	queue   chan *domain.AccessRecord
	done    chan struct{}
	once    sync.Once
}

// NewAccessRecorder creates a recorder; logRepo and hits may be nil
func NewAccessRecorder(logRepo ports.AccessLogRepository, hits ports.HitCounter, bufferSize int) *AccessRecorder {
	if bufferSize <= 0 {
		bufferSize = DefaultRecorderBuffer
	}
	return &AccessRecorder{
		logRepo: logRepo,
		hits:    hits,
		queue:   make(chan *domain.AccessRecord, bufferSize),
		done:    make(chan struct{}),
	}
}

// Enabled reports whether any backend is configured
func (a *AccessRecorder) Enabled() bool {
	return a.logRepo != nil || a.hits != nil
}

// Record queues rec for persistence
func (a *AccessRecorder) Record(rec *domain.AccessRecord) {
	if rec == nil || !a.Enabled() {
		return
	}
	select {
	case a.queue <- rec:
	default:
		slog.Debug("Access record dropped, queue full",
			"request_id", rec.RequestID,
			"path", rec.Path,
		)
	}
}

// Start runs the worker until ctx is cancelled, then drains the queue.
// Done is closed once the worker has exited.
func (a *AccessRecorder) Start(ctx context.Context) {
	a.once.Do(func() {
		go a.run(ctx)
	})
}

// Done is closed after the worker has drained and stopped
func (a *AccessRecorder) Done() <-chan struct{} {
	return a.done
}

func (a *AccessRecorder) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case rec := <-a.queue:
			a.persist(rec)
		case <-ctx.Done():
			for {
				select {
				case rec := <-a.queue:
					a.persist(rec)
				default:
					return
				}
			}
		}
	}
}

// persist writes one record to every configured backend.
// The request context is long gone, so a background context is used.
func (a *AccessRecorder) persist(rec *domain.AccessRecord) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("PANIC recovered in access recorder",
				"panic", r,
				"request_id", rec.RequestID,
			)
		}
	}()

	ctx := context.Background()

	if a.logRepo != nil {
		if err := a.logRepo.SaveAccessLog(ctx, rec); err != nil {
			slog.Error("Failed to save access log",
				"error", err,
				"request_id", rec.RequestID,
			)
		}
	}

	if a.hits != nil {
		if err := a.hits.Increment(ctx, rec.Path, rec.ResolvedFile); err != nil {
			slog.Warn("Failed to increment hit counters",
				"error", err,
				"path", rec.Path,
			)
		}
	}
}
