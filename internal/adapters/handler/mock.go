package handler

import (
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
	"folder-mock/internal/core/services"
	"folder-mock/internal/logging"
)

const (
	notFoundBody       = "NOT FOUND"
	defaultContentType = "application/octet-stream"
)

// MockHandler answers GET requests with files picked by the resolver
type MockHandler struct {
	resolver *services.Resolver
	files    ports.FileSystem
	sink     ports.AccessSink
	now      func() time.Time
}

// NewMockHandler creates the mock surface; sink may be nil
func NewMockHandler(resolver *services.Resolver, files ports.FileSystem, sink ports.AccessSink) *MockHandler {
	return &MockHandler{
		resolver: resolver,
		files:    files,
		sink:     sink,
		now:      time.Now,
	}
}

// Routes returns the router serving every path for GET and 405 otherwise
func (h *MockHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/*", h.ServeMock)
	r.MethodNotAllowed(h.methodNotAllowed)
	return r
}

// ServeMock resolves the request path, reads the file and writes 200 or 404
func (h *MockHandler) ServeMock(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	requestID := uuid.NewString()
	requestPath := r.URL.Path

	if slog.Default().Enabled(r.Context(), logging.LevelTrace) {
		slog.Log(r.Context(), logging.LevelTrace, "Request received",
			"request_id", requestID,
			"method", r.Method,
			"path", requestPath,
			"proto", r.Proto,
			"headers", r.Header,
		)
	}

	target := h.resolver.Resolve(requestPath)

	var body []byte
	status := http.StatusNotFound
	if target.Found() {
		data, err := h.files.ReadFile(target.Path)
		if err != nil {
			slog.Log(r.Context(), logging.LevelTrace, "File not readable",
				"request_id", requestID,
				"file", target.Path,
				"error", err,
			)
		} else {
			body = data
			status = http.StatusOK
		}
	}

	w.Header().Set("X-Request-Id", requestID)
	if status == http.StatusOK {
		w.Header().Set("Content-Type", contentTypeFor(target.Path))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			slog.Debug("Failed to write response body", "request_id", requestID, "error", err)
		}
	} else {
		writeNotFound(w)
	}

	resolvedFile := ""
	if status == http.StatusOK {
		resolvedFile = target.Path
	}
	h.finish(r, start, &domain.AccessRecord{
		RequestID:    requestID,
		Method:       r.Method,
		Path:         requestPath,
		Status:       status,
		Rule:         target.Rule,
		ResolvedFile: resolvedFile,
		Bytes:        int64(len(body)),
	})
}

func (h *MockHandler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)
	w.Header().Set("Allow", http.MethodGet)
	http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)

	h.finish(r, start, &domain.AccessRecord{
		RequestID: requestID,
		Method:    r.Method,
		Path:      r.URL.Path,
		Status:    http.StatusMethodNotAllowed,
	})
}

// finish logs the request line and hands the record to the sink
func (h *MockHandler) finish(r *http.Request, start time.Time, rec *domain.AccessRecord) {
	rec.Duration = h.now().Sub(start)
	rec.RemoteAddr = r.RemoteAddr
	rec.CreatedAt = start

	slog.Info(fmt.Sprintf("%s %s %s -> %d %s [%dµs]",
		rec.RemoteAddr,
		rec.Method,
		rec.Path,
		rec.Status,
		http.StatusText(rec.Status),
		rec.Duration.Microseconds(),
	),
		"request_id", rec.RequestID,
		"rule", rec.Rule,
	)

	if h.sink != nil {
		h.sink.Record(rec)
	}
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(notFoundBody)))
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(notFoundBody))
}

// contentTypeFor guesses from the extension; extension-less mock files
// are served as opaque bytes
func contentTypeFor(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return defaultContentType
}
