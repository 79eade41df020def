package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
	"folder-mock/internal/core/services"
)

// Version is reported by the status endpoint
const Version = "1.0.0"

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

// LogStreamer serves the live log websocket
type LogStreamer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
	ClientCount() int
}

// AdminHandler serves the inspection API next to the mock surface
type AdminHandler struct {
	resolver   *services.Resolver
	rootFolder string
	hits       ports.HitCounter          // nil when Redis is not configured
	logs       ports.AccessLogRepository // nil when MariaDB is not configured
	stream     LogStreamer               // nil when no secret is configured
	startedAt  time.Time
	threshold  float64
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(
	resolver *services.Resolver,
	rootFolder string,
	hits ports.HitCounter,
	logs ports.AccessLogRepository,
	stream LogStreamer,
	diskThreshold float64,
) *AdminHandler {
	return &AdminHandler{
		resolver:   resolver,
		rootFolder: rootFolder,
		hits:       hits,
		logs:       logs,
		stream:     stream,
		startedAt:  time.Now(),
		threshold:  diskThreshold,
	}
}

// Routes returns the admin router
func (h *AdminHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/map", h.GetMap)
		r.Get("/resolve", h.Resolve)
		r.Get("/hits", h.GetHits)
		r.Get("/logs/recent", h.GetRecentLogs)
		r.Get("/system/metrics", h.GetSystemMetrics)
	})
	if h.stream != nil {
		r.Get("/ws/logs", h.stream.ServeWS)
	}
	return r
}

// Health answers liveness probes
// GET /healthz
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, NewSuccessResponse(map[string]string{"status": "ok"}))
}

// StatusResponse represents overall server status
type StatusResponse struct {
	Online         bool   `json:"online"`
	Uptime         string `json:"uptime"`
	Version        string `json:"version"`
	RootFolder     string `json:"root_folder"`
	MapEntries     int    `json:"map_entries"`
	MapFingerprint string `json:"map_fingerprint"`
	HitsEnabled    bool   `json:"hits_enabled"`
	AccessLogs     bool   `json:"access_logs_enabled"`
	StreamClients  int    `json:"stream_clients"`
}

// GetStatus returns server status
// GET /api/status
func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	table := h.resolver.Table()
	resp := StatusResponse{
		Online:         true,
		Uptime:         formatDuration(time.Since(h.startedAt)),
		Version:        Version,
		RootFolder:     h.rootFolder,
		MapEntries:     table.Len(),
		MapFingerprint: fmt.Sprintf("%016x", table.Fingerprint()),
		HitsEnabled:    h.hits != nil,
		AccessLogs:     h.logs != nil,
	}
	if h.stream != nil {
		resp.StreamClients = h.stream.ClientCount()
	}
	writeResponse(w, NewSuccessResponse(resp))
}

// GetMap returns the loaded override entries ordered by request path
// GET /api/map
func (h *AdminHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	entries := h.resolver.Table().Entries()
	if entries == nil {
		entries = []domain.MappingEntry{}
	}
	writeResponse(w, NewSuccessResponse(entries))
}

// ResolveResponse is a dry-run resolution result
type ResolveResponse struct {
	RequestPath string      `json:"request_path"`
	Found       bool        `json:"found"`
	File        string      `json:"file,omitempty"`
	Rule        domain.Rule `json:"rule,omitempty"`
	Index       bool        `json:"index"`
}

// Resolve shows which file a request path would be served from, without reading it
// GET /api/resolve?path=/x
func (h *AdminHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeResponse(w, BadRequestResponse("path query parameter is required"))
		return
	}

	target := h.resolver.Resolve(path)
	writeResponse(w, NewSuccessResponse(ResolveResponse{
		RequestPath: path,
		Found:       target.Found(),
		File:        target.Path,
		Rule:        target.Rule,
		Index:       target.Index,
	}))
}

// GetHits returns per path and per file request counters
// GET /api/hits
func (h *AdminHandler) GetHits(w http.ResponseWriter, r *http.Request) {
	if h.hits == nil {
		writeResponse(w, UnavailableResponse("hit counters are not configured (set REDIS_ADDR)"))
		return
	}

	counts, err := h.hits.Counts(r.Context())
	if err != nil {
		slog.Error("Failed to read hit counters", "error", err)
		writeResponse(w, InternalErrorResponse("failed to read hit counters"))
		return
	}
	writeResponse(w, NewSuccessResponse(counts))
}

// GetRecentLogs returns the newest access records
// GET /api/logs/recent?limit=N
func (h *AdminHandler) GetRecentLogs(w http.ResponseWriter, r *http.Request) {
	if h.logs == nil {
		writeResponse(w, UnavailableResponse("access logs are not configured (set DB_HOST)"))
		return
	}

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeResponse(w, BadRequestResponse("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRecentLimit)
	}

	records, err := h.logs.RecentAccessLogs(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read recent access logs", "error", err)
		writeResponse(w, InternalErrorResponse("failed to read access logs"))
		return
	}
	if records == nil {
		records = []domain.AccessRecord{}
	}
	writeResponse(w, NewSuccessResponse(records))
}

// SystemMetricsResponse represents host health data
type SystemMetricsResponse struct {
	CPUPercent        float64 `json:"cpu_percent"`
	RAMUsedGB         float64 `json:"ram_used_gb"`
	RAMTotalGB        float64 `json:"ram_total_gb"`
	RAMPercent        float64 `json:"ram_percent"`
	DiskUsedGB        float64 `json:"disk_used_gb"`
	DiskTotalGB       float64 `json:"disk_total_gb"`
	DiskPercent       float64 `json:"disk_percent"`
	GoroutinesCount   int     `json:"goroutines_count"`
	WatchdogActive    bool    `json:"watchdog_active"`
	WatchdogThreshold float64 `json:"watchdog_threshold"`
}

// GetSystemMetrics returns current host metrics for the disk holding the root folder
// GET /api/system/metrics
func (h *AdminHandler) GetSystemMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// CPU usage (average over 1 second)
	var cpuPercent float64
	if cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	var ramUsedGB, ramTotalGB, ramPercent float64
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		ramUsedGB = bytesToGB(memStat.Used)
		ramTotalGB = bytesToGB(memStat.Total)
		ramPercent = memStat.UsedPercent
	}

	var diskUsedGB, diskTotalGB, diskPercent float64
	if diskStat, err := disk.UsageWithContext(ctx, h.rootFolder); err == nil {
		diskUsedGB = bytesToGB(diskStat.Used)
		diskTotalGB = bytesToGB(diskStat.Total)
		diskPercent = diskStat.UsedPercent
	}

	resp := SystemMetricsResponse{
		CPUPercent:        roundTo2Decimals(cpuPercent),
		RAMUsedGB:         roundTo2Decimals(ramUsedGB),
		RAMTotalGB:        roundTo2Decimals(ramTotalGB),
		RAMPercent:        roundTo2Decimals(ramPercent),
		DiskUsedGB:        roundTo2Decimals(diskUsedGB),
		DiskTotalGB:       roundTo2Decimals(diskTotalGB),
		DiskPercent:       roundTo2Decimals(diskPercent),
		GoroutinesCount:   runtime.NumGoroutine(),
		WatchdogActive:    h.logs != nil && diskPercent >= h.threshold,
		WatchdogThreshold: h.threshold,
	}

	slog.Debug("System metrics retrieved",
		"cpu", cpuPercent,
		"disk_percent", diskPercent,
	)

	writeResponse(w, NewSuccessResponse(resp))
}

func bytesToGB(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}

func roundTo2Decimals(val float64) float64 {
	return float64(int(val*100)) / 100
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60

	if hours > 24 {
		days := hours / 24
		hours = hours % 24
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}

	return fmt.Sprintf("%dh %dm", hours, minutes)
}
