package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"folder-mock/internal/core/ports"
)

const purgeBatchSize = 1000

// DiskUsageFunc returns the used percentage of the filesystem holding path
type DiskUsageFunc func(ctx context.Context, path string) (float64, error)

// HostDiskUsage reads disk usage through gopsutil
func HostDiskUsage(ctx context.Context, path string) (float64, error) {
	stat, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}

// Watchdog purges old access logs when the disk holding the mock folder fills up
type Watchdog struct {
	repo      ports.AccessLogRepository
	path      string
	interval  time.Duration
	threshold float64
	retention time.Duration
	usage     DiskUsageFunc
	now       func() time.Time
}

// NewWatchdog creates a watchdog checking the disk that holds path
func NewWatchdog(repo ports.AccessLogRepository, path string, interval time.Duration, threshold float64, retention time.Duration) *Watchdog {
	return &Watchdog{
		repo:      repo,
		path:      path,
		interval:  interval,
		threshold: threshold,
		retention: retention,
		usage:     HostDiskUsage,
		now:       time.Now,
	}
}

// Run checks on every tick until ctx is cancelled (call as goroutine)
func (w *Watchdog) Run(ctx context.Context) {
	if w.repo == nil || w.interval <= 0 {
		slog.Info("[WATCHDOG] Disabled, no access log storage configured")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("[WATCHDOG] Service started",
		"interval", w.interval,
		"threshold_percent", w.threshold,
		"retention", w.retention,
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one resource check and returns the number of purged records
func (w *Watchdog) Check(ctx context.Context) int64 {
	used, err := w.usage(ctx, w.path)
	if err != nil {
		slog.Warn("[WATCHDOG] Cannot read disk usage", "error", err, "path", w.path)
		return 0
	}

	// Purge only when the disk is over the threshold and records are past retention
	if used < w.threshold {
		slog.Debug("[WATCHDOG] Disk usage OK", "used_percent", used)
		return 0
	}

	cutoff := w.now().Add(-w.retention)
	purged, err := w.repo.PurgeOlderThan(ctx, cutoff, purgeBatchSize)
	if err != nil {
		slog.Error("[WATCHDOG] Error during access log purge", "error", err)
		return 0
	}

	slog.Info("[WATCHDOG] Purged old access logs",
		"used_percent", used,
		"purged", purged,
		"cutoff", cutoff,
	)
	return purged
}
