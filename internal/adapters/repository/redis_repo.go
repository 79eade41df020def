// Package repository implements data persistence adapters
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
)

// Ensure RedisRepository implements HitCounter
var _ ports.HitCounter = (*RedisRepository)(nil)

// RedisRepository keeps request counters in two Redis hashes,
// one keyed by request path and one by served file
type RedisRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisRepository creates a new Redis repository instance
func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "mock"
	}
	return &RedisRepository{
		client: client,
		prefix: prefix,
	}
}

// Increment bumps the path counter and, when file is set, the file counter.
// Both increments go out in one pipeline.
func (r *RedisRepository) Increment(ctx context.Context, requestPath, file string) error {
	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, buildPathKey(r.prefix), requestPath, 1)
	if file != "" {
		pipe.HIncrBy(ctx, buildFileKey(r.prefix), file, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to increment hit counters",
			"error", err,
			"path", requestPath,
		)
		return fmt.Errorf("increment hits: %w", err)
	}

	slog.Debug("Hit counters incremented",
		"path", requestPath,
		"file", file,
	)
	return nil
}

// Counts returns every path and file counter
func (r *RedisRepository) Counts(ctx context.Context) (*domain.HitCounts, error) {
	paths, err := r.readHash(ctx, buildPathKey(r.prefix))
	if err != nil {
		return nil, fmt.Errorf("read path hits: %w", err)
	}

	files, err := r.readHash(ctx, buildFileKey(r.prefix))
	if err != nil {
		return nil, fmt.Errorf("read file hits: %w", err)
	}

	return &domain.HitCounts{Paths: paths, Files: files}, nil
}

func (r *RedisRepository) readHash(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err == redis.Nil {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parseCounters(raw), nil
}

// parseCounters converts hash values to integers, skipping garbage
func parseCounters(raw map[string]string) map[string]int64 {
	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			slog.Warn("Skipping non-numeric hit counter", "field", field, "value", value)
			continue
		}
		out[field] = n
	}
	return out
}

// buildPathKey constructs the hash key for request path counters
// Key format: {prefix}:hits:paths
func buildPathKey(prefix string) string {
	return fmt.Sprintf("%s:hits:paths", prefix)
}

// buildFileKey constructs the hash key for served file counters
// Key format: {prefix}:hits:files
func buildFileKey(prefix string) string {
	return fmt.Sprintf("%s:hits:files", prefix)
}
