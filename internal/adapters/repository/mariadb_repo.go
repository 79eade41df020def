// Package repository implements data persistence adapters
// Following Hexagonal Architecture: Adapters implement ports defined in core
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
)

// Ensure MariaDBRepository implements AccessLogRepository
var _ ports.AccessLogRepository = (*MariaDBRepository)(nil)

const accessLogSchema = `
	CREATE TABLE IF NOT EXISTS access_logs (
		id            BIGINT AUTO_INCREMENT PRIMARY KEY,
		request_id    CHAR(36)      NOT NULL,
		method        VARCHAR(16)   NOT NULL,
		path          VARCHAR(2048) NOT NULL,
		status        SMALLINT      NOT NULL,
		rule          VARCHAR(16)   NOT NULL DEFAULT '',
		resolved_file VARCHAR(4096) NOT NULL DEFAULT '',
		bytes         BIGINT        NOT NULL DEFAULT 0,
		duration_us   BIGINT        NOT NULL DEFAULT 0,
		remote_addr   VARCHAR(64)   NOT NULL DEFAULT '',
		created_at    DATETIME(6)   NOT NULL,
		INDEX idx_access_logs_created_at (created_at)
	)
`

// MariaDBRepository persists access records in MariaDB
type MariaDBRepository struct {
	db *sql.DB
}

// NewMariaDBRepository creates a new MariaDB repository instance
func NewMariaDBRepository(db *sql.DB) *MariaDBRepository {
	return &MariaDBRepository{
		db: db,
	}
}

// EnsureSchema creates the access_logs table when missing
func (r *MariaDBRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, accessLogSchema); err != nil {
		return fmt.Errorf("create access_logs table: %w", err)
	}
	return nil
}

// SaveAccessLog persists one served request
func (r *MariaDBRepository) SaveAccessLog(ctx context.Context, rec *domain.AccessRecord) error {
	query := `
		INSERT INTO access_logs (
			request_id, method, path, status, rule,
			resolved_file, bytes, duration_us, remote_addr, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.RequestID,
		rec.Method,
		rec.Path,
		rec.Status,
		string(rec.Rule),
		rec.ResolvedFile,
		rec.Bytes,
		rec.Duration.Microseconds(),
		rec.RemoteAddr,
		rec.CreatedAt,
	)
	if err != nil {
		slog.Error("Failed to save access log",
			"error", err,
			"request_id", rec.RequestID,
		)
		return fmt.Errorf("save access log: %w", err)
	}

	slog.Debug("Access log saved",
		"request_id", rec.RequestID,
		"status", rec.Status,
	)
	return nil
}

// RecentAccessLogs returns the newest records first
func (r *MariaDBRepository) RecentAccessLogs(ctx context.Context, limit int) ([]domain.AccessRecord, error) {
	query := `
		SELECT id, request_id, method, path, status, rule,
			   resolved_file, bytes, duration_us, remote_addr, created_at
		FROM access_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query access logs: %w", err)
	}
	defer rows.Close()

	var records []domain.AccessRecord
	for rows.Next() {
		var (
			rec        domain.AccessRecord
			rule       string
			durationUS int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.Method,
			&rec.Path,
			&rec.Status,
			&rule,
			&rec.ResolvedFile,
			&rec.Bytes,
			&durationUS,
			&rec.RemoteAddr,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		rec.Rule = domain.Rule(rule)
		rec.Duration = time.Duration(durationUS) * time.Microsecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate access logs: %w", err)
	}

	return records, nil
}

// PurgeOlderThan deletes at most limit records created before cutoff
func (r *MariaDBRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	query := `
		DELETE FROM access_logs
		WHERE created_at < ?
		ORDER BY created_at
		LIMIT ?
	`

	result, err := r.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge access logs: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
