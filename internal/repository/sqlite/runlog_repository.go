package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"auto_update_reviews/internal/domain"
)

var runLogColumns = []string{
	"id", "timestamp", "started_at", "finished_at", "status", "message",
	"videos_found", "videos_added", "trigger_source",
}

// RunLogRepository is a SQLite implementation of domain.RunLogRepository.
type RunLogRepository struct {
	db *sqlx.DB
}

// NewRunLogRepository creates a new RunLogRepository backed by SQLite.
func NewRunLogRepository(db *sqlx.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

// AppendLog inserts a log entry and stores the generated id on it.
func (r *RunLogRepository) AppendLog(ctx context.Context, entry *domain.RunLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = entry.Timestamp
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = entry.Timestamp
	}
	if entry.Trigger == "" {
		entry.Trigger = domain.TriggerSchedule
	}

	query, args, err := psql.Insert("update_logs").
		Columns(runLogColumns[1:]...).
		Values(
			entry.Timestamp.UTC(), entry.StartedAt.UTC(), entry.FinishedAt.UTC(),
			string(entry.Status), entry.Message, entry.Found, entry.Added, string(entry.Trigger),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build log insert: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("append run log: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			entry.ID = id
		}
		return nil
	})
}

// ListLogs returns up to limit entries, newest first.
func (r *RunLogRepository) ListLogs(ctx context.Context, limit int) ([]*domain.RunLog, error) {
	builder := psql.Select(runLogColumns...).
		From("update_logs").
		OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build log query: %w", err)
	}

	var logs []*domain.RunLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return logs, nil
}

// LastSuccess returns the newest SUCCESS entry, or nil when there is none.
func (r *RunLogRepository) LastSuccess(ctx context.Context) (*domain.RunLog, error) {
	query, args, err := psql.Select(runLogColumns...).
		From("update_logs").
		Where("status = ?", string(domain.RunStatusSuccess)).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build last success query: %w", err)
	}

	var entry domain.RunLog
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last successful run: %w", err)
	}
	return &entry, nil
}
