package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

const settingSchedulerEnabled = "scheduler_enabled"

// SettingsRepository stores scheduler settings in the auto_update_settings table.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new SettingsRepository backed by SQLite.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// SchedulerEnabled returns the persisted flag. ok is false when it was never stored.
func (r *SettingsRepository) SchedulerEnabled(ctx context.Context) (bool, bool, error) {
	value, ok, err := r.get(ctx, settingSchedulerEnabled)
	if err != nil || !ok {
		return false, ok, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("parse %s=%q: %w", settingSchedulerEnabled, value, err)
	}
	return enabled, true, nil
}

// SetSchedulerEnabled persists the flag.
func (r *SettingsRepository) SetSchedulerEnabled(ctx context.Context, enabled bool) error {
	return r.set(ctx, settingSchedulerEnabled, strconv.FormatBool(enabled))
}

func (r *SettingsRepository) get(ctx context.Context, name string) (string, bool, error) {
	query, args, err := psql.Select("value").
		From("auto_update_settings").
		Where("name = ?", name).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build settings query: %w", err)
	}

	var value string
	if err := r.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting %s: %w", name, err)
	}
	return value, true, nil
}

func (r *SettingsRepository) set(ctx context.Context, name, value string) error {
	query, args, err := psql.Insert("auto_update_settings").
		Columns("name", "value", "updated_at").
		Values(name, value, time.Now().UTC()).
		Suffix("ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build settings upsert: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write setting %s: %w", name, err)
		}
		return nil
	})
}
