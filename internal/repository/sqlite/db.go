package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode       = 5
	sqliteConstraintCode = 19

	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Open opens (or creates) a SQLite database using the configured URL.
// Supported formats:
//   - sqlite3:./db.sqlite
//   - sqlite:./db.sqlite
//   - file:./db.sqlite
func Open(databaseURL string) (*sqlx.DB, error) {
	dsn := normalizeDSN(databaseURL)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite works best with a single writer connection for WAL
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func normalizeDSN(databaseURL string) string {
	dsn := strings.TrimSpace(databaseURL)
	if dsn == "" {
		dsn = "./db.sqlite"
	}

	if idx := strings.Index(dsn, ":"); idx != -1 {
		prefix := dsn[:idx]
		if prefix == "sqlite3" || prefix == "sqlite" {
			dsn = dsn[idx+1:]
		}
	}

	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "./db.sqlite"
	}

	if !strings.HasPrefix(dsn, "file:") {
		if !strings.Contains(dsn, ":/") && !strings.HasPrefix(dsn, "./") && !strings.HasPrefix(dsn, "/") {
			dsn = "./" + dsn
		}
		dsn = "file:" + filepath.Clean(dsn)
	}

	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}

	return dsn
}

func configurePragmas(db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("configure sqlite pragma (%s): %w", pragma, err)
		}
	}
	return nil
}

func ensureSchema(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS video_reviews (
			id TEXT PRIMARY KEY,
			video_id TEXT UNIQUE,
			title TEXT NOT NULL,
			movie_title TEXT,
			reviewer_name TEXT,
			video_url TEXT NOT NULL UNIQUE,
			video_type TEXT NOT NULL DEFAULT 'youtube',
			description TEXT,
			thumbnail_url TEXT,
			duration INTEGER NOT NULL DEFAULT 0,
			view_count INTEGER NOT NULL DEFAULT 0,
			rating INTEGER NOT NULL DEFAULT 7,
			published INTEGER NOT NULL DEFAULT 1,
			country TEXT,
			genre TEXT,
			movie_type TEXT,
			series_name TEXT,
			episode_number INTEGER,
			published_at TIMESTAMP NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_video_reviews_created ON video_reviews(created_at);`,
		`CREATE TABLE IF NOT EXISTS update_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TIMESTAMP NOT NULL,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			videos_found INTEGER NOT NULL DEFAULT 0,
			videos_added INTEGER NOT NULL DEFAULT 0,
			trigger_source TEXT NOT NULL DEFAULT 'schedule'
		);`,
		`CREATE TABLE IF NOT EXISTS auto_update_settings (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	// Databases created before classification was added lack these columns.
	// SQLite doesn't support IF NOT EXISTS for ALTER TABLE, so we need to check first
	migrationStatements := []struct {
		table  string
		column string
		ddl    string
	}{
		{"video_reviews", "country", "TEXT"},
		{"video_reviews", "genre", "TEXT"},
		{"video_reviews", "movie_type", "TEXT"},
		{"video_reviews", "series_name", "TEXT"},
		{"video_reviews", "episode_number", "INTEGER"},
		{"update_logs", "trigger_source", "TEXT NOT NULL DEFAULT 'schedule'"},
	}

	for _, migration := range migrationStatements {
		var count int
		checkQuery := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?`, migration.table)
		addQuery := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, migration.table, migration.column, migration.ddl)
		if err := db.QueryRow(checkQuery, migration.column).Scan(&count); err != nil {
			// If query fails, try to add column anyway (table might exist but pragma query failed)
			_, _ = db.Exec(addQuery)
			continue
		}
		if count == 0 {
			if _, err := db.Exec(addQuery); err != nil {
				return fmt.Errorf("migrate %s.%s: %w", migration.table, migration.column, err)
			}
		}
	}

	return nil
}

// withTx runs fn inside a transaction that is committed on success and rolled back otherwise.
// The whole transaction is retried while SQLite reports the database as busy.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

func errorCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := errorCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := errorCode(err); ok && code&0xff == sqliteConstraintCode {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
