package domain

import (
	"context"
	"time"
)

// RunStatus is the outcome recorded for a pipeline run.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusError   RunStatus = "ERROR"
)

// RunTrigger records what started a run.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
)

// RunLog is an append-only record of one pipeline run.
type RunLog struct {
	ID         int64      `db:"id" json:"id"`
	Timestamp  time.Time  `db:"timestamp" json:"timestamp"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt time.Time  `db:"finished_at" json:"finished_at"`
	Status     RunStatus  `db:"status" json:"status"`
	Message    string     `db:"message" json:"message"`
	Found      int        `db:"videos_found" json:"videos_found"`
	Added      int        `db:"videos_added" json:"videos_added"`
	Trigger    RunTrigger `db:"trigger_source" json:"trigger"`
}

// RunResult summarizes one pipeline run.
type RunResult struct {
	Found        int  `json:"found"`
	Accepted     int  `json:"accepted"`
	Unique       int  `json:"unique"`
	Added        int  `json:"added"`
	Rejected     int  `json:"rejected"`
	FallbackUsed bool `json:"fallback_used"`
}

// RunLogRepository persists run log entries
type RunLogRepository interface {
	// AppendLog stores a new entry
	AppendLog(ctx context.Context, entry *RunLog) error

	// ListLogs returns up to limit entries, newest first
	ListLogs(ctx context.Context, limit int) ([]*RunLog, error)

	// LastSuccess returns the newest SUCCESS entry, or nil
	LastSuccess(ctx context.Context) (*RunLog, error)
}

// SettingsStore persists scheduler settings that must survive restarts
type SettingsStore interface {
	// SchedulerEnabled returns the stored flag; ok is false when nothing was stored yet
	SchedulerEnabled(ctx context.Context) (enabled bool, ok bool, err error)

	// SetSchedulerEnabled stores the flag
	SetSchedulerEnabled(ctx context.Context, enabled bool) error
}
