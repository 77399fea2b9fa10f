package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"auto_update_reviews/config"
	"auto_update_reviews/internal/domain"
	"auto_update_reviews/internal/metrics"
)

const defaultLogLimit = 10

// ErrRunNotStarted is returned by TriggerManualRun when ctx ends while waiting for the running job.
var ErrRunNotStarted = errors.New("run did not start")

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context) (domain.RunResult, error)
}

// Options controls when scheduled runs happen.
type Options struct {
	Schedule   string        // cron expression; overrides Interval when set
	Interval   time.Duration // used as "@every <Interval>" when Schedule is empty
	Enabled    bool          // initial flag when nothing was persisted yet
	RunOnStart bool
	RunTimeout time.Duration
}

// OptionsFromConfig extracts scheduler options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Schedule:   cfg.Schedule,
		Interval:   cfg.SchedulerInterval,
		Enabled:    cfg.SchedulerEnabled,
		RunOnStart: cfg.RunOnStart,
		RunTimeout: cfg.RunTimeout,
	}
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running   bool       `json:"is_running"`
	Executing bool       `json:"is_executing"`
	Enabled   bool       `json:"enabled"`
	Interval  string     `json:"interval"`
	Schedule  string     `json:"schedule"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// Stats summarizes run history.
type Stats struct {
	Enabled     bool           `json:"enabled"`
	LastRun     *domain.RunLog `json:"last_run"`
	LastSuccess *domain.RunLog `json:"last_success"`
	TotalAdded  int            `json:"total_videos"`
}

// Scheduler runs the ingestion pipeline on a timer and on demand, never more than one run at a time
type Scheduler struct {
	runner   Runner
	logs     domain.RunLogRepository
	reviews  domain.ReviewRepository
	settings domain.SettingsStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options

	// lock holds a token while a run executes
	lock chan struct{}

	mu        sync.Mutex
	cron      *cron.Cron
	entryID   cron.EntryID
	running   bool
	executing bool
	enabled   bool
}

// NewScheduler creates a stopped scheduler. The enabled flag is restored from settings when present.
func NewScheduler(
	runner Runner,
	logs domain.RunLogRepository,
	reviews domain.ReviewRepository,
	settings domain.SettingsStore,
	m *metrics.Metrics,
	opts Options,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}

	s := &Scheduler{
		runner:   runner,
		logs:     logs,
		reviews:  reviews,
		settings: settings,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		lock:     make(chan struct{}, 1),
		enabled:  opts.Enabled,
	}

	if settings != nil {
		enabled, ok, err := settings.SchedulerEnabled(context.Background())
		switch {
		case err != nil:
			logger.Warn("could not restore scheduler flag, using config value", zap.Error(err))
		case ok:
			s.enabled = enabled
		}
	}
	return s
}

// Start registers the timer. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	spec := s.spec()
	c := cron.New(cron.WithSeconds())
	id, err := c.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule ingestion job (%s): %w", spec, err)
	}

	s.cron = c
	s.entryID = id
	s.running = true
	c.Start()

	s.logger.Info("scheduler started", zap.String("schedule", spec), zap.Bool("enabled", s.enabled))

	if s.opts.RunOnStart {
		go s.tick()
	}
	return nil
}

// Stop stops the timer. An in-flight run is not interrupted; the returned context is done once it finishes.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	s.logger.Info("stopping scheduler, waiting for in-flight run")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		<-cronDone.Done()
		// wait for a manual run holding the lock
		s.lock <- struct{}{}
		<-s.lock
		s.logger.Info("scheduler stopped")
	}()
	return ctx
}

// TriggerManualRun runs the pipeline now, regardless of the enabled flag.
// It waits for an in-flight run to finish; only the wait is cancelled by ctx.
func (s *Scheduler) TriggerManualRun(ctx context.Context) (domain.RunResult, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return domain.RunResult{}, fmt.Errorf("%w: %w", ErrRunNotStarted, ctx.Err())
	}
	defer func() { <-s.lock }()

	return s.execute(context.WithoutCancel(ctx), domain.TriggerManual)
}

// tick is the timer callback.
func (s *Scheduler) tick() {
	if !s.Enabled() {
		s.logger.Debug("scheduler disabled, skipping tick")
		return
	}

	select {
	case s.lock <- struct{}{}:
	default:
		s.logger.Info("previous run still executing, skipping tick")
		return
	}
	defer func() { <-s.lock }()

	if _, err := s.execute(context.Background(), domain.TriggerSchedule); err != nil {
		s.logger.Error("scheduled run failed", zap.Error(err))
	}
}

// execute runs the pipeline once and appends a run log. The caller holds the lock.
func (s *Scheduler) execute(ctx context.Context, trigger domain.RunTrigger) (domain.RunResult, error) {
	s.setExecuting(true)
	defer s.setExecuting(false)

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	started := time.Now()
	s.logger.Info("ingestion run started", zap.String("trigger", string(trigger)))

	result, err := s.runSafely(ctx)
	finished := time.Now()

	entry := &domain.RunLog{
		Timestamp:  finished,
		StartedAt:  started,
		FinishedAt: finished,
		Found:      result.Found,
		Added:      result.Added,
		Trigger:    trigger,
	}
	if err != nil {
		entry.Status = domain.RunStatusError
		entry.Message = fmt.Sprintf("Lỗi auto-update: %v", err)
	} else {
		entry.Status = domain.RunStatusSuccess
		entry.Message = fmt.Sprintf("Tìm thấy %d videos, thêm %d videos mới", result.Found, result.Added)
	}

	s.metrics.ObserveRun(string(trigger), string(entry.Status), finished.Sub(started))

	// the log outlives the run context
	if logErr := s.logs.AppendLog(context.WithoutCancel(ctx), entry); logErr != nil {
		s.logger.Error("failed to append run log", zap.Error(logErr))
	}

	s.logger.Info("ingestion run finished",
		zap.String("trigger", string(trigger)),
		zap.String("status", string(entry.Status)),
		zap.Int("found", result.Found),
		zap.Int("added", result.Added),
		zap.Duration("duration", finished.Sub(started)))

	return result, err
}

func (s *Scheduler) runSafely(ctx context.Context) (result domain.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			s.logger.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return s.runner.Run(ctx)
}

func (s *Scheduler) setExecuting(executing bool) {
	s.mu.Lock()
	s.executing = executing
	s.mu.Unlock()
	s.metrics.SetExecuting(executing)
}

// Enable turns scheduled runs on and persists the flag.
func (s *Scheduler) Enable(ctx context.Context) error {
	return s.setEnabled(ctx, true)
}

// Disable turns scheduled runs off and persists the flag. Manual runs still work.
func (s *Scheduler) Disable(ctx context.Context) error {
	return s.setEnabled(ctx, false)
}

func (s *Scheduler) setEnabled(ctx context.Context, enabled bool) error {
	if s.settings != nil {
		if err := s.settings.SetSchedulerEnabled(ctx, enabled); err != nil {
			return fmt.Errorf("persist scheduler flag: %w", err)
		}
	}
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.logger.Info("scheduler flag changed", zap.Bool("enabled", enabled))
	return nil
}

// Enabled reports whether timer ticks run the pipeline.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:   s.running,
		Executing: s.executing,
		Enabled:   s.enabled,
		Interval:  s.opts.Interval.String(),
		Schedule:  s.spec(),
	}
	if s.running && s.cron != nil {
		if next := s.cron.Entry(s.entryID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// Stats returns the last run, the last successful run and the number of stored reviews.
func (s *Scheduler) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Enabled: s.Enabled()}

	recent, err := s.logs.ListLogs(ctx, 1)
	if err != nil {
		return stats, fmt.Errorf("last run: %w", err)
	}
	if len(recent) > 0 {
		stats.LastRun = recent[0]
	}

	if stats.LastSuccess, err = s.logs.LastSuccess(ctx); err != nil {
		return stats, fmt.Errorf("last success: %w", err)
	}

	if s.reviews != nil {
		if stats.TotalAdded, err = s.reviews.Count(ctx); err != nil {
			return stats, fmt.Errorf("count reviews: %w", err)
		}
	}
	return stats, nil
}

// RecentLogs returns up to limit run logs, newest first. limit <= 0 means 10.
func (s *Scheduler) RecentLogs(ctx context.Context, limit int) ([]*domain.RunLog, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	return s.logs.ListLogs(ctx, limit)
}

// spec returns the cron spec for the configured schedule.
func (s *Scheduler) spec() string {
	if expr := strings.TrimSpace(s.opts.Schedule); expr != "" {
		return normalizeSchedule(expr)
	}
	return "@every " + s.opts.Interval.String()
}

// normalizeSchedule ensures cron expressions are compatible with cron.WithSeconds
func normalizeSchedule(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}
