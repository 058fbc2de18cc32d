// Package scheduler runs periodic housekeeping for pianola.
// It prunes idle playback sessions, expires old playback records and
// publishes the catalog circuit breaker state on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/pianola/internal/metrics"
	"github.com/jmylchreest/pianola/pkg/httpclient"
)

// DefaultSchedule runs housekeeping every five minutes.
const DefaultSchedule = "0 */5 * * * *"

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Pruner removes stale playback state.
type Pruner interface {
	PruneSessions(olderThan time.Duration) int
	PruneRecords(ctx context.Context, retention time.Duration) (int64, error)
}

// CircuitReporter exposes the state of an upstream circuit breaker.
type CircuitReporter interface {
	CircuitState() httpclient.CircuitState
}

// Config holds configuration for the scheduler.
type Config struct {
	// Schedule is a cron expression with an optional leading seconds field.
	// Descriptors such as "@every 1m" are accepted.
	Schedule string

	// SessionIdleTimeout is how long ended or errored sessions are kept.
	SessionIdleTimeout time.Duration

	// RecordRetention is how long playback records are kept. Zero disables
	// record expiry.
	RecordRetention time.Duration

	// RunTimeout bounds a single housekeeping run.
	// Default: 1 minute
	RunTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Schedule:           DefaultSchedule,
		SessionIdleTimeout: 30 * time.Minute,
		RecordRetention:    90 * 24 * time.Hour,
		RunTimeout:         time.Minute,
	}
}

// parser accepts both 5-field and 6-field expressions.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether expr is a schedule the scheduler accepts.
func ValidateSchedule(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// Scheduler runs housekeeping jobs on a cron schedule.
type Scheduler struct {
	mu sync.Mutex

	pruner  Pruner
	circuit CircuitReporter
	config  Config
	logger  *slog.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	runs    int
	lastRun time.Time
}

// New creates a scheduler. circuit may be nil when no remote catalog is
// configured.
func New(pruner Pruner, circuit CircuitReporter) *Scheduler {
	return &Scheduler{
		pruner:  pruner,
		circuit: circuit,
		config:  DefaultConfig(),
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithConfig applies configuration to the scheduler. Zero values keep the
// defaults, except RecordRetention where zero disables expiry.
func (s *Scheduler) WithConfig(config Config) *Scheduler {
	if config.Schedule != "" {
		s.config.Schedule = config.Schedule
	}
	if config.SessionIdleTimeout > 0 {
		s.config.SessionIdleTimeout = config.SessionIdleTimeout
	}
	if config.RecordRetention >= 0 {
		s.config.RecordRetention = config.RecordRetention
	}
	if config.RunTimeout > 0 {
		s.config.RunTimeout = config.RunTimeout
	}
	return s
}

// Start registers the housekeeping job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	cl := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.config.Schedule, func() { s.RunOnce(runCtx) }); err != nil {
		cancel()
		return fmt.Errorf("registering housekeeping job: %w", err)
	}

	s.cron = c
	s.ctx = runCtx
	s.cancel = cancel
	c.Start()

	s.logger.Info("scheduler started",
		slog.String("schedule", s.config.Schedule),
		slog.Duration("session_idle_timeout", s.config.SessionIdleTimeout),
		slog.Duration("record_retention", s.config.RecordRetention))

	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}

	cancel()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
}

// RunOnce performs a single housekeeping pass.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	sessions := s.pruner.PruneSessions(s.config.SessionIdleTimeout)

	records, err := s.pruner.PruneRecords(ctx, s.config.RecordRetention)
	if err != nil {
		s.logger.Error("failed to prune playback records", slog.Any("error", err))
	}

	if s.circuit != nil {
		metrics.SetCatalogCircuitState(s.circuit.CircuitState().String())
	}

	s.mu.Lock()
	s.runs++
	s.lastRun = start
	s.mu.Unlock()

	s.logger.Debug("housekeeping completed",
		slog.Int("sessions_pruned", sessions),
		slog.Int64("records_pruned", records),
		slog.Duration("duration", time.Since(start)))
}

// Status describes the scheduler for health reporting.
type Status struct {
	Running  bool      `json:"running"`
	Schedule string    `json:"schedule"`
	Runs     int       `json:"runs"`
	LastRun  time.Time `json:"last_run,omitzero"`
	NextRun  time.Time `json:"next_run,omitzero"`
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:  s.cron != nil,
		Schedule: s.config.Schedule,
		Runs:     s.runs,
		LastRun:  s.lastRun,
	}
	if s.cron != nil {
		if entries := s.cron.Entries(); len(entries) > 0 {
			st.NextRun = entries[0].Next
		}
	}
	return st
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.Any("error", err)}, keysAndValues...)...)
}
