package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/FilipeRosar/oddsscanner/internal/domain"
)

// CycleLockKey guards against overlapping cycles across processes.
const CycleLockKey = "sync-cycle"

// CycleRunner executes one sync pass.
type CycleRunner interface {
	Run(ctx context.Context) (CycleReport, error)
}

// SchedulerConfig controls the periodic loop.
type SchedulerConfig struct {
	Interval       time.Duration
	CycleTimeout   time.Duration
	MaxRetries     uint64
	RetryBaseDelay time.Duration
	LockTTL        time.Duration
}

// DefaultSchedulerConfig returns the production settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:       30 * time.Minute,
		CycleTimeout:   5 * time.Minute,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Second,
		LockTTL:        10 * time.Minute,
	}
}

// SyncScheduler runs a cycle immediately and then on every interval tick.
// A failing cycle is retried with exponential backoff. Cancellation of the
// loop context is observed between cycles only; a cycle in flight finishes
// under its own timeout.
type SyncScheduler struct {
	cycle   CycleRunner
	locks   domain.LockManager
	cfg     SchedulerConfig
	trigger <-chan struct{}
	logger  *slog.Logger

	mu     sync.RWMutex
	status SyncStatus
}

// SyncStatus is the outcome of the most recent cycle this process ran.
type SyncStatus struct {
	LastRunAt     time.Time   `json:"lastRunAt"`
	LastSuccessAt time.Time   `json:"lastSuccessAt"`
	LastError     string      `json:"lastError,omitempty"`
	Attempts      int         `json:"attempts"`
	LastReport    CycleReport `json:"lastReport"`
}

// Status returns a copy of the latest cycle outcome.
func (s *SyncScheduler) Status() SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// NewSyncScheduler creates a SyncScheduler. locks may be nil for a single
// process deployment.
func NewSyncScheduler(cycle CycleRunner, locks domain.LockManager, cfg SchedulerConfig, logger *slog.Logger) *SyncScheduler {
	def := DefaultSchedulerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = def.CycleTimeout
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	return &SyncScheduler{
		cycle:  cycle,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sync_scheduler")),
	}
}

// WithTrigger makes every receive on ch run an extra cycle.
func (s *SyncScheduler) WithTrigger(ch <-chan struct{}) *SyncScheduler {
	s.trigger = ch
	return s
}

// RunLoop blocks until ctx is cancelled.
func (s *SyncScheduler) RunLoop(ctx context.Context) error {
	s.logger.Info("sync loop starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("cycle_timeout", s.cfg.CycleTimeout),
	)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.trigger:
			s.logger.Info("manual sync triggered")
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one cycle with retries and reports whether it succeeded.
func (s *SyncScheduler) RunOnce(parent context.Context) bool {
	if parent.Err() != nil {
		return false
	}

	cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.CycleTimeout)
	defer cancel()

	if s.locks != nil {
		unlock, err := s.locks.Acquire(cycleCtx, CycleLockKey, s.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.Info("sync cycle skipped, lock held elsewhere")
			return false
		}
		if err != nil {
			s.logger.Error("acquire cycle lock failed", slog.String("error", err.Error()))
			return false
		}
		defer unlock()
	}

	startedAt := time.Now().UTC()
	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(s.cfg.RetryBaseDelay))
	attempt := 0
	var report CycleReport
	err := retry.Do(cycleCtx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		report, err = s.cycle.Run(ctx)
		if err == nil {
			return nil
		}
		s.logger.Warn("sync cycle attempt failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		// No further attempts once shutdown was requested.
		if parent.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
	s.record(startedAt, attempt, report, err)
	if err != nil {
		s.logger.Error("sync cycle failed",
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (s *SyncScheduler) record(startedAt time.Time, attempts int, report CycleReport, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastRunAt = startedAt
	s.status.Attempts = attempts
	s.status.LastReport = report
	if err != nil {
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
	s.status.LastSuccessAt = startedAt
}

