// Package maintenance runs the recurring housekeeping that keeps the
// service inside its disk and broker bounds: a retention sweep over
// rendered outputs and job temp dirs, an xz-compressed backup of the
// clip library, and release of job claims held by workers that stopped
// heartbeating.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/cliparr/internal/config"
	"github.com/jmylchreest/cliparr/internal/observability"
	"github.com/jmylchreest/cliparr/internal/queue"
	"github.com/jmylchreest/cliparr/internal/store"
)

// staleClaimSchedule is how often claims of dead workers are requeued.
const staleClaimSchedule = "@every 1m"

// jobTimeout bounds a single maintenance run.
const jobTimeout = 10 * time.Minute

// Deps carries what the maintenance jobs operate on. DB, Clips, Runs and
// Broker may each be nil; jobs that need a missing dependency are skipped.
type Deps struct {
	Storage config.StorageConfig
	Backup  config.BackupConfig
	Sweep   config.MaintenanceConfig

	DB     *store.DB
	Clips  *store.ClipRepository
	Runs   *store.RunRepository
	Broker *queue.Broker
	Logger *slog.Logger
}

// Service schedules and runs the maintenance jobs.
type Service struct {
	deps   Deps
	logger *slog.Logger
	cron   *cron.Cron

	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	registered bool
}

// New builds the service. Nothing runs until Start. Schedules accept
// standard five-field cron, an optional leading seconds field, and
// @-descriptors.
func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = observability.WithComponent(logger, "maintenance")

	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	return &Service{
		deps:   d,
		logger: logger,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cronLogger))),
	}
}

// Start registers the enabled jobs and starts the scheduler. Claims
// orphaned by a crashed worker are requeued immediately rather than
// waiting for the first tick.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("maintenance already started")
	}

	if !s.registered {
		if s.deps.Sweep.Enabled {
			if _, err := s.cron.AddFunc(s.deps.Sweep.Schedule, s.runSweep); err != nil {
				return fmt.Errorf("invalid maintenance schedule %q: %w", s.deps.Sweep.Schedule, err)
			}
		}
		if s.deps.Backup.Enabled {
			if s.deps.DB == nil || s.deps.DB.Driver() != "sqlite" {
				s.logger.Warn("backups need the sqlite driver, backup job disabled")
			} else if _, err := s.cron.AddFunc(s.deps.Backup.Schedule, s.runBackup); err != nil {
				return fmt.Errorf("invalid backup schedule %q: %w", s.deps.Backup.Schedule, err)
			}
		}
		if s.deps.Broker != nil {
			if _, err := s.cron.AddFunc(staleClaimSchedule, s.runReleaseStale); err != nil {
				return fmt.Errorf("registering stale claim release: %w", err)
			}
		}
		s.registered = true
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	if s.deps.Broker != nil {
		go s.runReleaseStale()
	}

	s.logger.Info("maintenance started",
		slog.Bool("sweep", s.deps.Sweep.Enabled),
		slog.Bool("backup", s.deps.Backup.Enabled),
		slog.Duration("retention", time.Duration(s.deps.Storage.Retention)))
	return nil
}

// Stop cancels in-flight jobs and waits for them to return.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("maintenance stopped")
}

// jobContext derives a bounded context for one run. Reports false after
// Stop.
func (s *Service) jobContext() (context.Context, context.CancelFunc, bool) {
	s.mu.Lock()
	base := s.ctx
	s.mu.Unlock()
	if base == nil {
		return nil, nil, false
	}
	ctx, cancel := context.WithTimeout(base, jobTimeout)
	return ctx, cancel, true
}

func (s *Service) runSweep() {
	ctx, cancel, ok := s.jobContext()
	if !ok {
		return
	}
	defer cancel()

	stats, err := s.SweepRetention(ctx)
	if err != nil {
		s.logger.Error("retention sweep failed", slog.Any("error", err))
		return
	}
	if stats.OutputsRemoved > 0 || stats.TempDirsRemoved > 0 || stats.RunsPruned > 0 {
		s.logger.Info("retention sweep finished",
			slog.Int("outputs_removed", stats.OutputsRemoved),
			slog.Int("temp_dirs_removed", stats.TempDirsRemoved),
			slog.Int64("runs_pruned", stats.RunsPruned))
	}
}

func (s *Service) runBackup() {
	ctx, cancel, ok := s.jobContext()
	if !ok {
		return
	}
	defer cancel()

	if _, err := s.Backup(ctx); err != nil {
		s.logger.Error("backup failed", slog.Any("error", err))
	}
}

func (s *Service) runReleaseStale() {
	ctx, cancel, ok := s.jobContext()
	if !ok {
		return
	}
	defer cancel()

	released, err := s.deps.Broker.ReleaseStale(ctx, s.deps.Broker.HeartbeatTTL())
	if err != nil {
		s.logger.Warn("stale claim release failed", slog.Any("error", err))
		return
	}
	if released > 0 {
		s.logger.Info("requeued stale claims", slog.Int("count", released))
	}
}
