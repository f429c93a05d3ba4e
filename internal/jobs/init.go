package jobs

import (
	"context"
	"fmt"
	"sync"

	"groundtransfer/opsdesk/internal/config"
	"groundtransfer/opsdesk/internal/logging"
	"groundtransfer/opsdesk/internal/services"
	"groundtransfer/opsdesk/internal/workers"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the sync strategies and the backfill on their cron specs.
// A job still running when its next tick fires is skipped; different jobs may overlap.
type Scheduler struct {
	cron     *cron.Cron
	sync     *BookingSyncJob
	backfill *workers.BookingBackfillWorker
	cfg      *config.Config

	mu      sync.Mutex
	ctx     context.Context
	running bool
}

// NewScheduler creates a scheduler; call Start to register and run the jobs
func NewScheduler(syncJob *BookingSyncJob, backfill *workers.BookingBackfillWorker, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		)),
		sync:     syncJob,
		backfill: backfill,
		cfg:      cfg,
	}
}

// InitializeJobs registers every configured job and starts the scheduler
func InitializeJobs(ctx context.Context, syncJob *BookingSyncJob, backfill *workers.BookingBackfillWorker, cfg *config.Config) (*Scheduler, error) {
	s := NewScheduler(syncJob, backfill, cfg)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Start registers the cron entries. An empty spec disables that job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	s.ctx = ctx

	entries := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"recency", s.cfg.Schedule.RecencyCron, func(ctx context.Context) { s.runStrategy(ctx, s.sync.RecencyStrategy()) }},
		{"horizon", s.cfg.Schedule.HorizonCron, func(ctx context.Context) { s.runStrategy(ctx, s.sync.HorizonStrategy(0)) }},
		{"backfill", s.cfg.Schedule.BackfillCron, s.runBackfill},
	}

	for _, e := range entries {
		if e.spec == "" {
			logging.Info("Scheduled job disabled", "job", e.name)
			continue
		}
		run := e.run
		if _, err := s.cron.AddFunc(e.spec, func() { run(s.ctx) }); err != nil {
			return fmt.Errorf("adding %s schedule %q: %w", e.name, e.spec, err)
		}
		logging.Info("Scheduled job registered", "job", e.name, "spec", e.spec)
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop stops new ticks and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	logging.Info("Stopping sync scheduler")
	<-s.cron.Stop().Done()
	s.running = false
}

// Entries reports how many jobs are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) runStrategy(ctx context.Context, strategy services.Strategy) {
	if _, err := s.sync.Run(ctx, strategy); err != nil {
		logging.Error("Scheduled sync failed", "strategy", strategy.Name(), "error", err)
	}
}

func (s *Scheduler) runBackfill(ctx context.Context) {
	_, err := s.backfill.Run(ctx, workers.BackfillOptions{
		BatchSize: s.cfg.Sync.BackfillBatchSize,
		DaysAhead: s.cfg.Sync.BackfillDaysAhead,
		Delay:     s.cfg.Sync.BackfillDelay,
	})
	if err != nil {
		logging.Error("Scheduled backfill failed", "error", err)
	}
}

// cronLogger routes cron's own messages through zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
