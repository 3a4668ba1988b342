package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IngestRunner is the ingestion entry point the scheduler drives.
type IngestRunner interface {
	Run(ctx context.Context) error
}

// SchedulerInterface is consumed by the API layer to trigger runs.
type SchedulerInterface interface {
	Start()
	Stop()
	Trigger()
}

// Scheduler owns the background ingestion loop: an optional interval ticker
// plus manual triggers from the API. Runs execute one at a time in the
// scheduler goroutine; overlapping trigger requests collapse into one
// pending run. Two processes racing is not guarded here - the article URL
// uniqueness constraint is the storage-level guard.
type Scheduler struct {
	runner   IngestRunner
	interval time.Duration
	trigger  chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var _ SchedulerInterface = (*Scheduler)(nil)

// NewScheduler creates a scheduler. interval <= 0 disables timed runs;
// manual triggers still work.
func NewScheduler(runner IngestRunner, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var tick <-chan time.Time
		if s.interval > 0 {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			tick = ticker.C
			slog.Info("Ingestion scheduler started", "interval", s.interval)
		} else {
			slog.Info("Ingestion scheduler started", "mode", "manual only")
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-tick:
				s.run()
			case <-s.trigger:
				s.run()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	slog.Info("Ingestion scheduler stopped")
}

// Trigger requests an ingestion run without blocking the caller. A request
// while a run is already pending is a no-op.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run() {
	start := time.Now()
	if err := s.runner.Run(s.ctx); err != nil {
		slog.Error("Ingestion run failed", "error", err, "duration", time.Since(start))
		return
	}
	slog.Debug("Ingestion run completed", "duration", time.Since(start))
}
