package bot

import (
	"context"
	"sync"
	"time"

	"slot-bot/lease"
	"slot-bot/logger"
)

// Sweeper runs one expiration sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (lease.SweepReport, error)
}

// Scheduler runs a sweep at start and then once per interval until stopped.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	onReport func(lease.SweepReport)
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a new scheduler. onReport may be nil.
func NewScheduler(sweeper Sweeper, interval time.Duration, onReport func(lease.SweepReport)) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		onReport: onReport,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the loop and waits for a sweep in progress to finish.
func (s *Scheduler) Stop() {
	logger.LogSystem("Stopping scheduler...")
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
	logger.LogSystem("Scheduler stopped.")
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	s.runSweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

// runSweep is not tied to shutdown: once started, a sweep gets to save its
// result. It is bounded by the interval instead.
func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		logger.LogError("Sweep aborted", err, "run", report.RunID)
		return
	}
	if s.onReport != nil {
		s.onReport(report)
	}
}
