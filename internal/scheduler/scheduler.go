package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/poller"
)

// Runner performs one poll.
type Runner interface {
	Run(ctx context.Context) (*poller.RunSummary, error)
}

// Config configures the poll scheduler.
type Config struct {
	Interval time.Duration
	// RunTimeout bounds a single run. Zero means Interval.
	RunTimeout time.Duration
}

// Stats tracks scheduler activity.
type Stats struct {
	Runs        int64
	Failures    int64
	LastRun     time.Time
	LastSuccess time.Time
	LastError   string
	LastSummary *poller.RunSummary
}

// Scheduler runs the poller immediately and then on every tick. Runs happen
// on a single goroutine, so they never overlap within the process.
type Scheduler struct {
	mu       sync.RWMutex
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	logger   *logging.Logger

	running  bool
	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	stats Stats
}

func New(runner Runner, cfg Config, logger *logging.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.Interval
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		runner:   runner,
		interval: cfg.Interval,
		timeout:  cfg.RunTimeout,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("poll scheduler starting", "interval", s.interval.String())

	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

// Stop cancels any run in flight and waits for the loop to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not running")
	}
	s.running = false
	close(s.stopChan)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("poll scheduler stopped")
	return nil
}

// Ready reports whether at least one run has completed successfully.
func (s *Scheduler) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.stats.LastSuccess.IsZero()
}

// Stats returns a copy of the scheduler stats.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	sum, err := s.runner.Run(runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	s.stats.LastRun = started
	if sum != nil {
		s.stats.LastSummary = sum
	}
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
		return
	}
	s.stats.LastSuccess = time.Now()
	s.stats.LastError = ""
}
