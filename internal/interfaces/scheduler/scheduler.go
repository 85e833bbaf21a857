package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultInterval is the reconciliation period used when none is configured.
const DefaultInterval = 10 * time.Second

// Scheduler submits jobs to its worker pool on a fixed interval. Ticks are
// not serialized: a slow job may still be running when the next one starts.
type Scheduler struct {
	workerPool   *WorkerPool
	interval     time.Duration
	runOnStartup bool
	jobProvider  func(context.Context) ([]Job, error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	lastRun time.Time
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Interval     time.Duration
	WorkerCount  int
	QueueSize    int
	JobTimeout   time.Duration
	RunOnStartup bool
	JobProvider  func(context.Context) ([]Job, error)
}

// NewScheduler creates a new scheduler with the given configuration.
func NewScheduler(config SchedulerConfig) (*Scheduler, error) {
	if config.JobProvider == nil {
		return nil, errors.New("a job provider is required")
	}
	if config.Interval < 0 {
		return nil, fmt.Errorf("invalid interval: %v", config.Interval)
	}
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}

	workerPool := NewWorkerPool(config.WorkerCount, config.QueueSize, config.JobTimeout)
	ctx, cancel := context.WithCancel(context.Background())

	log.Printf("Scheduler initialized: every %v", config.Interval)
	log.Printf("Worker pool: %d workers, queue size %d", workerPool.workerCount, config.QueueSize)

	return &Scheduler{
		workerPool:   workerPool,
		interval:     config.Interval,
		runOnStartup: config.RunOnStartup,
		jobProvider:  config.JobProvider,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start launches the scheduler and worker pool.
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	s.workerPool.Start()

	if s.runOnStartup {
		log.Println("Scheduler: Running initial job batch on startup")
		if err := s.runJobs(); err != nil {
			log.Printf("Scheduler: Startup run failed: %v", err)
		}
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Println("Scheduler started")
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Scheduler loop started, ticking every %v", s.interval)

	for {
		select {
		case <-s.ctx.Done():
			log.Println("Scheduler loop: Context cancelled, shutting down")
			return

		case <-ticker.C:
			if err := s.runJobs(); err != nil {
				log.Printf("Scheduler: Tick submission failed: %v", err)
			}
		}
	}
}

// runJobs asks the job provider for jobs and submits them to the worker pool.
func (s *Scheduler) runJobs() error {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	return s.workerPool.SubmitBatch(jobs)
}

// Shutdown stops the ticker and lets in-flight jobs finish within timeout.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Initiating graceful shutdown...")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Scheduler: Scheduler loop stopped gracefully")
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for scheduler loop to stop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)

	log.Println("Scheduler: Shutdown complete")
}

// TriggerNow submits an out-of-band run immediately. It returns ErrQueueFull
// when the pool cannot take more work and ErrPoolClosed after Shutdown.
func (s *Scheduler) TriggerNow() error {
	log.Println("Scheduler: Manual trigger")
	return s.runJobs()
}

// LastRun returns when jobs were last submitted, or the zero time.
func (s *Scheduler) LastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
