// Package scheduler runs refresh cycles on cron schedules and on demand.
// Each cycle kind runs at most once at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/pipeline"
)

// ErrStopped is returned by TriggerFull once Stop has been called.
var ErrStopped = errors.New("scheduler stopped")

// Runner executes cycles. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunFull(ctx context.Context, trigger string) *pipeline.Result
	RunNews(ctx context.Context, trigger string) *pipeline.Result
}

// Scheduler owns the cron loop and the per-kind guards.
type Scheduler struct {
	runner     Runner
	cron       *cron.Cron
	runOnStart bool

	// one-slot semaphores, keyed by cycle kind
	slots map[string]chan struct{}
	wg    sync.WaitGroup

	// mu guards stopped so no run joins wg after Stop began waiting.
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New registers the full and news schedules.
func New(runner Runner, cfg config.Schedule) (*Scheduler, error) {
	s := &Scheduler{
		runner:     runner,
		cron:       cron.New(cron.WithLogger(cron.PrintfLogger(logging.For("cron")))),
		runOnStart: cfg.RunOnStart,
		slots: map[string]chan struct{}{
			pipeline.KindFull: make(chan struct{}, 1),
			pipeline.KindNews: make(chan struct{}, 1),
		},
		done: make(chan struct{}),
	}

	if _, err := s.cron.AddFunc(cfg.FullRefresh, func() { s.runPeriodic(pipeline.KindFull, "cron") }); err != nil {
		return nil, fmt.Errorf("full refresh schedule %q: %w", cfg.FullRefresh, err)
	}
	if _, err := s.cron.AddFunc(cfg.NewsRefresh, func() { s.runPeriodic(pipeline.KindNews, "cron") }); err != nil {
		return nil, fmt.Errorf("news refresh schedule %q: %w", cfg.NewsRefresh, err)
	}
	return s, nil
}

// Start begins the cron loop and, if configured, one immediate full cycle.
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.For("scheduler").Infof("scheduler started with %d schedules", len(s.cron.Entries()))

	if s.runOnStart && s.enter() {
		go func() {
			defer s.wg.Done()
			s.runPeriodic(pipeline.KindFull, "startup")
		}()
	}
}

// Stop halts the cron loop and waits for running cycles to finish.
// Triggers still waiting for a slot give up with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.done)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	logging.For("scheduler").Info("scheduler stopped")
}

// TriggerFull runs a full cycle now, waiting for an in-flight full cycle
// to finish first. Only the wait honours ctx; a started cycle runs to
// completion.
func (s *Scheduler) TriggerFull(ctx context.Context, trigger string) (*pipeline.Result, error) {
	if !s.enter() {
		return nil, ErrStopped
	}
	defer s.wg.Done()

	slot := s.slots[pipeline.KindFull]
	select {
	case slot <- struct{}{}:
	case <-s.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for running full cycle: %w", ctx.Err())
	}
	defer func() { <-slot }()
	return s.run(pipeline.KindFull, trigger), nil
}

// runPeriodic runs a cycle unless one of the same kind is in flight.
func (s *Scheduler) runPeriodic(kind, trigger string) bool {
	if !s.enter() {
		return false
	}
	defer s.wg.Done()

	slot := s.slots[kind]
	select {
	case slot <- struct{}{}:
	default:
		logging.For("scheduler").Infof("%s cycle still running, skipping %s trigger", kind, trigger)
		return false
	}
	defer func() { <-slot }()
	s.run(kind, trigger)
	return true
}

// enter registers a run with wg unless Stop has been called.
func (s *Scheduler) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) run(kind, trigger string) *pipeline.Result {
	// Cycles are never cancelled.
	ctx := context.Background()
	if kind == pipeline.KindNews {
		return s.runner.RunNews(ctx, trigger)
	}
	return s.runner.RunFull(ctx, trigger)
}
