package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/goldpulse/internal/config"
	"github.com/TobiSchelling/goldpulse/internal/pipeline"
)

// blockingRunner counts cycles and, when gate is set, blocks each cycle
// until the gate is closed.
type blockingRunner struct {
	full, news atomic.Int32
	started    chan string
	gate       chan struct{}

	mu       sync.Mutex
	triggers []string
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan string, 10), gate: make(chan struct{})}
}

func (r *blockingRunner) RunFull(_ context.Context, trigger string) *pipeline.Result {
	r.full.Add(1)
	r.record(trigger)
	r.started <- pipeline.KindFull
	<-r.gate
	return &pipeline.Result{Kind: pipeline.KindFull}
}

func (r *blockingRunner) RunNews(_ context.Context, trigger string) *pipeline.Result {
	r.news.Add(1)
	r.record(trigger)
	r.started <- pipeline.KindNews
	<-r.gate
	return &pipeline.Result{Kind: pipeline.KindNews}
}

func (r *blockingRunner) record(trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
}

func waitStarted(t *testing.T, r *blockingRunner) string {
	t.Helper()
	select {
	case kind := <-r.started:
		return kind
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not start")
		return ""
	}
}

func testSchedule() config.Schedule {
	return config.Schedule{FullRefresh: "0 */2 * * *", NewsRefresh: "0 * * * *"}
}

func newTestScheduler(t *testing.T, r Runner, sched config.Schedule) *Scheduler {
	t.Helper()
	s, err := New(r, sched)
	if err != nil {
		t.Fatalf("creating scheduler: %v", err)
	}
	return s
}

func TestPeriodicSkipsWhileSameKindRunning(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())

	done := make(chan bool)
	go func() { done <- s.runPeriodic(pipeline.KindFull, "cron") }()
	waitStarted(t, r)

	if s.runPeriodic(pipeline.KindFull, "cron") {
		t.Error("expected overlapping full trigger to be skipped")
	}

	close(r.gate)
	if !<-done {
		t.Error("expected first cycle to run")
	}
	if n := r.full.Load(); n != 1 {
		t.Errorf("expected 1 full cycle, got %d", n)
	}
}

func TestKindsRunIndependently(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.runPeriodic(pipeline.KindFull, "cron") }()
	go func() { defer wg.Done(); s.runPeriodic(pipeline.KindNews, "cron") }()

	kinds := map[string]bool{waitStarted(t, r): true, waitStarted(t, r): true}
	if !kinds[pipeline.KindFull] || !kinds[pipeline.KindNews] {
		t.Errorf("expected both kinds in flight, got %v", kinds)
	}

	close(r.gate)
	wg.Wait()
}

func TestTriggerFullWaitsForRunningCycle(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())

	go s.runPeriodic(pipeline.KindFull, "cron")
	waitStarted(t, r)

	result := make(chan *pipeline.Result)
	go func() {
		res, err := s.TriggerFull(context.Background(), "api")
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		result <- res
	}()

	select {
	case <-r.started:
		t.Fatal("on-demand cycle started while another full cycle was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.gate)
	res := <-result
	if res == nil || res.Kind != pipeline.KindFull {
		t.Errorf("unexpected result %+v", res)
	}
	if n := r.full.Load(); n != 2 {
		t.Errorf("expected 2 full cycles, got %d", n)
	}
}

func TestTriggerFullHonoursContextWhileWaiting(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())

	go s.runPeriodic(pipeline.KindFull, "cron")
	waitStarted(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.TriggerFull(ctx, "api"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}

	close(r.gate)
	s.Stop()
	if n := r.full.Load(); n != 1 {
		t.Errorf("expected only the periodic cycle, got %d", n)
	}
}

func TestStopReleasesWaitingTrigger(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())

	go s.runPeriodic(pipeline.KindFull, "cron")
	waitStarted(t, r)

	triggerErr := make(chan error, 1)
	go func() {
		_, err := s.TriggerFull(context.Background(), "api")
		triggerErr <- err
	}()
	// let the trigger block on the running cycle
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case err := <-triggerErr:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting trigger was not released by Stop")
	}

	close(r.gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}
	if n := r.full.Load(); n != 1 {
		t.Errorf("expected only the periodic cycle, got %d", n)
	}
}

func TestTriggersAfterStopAreRejected(t *testing.T) {
	r := newBlockingRunner()
	s := newTestScheduler(t, r, testSchedule())
	s.Stop()

	if _, err := s.TriggerFull(context.Background(), "api"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if s.runPeriodic(pipeline.KindNews, "cron") {
		t.Error("expected periodic trigger after Stop to be skipped")
	}
	if n := r.full.Load() + r.news.Load(); n != 0 {
		t.Errorf("expected no cycles after Stop, got %d", n)
	}
}

func TestRunOnStartAndStopWaits(t *testing.T) {
	r := newBlockingRunner()
	sched := testSchedule()
	sched.RunOnStart = true
	s := newTestScheduler(t, r, sched)

	s.Start()
	if kind := waitStarted(t, r); kind != pipeline.KindFull {
		t.Errorf("expected startup full cycle, got %s", kind)
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a cycle was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the cycle finished")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.triggers) != 1 || r.triggers[0] != "startup" {
		t.Errorf("unexpected triggers %v", r.triggers)
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	r := newBlockingRunner()
	if _, err := New(r, config.Schedule{FullRefresh: "not a cron", NewsRefresh: "0 * * * *"}); err == nil {
		t.Error("expected error for invalid full schedule")
	}
	if _, err := New(r, config.Schedule{FullRefresh: "0 * * * *", NewsRefresh: "61 * * * *"}); err == nil {
		t.Error("expected error for invalid news schedule")
	}
}
