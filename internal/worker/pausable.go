// Package worker implements the Worker Supervisor (§4.7): the
// PausableTask lifecycle base and the three built-in background
// workers (ConversationSummarizer, ExchangeSummarizer,
// EmbeddingGenerator).
//
// kodelet has no background-job daemon, so there is no direct teacher
// file to adapt; the concurrency idiom (goroutine-per-task plus
// context.Context cancellation, a mutex-guarded status struct the
// same shape as internal/tool.BasicState's fileLocks map) is grounded
// on patterns used throughout the teacher, and the supervisor's
// shutdown join uses golang.org/x/sync/errgroup exactly as
// pkg/llm/anthropic/anthropic.go does for its own fan-out.
package worker

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mgreenly/nuagent/internal/tracing"
)

// Status is the PausableTask status struct (§4.7):
// {running, paused, total, completed, failed, current_*, spend}.
type Status struct {
	Running     bool
	Paused      bool
	Total       int64
	Completed   int64
	Failed      int64
	CurrentKind string
	CurrentID   int64
	Spend       float64
}

// DoWorkFunc is the subclass extension point (§4.7's do_work()). It
// must check ctx for shutdown at safe points and report its own
// progress via status (status is shared and mutex-guarded by the
// owning PausableTask — see statusBox).
type DoWorkFunc func(ctx context.Context, status *statusBox) error

// statusBox guards one Status under a mutex; the concrete worker
// functions mutate it via Set/Add while the supervisor reads it via
// Snapshot, mirroring the "Status struct ... updated under a shared
// status mutex" contract (§4.7).
type statusBox struct {
	mu     sync.Mutex
	status Status
}

func (b *statusBox) Snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *statusBox) SetCurrent(kind string, id int64) {
	b.mu.Lock()
	b.status.CurrentKind = kind
	b.status.CurrentID = id
	b.mu.Unlock()
}

func (b *statusBox) AddSpend(v float64) {
	b.mu.Lock()
	b.status.Spend += v
	b.mu.Unlock()
}

func (b *statusBox) IncTotal() {
	b.mu.Lock()
	b.status.Total++
	b.mu.Unlock()
}

func (b *statusBox) IncCompleted() {
	b.mu.Lock()
	b.status.Completed++
	b.mu.Unlock()
}

func (b *statusBox) IncFailed() {
	b.mu.Lock()
	b.status.Failed++
	b.mu.Unlock()
}

func (b *statusBox) setRunning(v bool) {
	b.mu.Lock()
	b.status.Running = v
	b.mu.Unlock()
}

func (b *statusBox) setPaused(v bool) {
	b.mu.Lock()
	b.status.Paused = v
	b.mu.Unlock()
}

// pollInterval is how often wait_until_paused and the pause-wait loop
// check for a state change.
const pollInterval = 20 * time.Millisecond

// idleChunk and idleChunks implement sleep_chunked_with_escape(3s in
// 15x200ms) (§4.7): a 3-second idle sleep broken into small slices so
// shutdown never waits the full 3s.
const (
	idleChunk  = 200 * time.Millisecond
	idleChunks = 15
)

// PausableTask is the §4.7 PausableTask base: one goroutine running
// loop{check_shutdown; check_pause; do_work; sleep_chunked_with_escape}.
type PausableTask struct {
	Name       string
	doWork     DoWorkFunc
	retry      retryConfig
	status     statusBox
	pauseMu    sync.Mutex
	paused     bool
	stopCh     chan struct{}
	stopped    chan struct{}
	runMu      sync.Mutex
	chunk      time.Duration
	chunkCount int
}

// NewPausableTask builds a task named name running doWork on every
// tick, retrying a failing tick per retry (see DefaultRetryConfig),
// idling 3s (in 15x200ms chunks) between ticks per §4.7.
func NewPausableTask(name string, doWork DoWorkFunc, retry retryConfig) *PausableTask {
	return newPausableTask(name, doWork, retry, idleChunk, idleChunks)
}

// newPausableTask is the internal constructor tests use to shrink the
// idle interval so pause/resume/shutdown assertions don't wait 3s.
func newPausableTask(name string, doWork DoWorkFunc, retry retryConfig, chunk time.Duration, chunkCount int) *PausableTask {
	return &PausableTask{Name: name, doWork: doWork, retry: retry, chunk: chunk, chunkCount: chunkCount}
}

// Start spawns the task's goroutine. Starting an already-running task
// is a no-op returning false (§4.7's worker-selection invariant).
func (t *PausableTask) Start(ctx context.Context) bool {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	if t.status.Snapshot().Running {
		return false
	}

	t.status.setRunning(true)
	t.stopCh = make(chan struct{})
	t.stopped = make(chan struct{})

	go t.run(ctx)
	return true
}

// Stop signals shutdown and blocks until the goroutine exits. Stopping
// a not-running task is a no-op returning false.
func (t *PausableTask) Stop() bool {
	t.runMu.Lock()
	if !t.status.Snapshot().Running {
		t.runMu.Unlock()
		return false
	}
	stopCh, stopped := t.stopCh, t.stopped
	t.runMu.Unlock()

	close(stopCh)
	<-stopped
	return true
}

// Pause sets the pause flag; the running goroutine observes it at its
// next safe point and blocks in do_work-less idle until Resume.
func (t *PausableTask) Pause() {
	t.pauseMu.Lock()
	t.paused = true
	t.pauseMu.Unlock()
	t.status.setPaused(true)
}

// Resume clears the pause flag.
func (t *PausableTask) Resume() {
	t.pauseMu.Lock()
	t.paused = false
	t.pauseMu.Unlock()
	t.status.setPaused(false)
}

func (t *PausableTask) isPaused() bool {
	t.pauseMu.Lock()
	defer t.pauseMu.Unlock()
	return t.paused
}

// WaitUntilPaused polls until the task reports paused or timeout
// elapses. Returns false immediately if the task isn't running.
func (t *PausableTask) WaitUntilPaused(timeout time.Duration) bool {
	if !t.status.Snapshot().Running {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if t.status.Snapshot().Paused {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

// Snapshot returns a copy of the current status.
func (t *PausableTask) Snapshot() Status {
	return t.status.Snapshot()
}

func (t *PausableTask) run(ctx context.Context) {
	defer close(t.stopped)
	defer t.status.setRunning(false)

	for {
		if t.shuttingDown(ctx) {
			return
		}

		if !t.waitWhilePaused(ctx) {
			return
		}

		t.tick(ctx)

		if !t.sleepChunked(ctx) {
			return
		}
	}
}

func (t *PausableTask) shuttingDown(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// waitWhilePaused blocks until unpaused or shutdown; returns false on shutdown.
func (t *PausableTask) waitWhilePaused(ctx context.Context) bool {
	for t.isPaused() {
		select {
		case <-ctx.Done():
			return false
		case <-t.stopCh:
			return false
		case <-time.After(pollInterval):
		}
	}
	return true
}

func (t *PausableTask) sleepChunked(ctx context.Context) bool {
	for i := 0; i < t.chunkCount; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-t.stopCh:
			return false
		case <-time.After(t.chunk):
		}
	}
	return true
}

func (t *PausableTask) tick(ctx context.Context) {
	t.status.IncTotal()
	err := tracing.WithSpan(ctx, "worker.tick", func(ctx context.Context) error {
		return runWithRetry(ctx, t.retry, func() error { return t.doWork(ctx, &t.status) })
	}, attribute.String("worker_name", t.Name))
	if err != nil {
		t.status.IncFailed()
		return
	}
	t.status.IncCompleted()
}
