package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mgreenly/nuagent/internal/config"
)

// shutdownGrace is how long Stop waits for in-flight writes to drain
// before proceeding regardless (§5's critical-section shutdown wait).
const shutdownGrace = 5 * time.Second

// task is the subset of PausableTask the supervisor drives.
type task interface {
	Start(ctx context.Context) bool
	Stop() bool
	Snapshot() Status
}

// Supervisor owns the three built-in workers and starts/stops each
// according to its `<worker>_enabled` config key (§4.7's worker-
// selection invariant). Shutdown join uses errgroup, the same fan-out
// idiom the teacher uses for concurrent provider calls.
type Supervisor struct {
	cfg      *config.Store
	critical *CriticalSection

	mu      sync.Mutex
	tasks   map[string]task
	running map[string]bool
}

func NewSupervisor(cfg *config.Store) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		critical: NewCriticalSection(),
		tasks:    make(map[string]task),
		running:  make(map[string]bool),
	}
}

// Critical exposes the shared write-in-flight counter so callers
// outside this package (e.g. the orchestrator, if it ever needs to
// bracket a write the workers might race with) can participate.
func (s *Supervisor) Critical() *CriticalSection { return s.critical }

// Register adds a named task to the supervisor's managed set. Call
// before Start.
func (s *Supervisor) Register(name string, t task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = t
}

// Start launches every registered task whose "<name>_enabled" config
// key is true (default true), per the worker-selection invariant.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, t := range s.tasks {
		enabled, err := s.cfg.Bool(ctx, name+"_enabled", true)
		if err != nil {
			return err
		}
		if !enabled {
			continue
		}
		if t.Start(ctx) {
			s.running[name] = true
		}
	}
	return nil
}

// StartOne starts a single named worker. Returns false if already
// running, unregistered, or disabled by config.
func (s *Supervisor) StartOne(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return false, nil
	}
	enabled, err := s.cfg.Bool(ctx, name+"_enabled", true)
	if err != nil {
		return false, err
	}
	if !enabled {
		return false, nil
	}
	started := t.Start(ctx)
	if started {
		s.running[name] = true
	}
	return started, nil
}

// StopOne stops a single named worker. Returns false if not running.
func (s *Supervisor) StopOne(name string) bool {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return false
	}
	stopped := t.Stop()
	if stopped {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}
	return stopped
}

// Stop joins every running task's shutdown in parallel via errgroup,
// then waits shutdownGrace for in-flight critical sections to drain.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	names := make([]string, 0, len(s.running))
	for name := range s.running {
		names = append(names, name)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error {
			s.StopOne(name)
			return nil
		})
	}
	_ = g.Wait()

	s.critical.WaitForZero(shutdownGrace)
}

// Statuses returns a snapshot of every registered task's status, keyed
// by name, for the `worker status` CLI command.
func (s *Supervisor) Statuses() map[string]Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Status, len(s.tasks))
	for name, t := range s.tasks {
		out[name] = t.Snapshot()
	}
	return out
}
