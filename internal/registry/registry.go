// Package registry brings up an ordered set of pipeline stages through a
// three-phase lifecycle: every stage is initialized in table order, then the
// runnable stages are spawned, and on shutdown every stage is terminated in
// table order. The descriptor table is declarative; adding a stage means
// adding a table entry, not new wiring code.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maohuynh-embedded/camnode/internal/logging"
)

var log = logging.GetLogger("registry")

// Stage is the lifecycle contract every table entry implements. Init and
// Terminate run on the coordinator goroutine; only Run (if the stage also
// implements Runner) gets its own goroutine.
type Stage interface {
	Name() string
	Init() error
	Terminate()
}

// Runner is implemented by stages that need a long-running goroutine.
// Run must return promptly once ctx is cancelled.
type Runner interface {
	Run(ctx context.Context)
}

// Descriptor is one row of the stage table.
type Descriptor struct {
	Stage Stage

	// Priority, StackHint and Core are scheduling hints carried over from
	// the descriptor format. The Go runtime schedules goroutines itself,
	// so they are advisory and recorded only for logging and inspection.
	Priority  int
	StackHint int
	Core      int
}

// Handle tracks one started stage. Handles are indexed by the stage's
// ordinal position in the descriptor table.
type Handle struct {
	Desc    Descriptor
	Started time.Time
	running bool
}

// Registry owns the descriptor table and the lifecycle of its stages.
type Registry struct {
	mu       sync.Mutex
	table    []Descriptor
	handles  []*Handle
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopped  bool
	preSpawn func() error
}

// New creates a Registry over the given descriptor table. The table order
// is the init order and the terminate order.
func New(table []Descriptor) *Registry {
	return &Registry{table: table}
}

// OnWired registers a hook that runs after every stage's Init has succeeded
// and before any Run goroutine is spawned. It is the place to connect
// stages to each other once all of them hold their resources.
func (r *Registry) OnWired(hook func() error) {
	r.mu.Lock()
	r.preSpawn = hook
	r.mu.Unlock()
}

// Startup initializes every stage in table order, then spawns the runnable
// ones. A failed Init terminates the already-initialized stages in table
// order and returns the error; nothing is left running.
func (r *Registry) Startup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("registry already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.handles = make([]*Handle, len(r.table))

	for i, desc := range r.table {
		log.Debug("Initializing stage",
			"stage", desc.Stage.Name(),
			"ordinal", i,
			"priority", desc.Priority,
			"core", desc.Core)

		if err := desc.Stage.Init(); err != nil {
			log.Error("Stage init failed", "stage", desc.Stage.Name(), "error", err)
			r.terminateUpTo(i)
			cancel()
			return fmt.Errorf("init %s: %w", desc.Stage.Name(), err)
		}
		r.handles[i] = &Handle{Desc: desc}
	}

	if r.preSpawn != nil {
		if err := r.preSpawn(); err != nil {
			r.terminateUpTo(len(r.table))
			cancel()
			return fmt.Errorf("wiring: %w", err)
		}
	}

	for i, desc := range r.table {
		runner, ok := desc.Stage.(Runner)
		if !ok {
			continue
		}
		h := r.handles[i]
		h.Started = time.Now()
		h.running = true

		r.wg.Add(1)
		go func(name string, run Runner) {
			defer r.wg.Done()
			log.Info("Stage running", "stage", name)
			run.Run(runCtx)
			log.Info("Stage stopped", "stage", name)
		}(desc.Stage.Name(), runner)
	}

	r.started = true
	log.Info("All stages started", "count", len(r.table))
	return nil
}

// Lookup returns the handle at the given table ordinal, or nil when the
// ordinal is out of range or the registry has not started.
func (r *Registry) Lookup(ordinal int) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ordinal < 0 || ordinal >= len(r.handles) {
		return nil
	}
	return r.handles[ordinal]
}

// Shutdown cancels the run context, waits up to timeout for the run
// goroutines to drain, then terminates every stage in table order.
// A second call is a no-op.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.mu.Lock()
	if !r.started || r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn("Stage goroutines did not drain in time", "timeout", timeout)
	}

	r.mu.Lock()
	r.terminateUpTo(len(r.table))
	r.mu.Unlock()
	log.Info("All stages terminated")
}

// terminateUpTo terminates stages [0, n) in table order. Caller holds mu.
func (r *Registry) terminateUpTo(n int) {
	for i := 0; i < n && i < len(r.table); i++ {
		s := r.table[i].Stage
		log.Debug("Terminating stage", "stage", s.Name())
		s.Terminate()
	}
}
