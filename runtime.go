package qchain

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/errnie"
	"golang.org/x/sync/errgroup"
)

/*
Runtime owns the process group. It replaces the "initialize on first use" checks
that would otherwise sit in every State method: the composing application calls
Start once, runs its SPMD program with Run, and tears down with Close.

Start is idempotent; Close may be called more than once.
*/
type Runtime struct {
	ctx     context.Context
	cancel  context.CancelFunc
	config  *Config
	metrics *Metrics
	logger  *log.Logger

	startOnce sync.Once
	startErr  error
	mu        sync.Mutex
	started   bool
	closed    bool
}

// NewRuntime creates a runtime for the given config. A nil config means NewConfig().
func NewRuntime(ctx context.Context, config *Config) *Runtime {
	if config == nil {
		config = NewConfig()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Runtime{
		ctx:     ctx,
		cancel:  cancel,
		config:  config,
		metrics: NewMetrics(),
	}
}

/*
Start validates the configuration and prepares the logger. Calling it again
returns the result of the first call.
*/
func (rt *Runtime) Start() error {
	rt.startOnce.Do(func() {
		if err := rt.config.Validate(); err != nil {
			rt.startErr = err
			return
		}

		level, _ := log.ParseLevel(rt.config.LogLevel)
		rt.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix:          "qchain",
			Level:           level,
			ReportTimestamp: true,
		})

		rt.mu.Lock()
		rt.started = true
		rt.mu.Unlock()

		errnie.Info(
			"qchain runtime started - processes %v, L %v, index bits %v",
			rt.config.Processes,
			rt.config.L,
			rt.config.IndexBits,
		)
	})
	return rt.startErr
}

// Config returns the runtime configuration.
func (rt *Runtime) Config() *Config {
	return rt.config
}

// Metrics returns the collective counters of this runtime.
func (rt *Runtime) Metrics() *Metrics {
	return rt.metrics
}

/*
Run executes fn once per rank, each call on its own goroutine with its own Comm,
and waits for all of them. The first error returned by any rank cancels the
group, which unblocks ranks waiting in a collective with ErrAborted; Run then
returns that first error.
*/
func (rt *Runtime) Run(fn func(ctx context.Context, comm *Comm) error) error {
	rt.mu.Lock()
	started, closed := rt.started, rt.closed
	rt.mu.Unlock()

	if closed {
		return fmt.Errorf("%w: runtime is closed", ErrValidation)
	}
	if !started {
		return fmt.Errorf("%w: runtime not started", ErrValidation)
	}

	g, ctx := errgroup.WithContext(rt.ctx)
	group := newGroup(ctx, rt.config.Processes, rt.metrics)

	for rank := 0; rank < rt.config.Processes; rank++ {
		comm := &Comm{
			rank:    rank,
			group:   group,
			config:  rt.config,
			logger:  rt.logger.With("rank", rank),
			metrics: rt.metrics,
		}

		g.Go(func() error {
			return fn(ctx, comm)
		})
	}

	return g.Wait()
}

// Close cancels any running group and marks the runtime unusable.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed {
		return
	}
	rt.closed = true

	if rt.cancel != nil {
		rt.cancel()
	}

	if rt.started {
		errnie.Info("qchain runtime closed - collectives %v", rt.metrics.ExportMetrics()["collectives"])
	}
}
