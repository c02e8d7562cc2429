// Package parallel provides the concrete ParallelMap backend the e-graph
// kernel and saturation driver are written against abstractly (spec.md §5,
// §6.3): fan-out over independent, read-only work (canonicalisation
// batches, per-rule search, command simplification) with cooperative
// cancellation at per-item boundaries. A Sequential implementation is kept
// alongside the concurrent one because the spec mandates both (useful for
// deterministic tests and for callers that want to disable concurrency
// entirely).
package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/perf-analysis/pkg/errors"
)

// Map is the abstract work distributor the kernel and saturation driver
// depend on (spec.md §6.3).
type Map interface {
	// Range applies fn to every index in [0, n), fanning out as the
	// implementation sees fit. It returns the first non-nil error any fn
	// call produced (other in-flight calls are allowed to finish).
	Range(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
	// Run executes block once, through the same cancellation plumbing as
	// Range, so a Strategy wrapper can uniformly bound either.
	Run(ctx context.Context, block func(ctx context.Context) error) error
	// Child returns a scoped Map for nested parallel work; label is used
	// only for telemetry/logging attribution.
	Child(label string) Map
	// Cancelable returns a Map whose Range/Run calls observe tok: once
	// fired, in-flight dispatch stops and a CodeOperationCanceled error is
	// returned.
	Cancelable(tok *CancellationToken) Map
}

// Config configures a concurrent Map's worker budget.
type Config struct {
	// MaxWorkers bounds concurrent fn invocations. Default:
	// runtime.NumCPU() clamped to [2, 8].
	MaxWorkers int
}

// DefaultConfig mirrors the host project's worker-pool default: capped at 8
// to avoid oversubscribing small machines, floored at 2 so tiny batches
// still get some overlap.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	if workers < 2 {
		workers = 2
	}
	return Config{MaxWorkers: workers}
}

// Metrics accumulates counters across a Map's lifetime, mirroring the host
// project's PoolMetrics.
type Metrics struct {
	TasksDispatched int64
	TasksFailed     int64
	TotalDuration   time.Duration
}

// Sequential runs every item in the calling goroutine, in order. This is
// the baseline implementation the spec requires alongside a concurrent one
// (spec.md §5); it is also what deterministic tests use.
type Sequential struct {
	label   string
	token   *CancellationToken
	metrics Metrics
	mu      sync.Mutex
}

// NewSequential returns a Sequential Map.
func NewSequential() *Sequential { return &Sequential{} }

func (s *Sequential) Range(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	start := time.Now()
	defer s.record(start)
	for i := 0; i < n; i++ {
		if err := s.checkCanceled(ctx); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			atomic.AddInt64(&s.metrics.TasksFailed, 1)
			return err
		}
		atomic.AddInt64(&s.metrics.TasksDispatched, 1)
	}
	return nil
}

func (s *Sequential) Run(ctx context.Context, block func(ctx context.Context) error) error {
	if err := s.checkCanceled(ctx); err != nil {
		return err
	}
	return block(ctx)
}

func (s *Sequential) Child(label string) Map {
	return &Sequential{label: label, token: s.token}
}

func (s *Sequential) Cancelable(tok *CancellationToken) Map {
	return &Sequential{label: s.label, token: tok}
}

func (s *Sequential) checkCanceled(ctx context.Context) error {
	if s.token != nil && s.token.Canceled() {
		return s.token.Err()
	}
	if ctx != nil && ctx.Err() != nil {
		return apperrors.OperationCanceled(ctx.Err().Error())
	}
	return nil
}

func (s *Sequential) record(start time.Time) {
	s.mu.Lock()
	s.metrics.TotalDuration += time.Since(start)
	s.mu.Unlock()
}

// Metrics returns a snapshot of accumulated counters.
func (s *Sequential) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Concurrent fans work out across a bounded pool of goroutines, backed by
// sourcegraph/conc (structured goroutine lifetimes — no task outlives
// Range/Run) and golang.org/x/sync/semaphore (concurrency bound shared by
// every dispatched item, including ones queued by nested Child maps that
// share the same token).
type Concurrent struct {
	cfg   Config
	label string
	token *CancellationToken
	sem   *semaphore.Weighted

	mu      sync.Mutex
	metrics Metrics
}

// NewConcurrent returns a Concurrent Map configured by cfg. A zero Config
// gets DefaultConfig's values.
func NewConcurrent(cfg Config) *Concurrent {
	if cfg.MaxWorkers <= 0 {
		cfg = DefaultConfig()
	}
	return &Concurrent{cfg: cfg, sem: semaphore.NewWeighted(int64(cfg.MaxWorkers))}
}

func (c *Concurrent) Range(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	start := time.Now()
	defer c.record(start)

	p := pool.New().WithErrors().WithContext(ctx).WithFirstError()
	for i := 0; i < n; i++ {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := c.checkCanceled(ctx); err != nil {
				return err
			}
			if err := c.sem.Acquire(ctx, 1); err != nil {
				return apperrors.OperationCanceled(err.Error())
			}
			defer c.sem.Release(1)
			if err := c.checkCanceled(ctx); err != nil {
				return err
			}
			err := fn(ctx, i)
			if err != nil {
				atomic.AddInt64(&c.metrics.TasksFailed, 1)
			} else {
				atomic.AddInt64(&c.metrics.TasksDispatched, 1)
			}
			return err
		})
	}
	return p.Wait()
}

func (c *Concurrent) Run(ctx context.Context, block func(ctx context.Context) error) error {
	if err := c.checkCanceled(ctx); err != nil {
		return err
	}
	return block(ctx)
}

func (c *Concurrent) Child(label string) Map {
	return &Concurrent{cfg: c.cfg, label: label, token: c.token, sem: c.sem}
}

func (c *Concurrent) Cancelable(tok *CancellationToken) Map {
	return &Concurrent{cfg: c.cfg, label: c.label, token: tok, sem: c.sem}
}

func (c *Concurrent) checkCanceled(ctx context.Context) error {
	if c.token != nil && c.token.Canceled() {
		return c.token.Err()
	}
	if ctx != nil && ctx.Err() != nil {
		return apperrors.OperationCanceled(ctx.Err().Error())
	}
	return nil
}

func (c *Concurrent) record(start time.Time) {
	c.mu.Lock()
	c.metrics.TotalDuration += time.Since(start)
	c.mu.Unlock()
}

// Metrics returns a snapshot of accumulated counters.
func (c *Concurrent) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}
