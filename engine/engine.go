// Package engine drives a topology of blocks: it activates them, runs
// each worker on its own goroutine under a shared cycle cadence, and
// deactivates everything on stop.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/errors"
	"github.com/mfkiwl/blockstream/metric"
	"github.com/mfkiwl/blockstream/pkg/retry"
)

// Options tune the engine's scheduling behavior.
type Options struct {
	// CycleBudget is the per-cycle readiness wait handed to every Work
	// call. Zero means blocks poll and return.
	CycleBudget time.Duration

	// CycleRate caps work cycle dispatch per block, in cycles per second.
	// Zero selects DefaultCycleRate.
	CycleRate float64

	// ActivateRetry governs retries of transient activation failures.
	// Zero value selects retry.DefaultConfig.
	ActivateRetry retry.Config
}

// DefaultCycleBudget bounds each cycle's readiness wait.
const DefaultCycleBudget = 100 * time.Millisecond

// DefaultCycleRate caps cycle dispatch when no rate is configured.
const DefaultCycleRate = 2000

// Engine runs a wired topology.
type Engine struct {
	topology *Topology
	opts     Options
	logger   *slog.Logger
	metrics  *metric.Metrics

	cancel context.CancelFunc
	group  *errgroup.Group

	running      atomic.Bool
	lastProgress atomic.Int64 // unix nanos of the most recent progress cycle
}

// New creates an engine over the given topology. A nil metrics registry
// disables cycle accounting; a nil logger falls back to slog.Default.
func New(topology *Topology, opts Options, logger *slog.Logger, registry *metric.MetricsRegistry) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CycleBudget <= 0 {
		opts.CycleBudget = DefaultCycleBudget
	}
	if opts.CycleRate <= 0 {
		opts.CycleRate = DefaultCycleRate
	}
	if opts.ActivateRetry == (retry.Config{}) {
		opts.ActivateRetry = retry.DefaultConfig()
	}

	var metrics *metric.Metrics
	if registry != nil {
		metrics = registry.CoreMetrics()
	}

	return &Engine{
		topology: topology,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start activates every block, then launches one work loop per worker.
// Activation failures classified as invalid are not retried; transient
// ones are, under the configured retry policy. On any activation failure
// the already-activated blocks are deactivated before returning.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyActive, "Engine", "Start", "state check")
	}

	nodes := e.topology.nodesInOrder()

	activated := make([]*node, 0, len(nodes))
	for _, n := range nodes {
		act, ok := component.AsActivatable(n.block)
		if !ok {
			continue
		}
		err := retry.Do(ctx, e.opts.ActivateRetry, func() error {
			if aerr := act.Activate(); aerr != nil {
				if errors.IsInvalid(aerr) {
					return retry.NonRetryable(aerr)
				}
				return aerr
			}
			return nil
		})
		if err != nil {
			e.logger.Error("block activation failed", "block", n.name, "error", err)
			e.deactivate(activated)
			e.running.Store(false)
			return errors.Wrap(err, "Engine", "Start", "activating "+n.name)
		}
		activated = append(activated, n)
		e.recordState(n)
		e.logger.Info("block activated", "block", n.name, "instance_id", n.instanceID)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	e.group = group
	e.lastProgress.Store(time.Now().UnixNano())

	for _, n := range nodes {
		n := n
		worker, ok := component.AsWorker(n.block)
		if !ok {
			continue
		}
		group.Go(func() error {
			return e.runWorker(groupCtx, n, worker)
		})
	}

	e.logger.Info("engine started", "blocks", len(nodes))
	return nil
}

// runWorker dispatches work cycles for one block until the context ends.
func (e *Engine) runWorker(ctx context.Context, n *node, worker component.Worker) error {
	limiter := rate.NewLimiter(rate.Limit(e.opts.CycleRate), 1)
	cycle := &component.WorkContext{Budget: e.opts.CycleBudget}

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil // context done, normal shutdown
		}

		start := time.Now()
		status := worker.Work(cycle)
		elapsed := time.Since(start)

		progressed := status == component.WorkProgress
		if progressed {
			e.lastProgress.Store(time.Now().UnixNano())
		}
		if e.metrics != nil {
			e.metrics.RecordCycle(n.name, elapsed, progressed)
		}
	}
}

// Stop cancels the work loops, waits for them, and deactivates blocks in
// reverse registration order. Safe to call on a stopped engine.
func (e *Engine) Stop() error {
	if !e.running.CompareAndSwap(true, false) {
		return nil
	}

	if e.cancel != nil {
		e.cancel()
	}
	if e.group != nil {
		_ = e.group.Wait()
	}

	nodes := e.topology.nodesInOrder()
	reversed := make([]*node, len(nodes))
	for i, n := range nodes {
		reversed[len(nodes)-1-i] = n
	}
	e.deactivate(reversed)

	e.logger.Info("engine stopped")
	return nil
}

// deactivate shuts down the given blocks, logging failures.
func (e *Engine) deactivate(nodes []*node) {
	for _, n := range nodes {
		act, ok := component.AsActivatable(n.block)
		if !ok {
			continue
		}
		if err := act.Deactivate(); err != nil {
			e.logger.Error("block deactivation failed", "block", n.name, "error", err)
		}
		e.recordState(n)
	}
}

// recordState exports a block's lifecycle state if it is observable.
func (e *Engine) recordState(n *node) {
	if e.metrics == nil {
		return
	}
	type stater interface{ State() component.State }
	if s, ok := n.block.(stater); ok {
		e.metrics.RecordBlockState(n.name, int(s.State()))
	}
}

// WaitIdle blocks until no work cycle has made progress for the idle
// window, or the timeout elapses. Returns true when idleness was reached.
func (e *Engine) WaitIdle(idle, timeout time.Duration) bool {
	poll := idle / 4
	if poll < time.Millisecond {
		poll = time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		last := time.Unix(0, e.lastProgress.Load())
		if time.Since(last) >= idle {
			return true
		}
		time.Sleep(poll)
	}
	return false
}

// Running reports whether the engine is between Start and Stop.
func (e *Engine) Running() bool {
	return e.running.Load()
}
