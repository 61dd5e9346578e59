// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/metrics"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

var (
	// ErrStopped is returned when work is submitted to a coordinator that has stopped.
	ErrStopped = errors.New("scrolling coordinator stopped")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("scrolling coordinator already running")
)

// Coordinator owns the main context's StateTree. All tree mutations run on a
// single goroutine; committed snapshots are handed to a second goroutine that
// applies them to the ScrollingTree mirror. The tree holds the coordinator only
// weakly, as its commit scheduler.
type Coordinator struct {
	logger  *zap.Logger
	metrics *metrics.Collector

	tree           *scrolling.StateTree
	representation scrolling.LayerRepresentationType
	rootFrameID    scrolling.FrameID
	serialized     bool
	limiter        *rate.Limiter
	manual         bool

	resolver      scrolling.LayerResolver
	observer      func(*scrolling.StateTree)
	scrollingTree *ScrollingTree

	ops      chan request
	wake     chan struct{}
	handoffs chan *handoff
	running  atomic.Bool
	stopped  chan struct{}
}

// request is one unit of work for the main goroutine.
type request struct {
	fn    func(*scrolling.StateTree)
	flush bool
	done  chan flushResult
}

// flushResult names the handoff a flush must wait for. When the flush found
// nothing new, h is the most recent handoff, which may still be in flight.
type flushResult struct {
	h         *handoff
	committed bool
}

// handoff carries one snapshot across contexts. Exactly one of tree and payload
// is set. The main goroutine never touches tree after sending it.
type handoff struct {
	tree    *scrolling.StateTree
	payload []byte
	applied chan struct{}
	err     error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics records commit and tree metrics on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLayerRepresentation overrides the configured commit representation.
func WithLayerRepresentation(rep scrolling.LayerRepresentationType) Option {
	return func(c *Coordinator) { c.representation = rep }
}

// WithRootFrameIdentifier sets the frame the tree is created for.
func WithRootFrameIdentifier(id scrolling.FrameID) Option {
	return func(c *Coordinator) { c.rootFrameID = id }
}

// WithManualCommits disables rate limited commits; the tree is committed only
// by CommitNow.
func WithManualCommits() Option {
	return func(c *Coordinator) { c.manual = true }
}

// WithLayerResolver re-binds ID-only layer handles on the scrolling side.
func WithLayerResolver(r scrolling.LayerResolver) Option {
	return func(c *Coordinator) { c.resolver = r }
}

// WithCommitObserver registers fn to be called on the scrolling goroutine with
// every applied snapshot. fn must not retain the snapshot past the call.
func WithCommitObserver(fn func(*scrolling.StateTree)) Option {
	return func(c *Coordinator) { c.observer = fn }
}

// New creates a Coordinator with an empty tree. Run must be called before any
// work submitted through Perform or CommitNow can complete.
func New(logger *zap.Logger, cfg config.ScrollingConfig, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scrolling configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		logger:         logger.Named("scrolling_coordinator"),
		metrics:        metrics.New(""),
		representation: cfg.Representation(),
		rootFrameID:    scrolling.NewFrameID(),
		serialized:     cfg.SerializedHandoff,
		limiter:        rate.NewLimiter(rate.Limit(cfg.CommitRate), cfg.CommitBurst),
		ops:            make(chan request),
		wake:           make(chan struct{}, 1),
		handoffs:       make(chan *handoff, cfg.HandoffQueueSize),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.scrollingTree = NewScrollingTree(logger)
	c.tree = scrolling.NewStateTree(
		scrolling.WithLogger(logger),
		scrolling.WithScheduler(c),
		scrolling.WithPreferredLayerRepresentation(c.representation),
		scrolling.WithRootFrameIdentifier(c.rootFrameID),
	)
	return c, nil
}

// ScrollingTree returns the scrolling context's mirror.
func (c *Coordinator) ScrollingTree() *ScrollingTree { return c.scrollingTree }

// Metrics returns the collector the coordinator reports to.
func (c *Coordinator) Metrics() *metrics.Collector { return c.metrics }

// RootFrameIdentifier returns the frame the tree was created for.
func (c *Coordinator) RootFrameIdentifier() scrolling.FrameID { return c.rootFrameID }

// ScheduleTreeStateCommit asks for a rate limited commit. It never blocks and is
// normally called by the tree itself.
func (c *Coordinator) ScheduleTreeStateCommit() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Perform runs fn on the main goroutine with exclusive access to the tree and
// waits for it to return. fn must not retain the tree.
func (c *Coordinator) Perform(ctx context.Context, fn func(*scrolling.StateTree)) error {
	_, err := c.submit(ctx, request{fn: fn})
	return err
}

// CommitNow commits pending changes immediately, bypassing the rate limiter, and
// waits until the scrolling context has applied them. It reports false if there
// was nothing new to commit; it still waits for an earlier snapshot in flight.
func (c *Coordinator) CommitNow(ctx context.Context) (bool, error) {
	res, err := c.submit(ctx, request{flush: true})
	if err != nil || res.h == nil {
		return false, err
	}
	select {
	case <-res.h.applied:
		if !res.committed {
			return false, nil
		}
		return true, res.h.err
	case <-ctx.Done():
		return false, ctx.Err()
	case <-c.stopped:
		return false, ErrStopped
	}
}

func (c *Coordinator) submit(ctx context.Context, req request) (flushResult, error) {
	req.done = make(chan flushResult, 1)
	select {
	case c.ops <- req:
	case <-ctx.Done():
		return flushResult{}, ctx.Err()
	case <-c.stopped:
		return flushResult{}, ErrStopped
	}
	select {
	case res := <-req.done:
		return res, nil
	case <-ctx.Done():
		return flushResult{}, ctx.Err()
	}
}

// Run drives the main and scrolling goroutines until ctx is cancelled. It returns
// nil on cancellation. A coordinator runs at most once.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(c.stopped)

	c.logger.Info("Scrolling coordinator started.",
		zap.Stringer("root_frame_id", c.rootFrameID),
		zap.Stringer("representation", c.representation),
		zap.Bool("serialized_handoff", c.serialized))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.runMain(gctx) })
	g.Go(func() error { return c.runScrolling(gctx) })
	err := g.Wait()

	c.logger.Info("Scrolling coordinator stopped.")
	return err
}

func (c *Coordinator) runMain(ctx context.Context) error {
	var timer *time.Timer
	var fire <-chan time.Time
	var last *handoff
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		fire = nil
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-c.ops:
			if req.fn != nil {
				req.fn(c.tree)
			}
			var res flushResult
			if req.flush {
				disarm()
				if h := c.commit(ctx); h != nil {
					last = h
					res.committed = true
				}
				res.h = last
			}
			req.done <- res

		case <-c.wake:
			if fire != nil || c.manual {
				continue
			}
			delay := c.limiter.Reserve().Delay()
			if timer == nil {
				timer = time.NewTimer(delay)
			} else {
				timer.Reset(delay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if h := c.commit(ctx); h != nil {
				last = h
			}
		}
	}
}

// commit snapshots the tree and queues the snapshot for the scrolling goroutine.
// It returns nil if there was nothing to commit or ctx ended first.
func (c *Coordinator) commit(ctx context.Context) *handoff {
	start := time.Now()
	snapshot := c.tree.Commit(c.representation)
	c.metrics.SetTreeSize(c.tree.NodeCount(), c.tree.ScrollingNodeCount(), c.tree.UnparentedNodeCount())
	if snapshot == nil {
		c.metrics.ObserveSkippedCommit()
		return nil
	}
	c.metrics.ObserveCommit(time.Since(start), snapshot.NodeCount())

	h := &handoff{tree: snapshot, applied: make(chan struct{})}
	if c.serialized {
		payload, err := scrolling.EncodeJSON(snapshot)
		if err != nil {
			c.logger.Error("Failed to encode snapshot, handing it off in memory.",
				zap.Stringer("commit_id", snapshot.CommitID()), zap.Error(err))
		} else {
			h.tree = nil
			h.payload = payload
		}
	}

	select {
	case c.handoffs <- h:
		return h
	case <-ctx.Done():
		return nil
	}
}

func (c *Coordinator) runScrolling(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case h := <-c.handoffs:
			c.apply(h)
		}
	}
}

// apply runs on the scrolling goroutine, which owns the snapshot from here on.
func (c *Coordinator) apply(h *handoff) {
	defer close(h.applied)

	snapshot, payload := h.tree, h.payload
	h.tree, h.payload = nil, nil
	if payload != nil {
		decoded, err := scrolling.DecodeJSON(payload, scrolling.WithLogger(c.logger))
		if err != nil {
			h.err = fmt.Errorf("failed to decode snapshot: %w", err)
			c.logger.Error("Dropping undecodable snapshot.", zap.Error(err))
			return
		}
		snapshot = decoded
	}

	if c.resolver != nil {
		if err := snapshot.AttachDeserializedNodes(c.resolver); err != nil {
			h.err = fmt.Errorf("failed to attach layers for commit %s: %w", snapshot.CommitID(), err)
			c.logger.Warn("Snapshot applied with unresolved layers.",
				zap.Stringer("commit_id", snapshot.CommitID()), zap.Error(err))
		}
	}

	reattached := c.scrollingTree.CommitTreeState(snapshot)
	c.metrics.ObserveApplied(reattached)
	if c.observer != nil {
		c.observer(snapshot)
	}
}
