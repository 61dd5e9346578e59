// internal/replay/runner.go
package replay

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/coordinator"
	"github.com/xkilldash9x/scrollstate/internal/metrics"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// Result summarizes a finished scenario.
type Result struct {
	Name       string
	Steps      int
	Commits    int
	Skipped    int
	Reconciled int
	// Mirror is the scrolling side tree after the last step.
	Mirror string
	// Metrics is the collector summary of the run.
	Metrics map[string]float64
}

// Runner executes scenarios against a fresh coordinator each.
type Runner struct {
	logger  *zap.Logger
	cfg     config.ScrollingConfig
	dump    scrolling.DumpBehavior
	metrics *metrics.Collector

	mu  sync.Mutex
	out io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithOutput writes a dump of every applied snapshot to w.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithMetrics records every run into m instead of a per-run collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner validates cfg and returns a Runner.
func NewRunner(logger *zap.Logger, cfg config.ScrollingConfig, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{
		logger: logger.Named("replay"),
		cfg:    cfg,
		dump:   cfg.Dump(),
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes every step of s in order and stops at the first failure. The
// returned error names the failing step; expectation mismatches wrap
// ErrExpectation.
func (r *Runner) Run(ctx context.Context, s *Scenario) (res Result, err error) {
	res.Name = s.Name
	if err := s.Validate(); err != nil {
		return res, err
	}

	cfg := r.cfg
	if s.Representation != "" {
		cfg.LayerRepresentation = s.Representation
	}
	m := r.metrics
	if m == nil {
		m = metrics.New("")
	}

	c, err := coordinator.New(r.logger, cfg,
		coordinator.WithManualCommits(),
		coordinator.WithMetrics(m),
		coordinator.WithCommitObserver(func(snapshot *scrolling.StateTree) {
			r.writeDump(s.Name, snapshot)
		}))
	if err != nil {
		return res, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()
	defer func() {
		cancel()
		if runErr := <-done; runErr != nil && err == nil {
			err = runErr
		}
	}()

	logger := r.logger.With(zap.String("scenario", s.Name))
	logger.Info("Running scenario.", zap.Int("steps", len(s.Steps)))

	for i := range s.Steps {
		step := &s.Steps[i]
		if err := r.step(ctx, c, step, &res); err != nil {
			logger.Warn("Scenario step failed.", zap.Int("step", i+1), zap.String("op", step.Op), zap.Error(err))
			return res, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
		res.Steps++
	}

	res.Mirror = c.ScrollingTree().AsText()
	if res.Metrics, err = m.Summary(); err != nil {
		return res, fmt.Errorf("failed to summarize metrics: %w", err)
	}
	logger.Info("Scenario passed.",
		zap.Int("commits", res.Commits),
		zap.Int("skipped", res.Skipped),
		zap.Int("reconciled", res.Reconciled))
	return res, nil
}

func (r *Runner) step(ctx context.Context, c *coordinator.Coordinator, st *Step, res *Result) error {
	if st.Op == OpCommit {
		committed, err := c.CommitNow(ctx)
		if err != nil {
			return err
		}
		if committed {
			res.Commits++
		} else {
			res.Skipped++
		}
		if st.Committed != nil && *st.Committed != committed {
			return fmt.Errorf("%w: committed = %t, want %t", ErrExpectation, committed, *st.Committed)
		}
	} else {
		var opErr error
		if err := c.Perform(ctx, func(tree *scrolling.StateTree) {
			opErr = r.mutate(tree, st, res)
		}); err != nil {
			return err
		}
		if opErr != nil {
			return opErr
		}
	}

	if st.Expect == nil {
		return nil
	}
	var problems []string
	if err := c.Perform(ctx, func(tree *scrolling.StateTree) {
		problems = checkTree(tree, st.Expect)
	}); err != nil {
		return err
	}
	if st.Expect.Mirror != nil {
		problems = append(problems, checkMirror(c.ScrollingTree(), st.Expect.Mirror)...)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  %s", ErrExpectation, strings.Join(problems, "\n  "))
	}
	return nil
}

// mutate applies a structural or property step. It runs on the main goroutine.
func (r *Runner) mutate(tree *scrolling.StateTree, st *Step, res *Result) error {
	switch st.Op {
	case OpCreate:
		typ, _ := scrolling.ParseNodeType(st.Type)
		_, ok := tree.CreateUnparentedNode(typ, st.ID)
		return checkAccepted(st, ok)

	case OpInsert:
		typ, _ := scrolling.ParseNodeType(st.Type)
		index := -1
		if st.Index != nil {
			index = *st.Index
		}
		_, ok := tree.InsertNode(typ, st.ID, st.Parent, index)
		return checkAccepted(st, ok)

	case OpUnparent:
		tree.UnparentNode(st.ID)
	case OpUnparentChildrenAndDestroy:
		tree.UnparentChildrenAndDestroyNode(st.ID)
	case OpDetachAndDestroy:
		tree.DetachAndDestroySubtree(st.ID)
	case OpClear:
		tree.Clear()

	case OpSet:
		n, ok := tree.StateNodeForID(st.ID)
		if !ok {
			return fmt.Errorf("%w: %d", scrolling.ErrUnknownNode, st.ID)
		}
		prop, _ := scrolling.ParseProperty(st.Property)
		value, err := decodeValue(n.NodeType(), prop, &st.Value)
		if err != nil {
			return err
		}
		n.SetProperty(prop, value)

	case OpReconcile:
		action, _ := scrolling.ParseLayerPositionAction(st.Action)
		moved := tree.ReconcileViewportConstrainedLayerPositions(st.ID, *st.Viewport, action)
		res.Reconciled += moved
		if st.Moved != nil && *st.Moved != moved {
			return fmt.Errorf("%w: moved = %d, want %d", ErrExpectation, moved, *st.Moved)
		}

	case OpExpect:
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

func checkAccepted(st *Step, ok bool) error {
	switch {
	case ok && st.Reject:
		return fmt.Errorf("%w: node %d was accepted", ErrExpectation, st.ID)
	case !ok && !st.Reject:
		return fmt.Errorf("node %d: %w", st.ID, ErrRejected)
	}
	return nil
}

var valueOpts = cmp.Options{cmpopts.EquateEmpty()}

func checkTree(tree *scrolling.StateTree, e *Expectation) []string {
	var problems []string
	mismatch := func(what string, want, got any) {
		if diff := cmp.Diff(want, got, valueOpts); diff != "" {
			problems = append(problems, fmt.Sprintf("%s mismatch (-want +got):\n%s", what, diff))
		}
	}

	if e.NodeCount != nil {
		mismatch("node count", *e.NodeCount, tree.NodeCount())
	}
	if e.ScrollingCount != nil {
		mismatch("scrolling node count", *e.ScrollingCount, tree.ScrollingNodeCount())
	}
	if e.Nodes != nil {
		mismatch("nodes", slices.Sorted(slices.Values(e.Nodes)), tree.NodeIDs())
	}
	for _, id := range e.Absent {
		if _, ok := tree.StateNodeForID(id); ok {
			problems = append(problems, fmt.Sprintf("node %d should not exist", id))
		}
	}
	if e.Unparented != nil {
		mismatch("unparented nodes", slices.Sorted(slices.Values(e.Unparented)), tree.UnparentedNodeIDs())
	}
	if e.Root != nil {
		got := scrolling.InvalidNodeID
		if root := tree.RootStateNode(); root != nil {
			got = root.ID()
		}
		mismatch("root", *e.Root, got)
	}
	for _, id := range slices.Sorted(maps.Keys(e.Children)) {
		n, ok := tree.StateNodeForID(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("node %d does not exist", id))
			continue
		}
		var got []scrolling.NodeID
		for _, c := range n.Children() {
			got = append(got, c.ID())
		}
		mismatch(fmt.Sprintf("children of %d", id), e.Children[id], got)
	}
	if e.HasChanged != nil {
		mismatch("has changed properties", *e.HasChanged, tree.HasChangedProperties())
	}
	for _, id := range slices.Sorted(maps.Keys(e.Changed)) {
		n, ok := tree.StateNodeForID(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("node %d does not exist", id))
			continue
		}
		var got []string
		n.ChangedProperties().Each(func(p scrolling.Property) { got = append(got, p.String()) })
		slices.Sort(got)
		mismatch(fmt.Sprintf("changed properties of %d", id), slices.Sorted(slices.Values(e.Changed[id])), got)
	}
	for _, v := range e.Values {
		n, ok := tree.StateNodeForID(v.ID)
		if !ok {
			problems = append(problems, fmt.Sprintf("node %d does not exist", v.ID))
			continue
		}
		problems = append(problems, checkValue(v, n.NodeType(), n.PropertyValue)...)
	}
	if len(e.DumpContains) > 0 {
		text := tree.AsText(scrolling.DumpVerbose)
		for _, s := range e.DumpContains {
			if !strings.Contains(text, s) {
				problems = append(problems, fmt.Sprintf("dump does not contain %q:\n%s", s, text))
			}
		}
	}
	return problems
}

func checkMirror(st *coordinator.ScrollingTree, e *MirrorExpectation) []string {
	var problems []string
	mismatch := func(what string, want, got any) {
		if diff := cmp.Diff(want, got, valueOpts); diff != "" {
			problems = append(problems, fmt.Sprintf("mirror %s mismatch (-want +got):\n%s", what, diff))
		}
	}

	if e.NodeCount != nil {
		mismatch("node count", *e.NodeCount, st.NodeCount())
	}
	if e.Commits != nil {
		mismatch("commit count", *e.Commits, st.CommitCount())
	}
	for _, id := range slices.Sorted(maps.Keys(e.Children)) {
		info, ok := st.NodeForID(id)
		if !ok {
			problems = append(problems, fmt.Sprintf("mirror node %d does not exist", id))
			continue
		}
		mismatch(fmt.Sprintf("children of %d", id), e.Children[id], info.Children)
	}
	for _, v := range e.Values {
		info, ok := st.NodeForID(v.ID)
		if !ok {
			problems = append(problems, fmt.Sprintf("mirror node %d does not exist", v.ID))
			continue
		}
		lookup := func(p scrolling.Property) (any, bool) { return st.Value(v.ID, p) }
		for _, p := range checkValue(v, info.Type, lookup) {
			problems = append(problems, "mirror "+p)
		}
	}
	return problems
}

func checkValue(v ValueExpectation, t scrolling.NodeType, lookup func(scrolling.Property) (any, bool)) []string {
	prop, err := scrolling.ParseProperty(v.Property)
	if err != nil {
		return []string{err.Error()}
	}
	want, err := decodeValue(t, prop, &v.Value)
	if err != nil {
		return []string{fmt.Sprintf("node %d: %v", v.ID, err)}
	}
	got, ok := lookup(prop)
	if !ok {
		return []string{fmt.Sprintf("node %d has no %s", v.ID, prop)}
	}
	if diff := cmp.Diff(want, got, valueOpts); diff != "" {
		return []string{fmt.Sprintf("%s of %d mismatch (-want +got):\n%s", prop, v.ID, diff)}
	}
	return nil
}

func (r *Runner) writeDump(name string, snapshot *scrolling.StateTree) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintf(r.out, "# %s commit %s\n%s", name, snapshot.CommitID(), snapshot.AsText(r.dump)); err != nil {
		r.logger.Warn("Failed to write snapshot dump.", zap.Error(err))
	}
}
