package coordinator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/coordinator"
	"github.com/xkilldash9x/scrollstate/internal/metrics"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testLayer struct {
	id  scrolling.LayerID
	pos scrolling.FloatPoint
}

func (l *testLayer) ID() scrolling.LayerID                         { return l.id }
func (l *testLayer) Position() scrolling.FloatPoint                { return l.pos }
func (l *testLayer) SetPosition(p scrolling.FloatPoint)            { l.pos = p }
func (l *testLayer) SetApproximatePosition(p scrolling.FloatPoint) { l.pos = p }
func (l *testLayer) SyncPosition(p scrolling.FloatPoint)           { l.pos = p }

type resolver map[scrolling.LayerID]*testLayer

func (r resolver) LayerForID(id scrolling.LayerID) (scrolling.GraphicsLayer, bool) {
	l, ok := r[id]
	return l, ok
}

func newCoordinator(t *testing.T, cfg config.ScrollingConfig, opts ...coordinator.Option) *coordinator.Coordinator {
	t.Helper()
	opts = append([]coordinator.Option{coordinator.WithManualCommits()}, opts...)
	c, err := coordinator.New(zaptest.NewLogger(t), cfg, opts...)
	require.NoError(t, err)
	return c
}

func scrollingConfig() config.ScrollingConfig {
	cfg := config.NewDefaultConfig().Scrolling()
	cfg.CommitRate = 1000
	return cfg
}

// startCoordinator runs c until the test ends and fails the test if Run errors.
func startCoordinator(t *testing.T, c *coordinator.Coordinator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	return cancel
}

func buildTree(tree *scrolling.StateTree) {
	tree.InsertNode(scrolling.FrameScrolling, 1, scrolling.InvalidNodeID, 0)
	tree.InsertNode(scrolling.OverflowScrolling, 2, 1, 0)
	tree.InsertNode(scrolling.FixedPosition, 3, 2, 0)
}

func TestCoordinator_CommitNow(t *testing.T) {
	m := metrics.New("")
	c := newCoordinator(t, scrollingConfig(), coordinator.WithMetrics(m))
	startCoordinator(t, c)
	ctx := context.Background()

	require.NoError(t, c.Perform(ctx, buildTree))
	committed, err := c.CommitNow(ctx)
	require.NoError(t, err)
	assert.True(t, committed)

	mirror := c.ScrollingTree()
	assert.Equal(t, []scrolling.NodeID{1, 2, 3}, mirror.NodeIDs())
	info, ok := mirror.NodeForID(3)
	require.True(t, ok)
	assert.Equal(t, scrolling.NodeID(2), info.Parent)
	assert.Equal(t, c.RootFrameIdentifier(), mirror.RootFrameIdentifier())

	// Nothing changed since the last commit.
	committed, err = c.CommitNow(ctx)
	require.NoError(t, err)
	assert.False(t, committed)

	summary, err := m.Summary()
	require.NoError(t, err)
	assert.Equal(t, 1.0, summary["scrollstate_tree_commits_total:committed"])
	assert.GreaterOrEqual(t, summary["scrollstate_tree_commits_total:skipped"], 1.0)
	assert.Equal(t, 3.0, summary["scrollstate_tree_nodes"])
	assert.Equal(t, 2.0, summary["scrollstate_tree_scrolling_nodes"])
}

func TestCoordinator_ChangesAreAppliedIncrementally(t *testing.T) {
	c := newCoordinator(t, scrollingConfig())
	startCoordinator(t, c)
	ctx := context.Background()

	require.NoError(t, c.Perform(ctx, buildTree))
	_, err := c.CommitNow(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Perform(ctx, func(tree *scrolling.StateTree) {
		n, _ := tree.StateNodeForID(2)
		n.SetScrollPosition(scrolling.FloatPoint{X: 0, Y: 40})
		tree.DetachAndDestroySubtree(3)
	}))
	committed, err := c.CommitNow(ctx)
	require.NoError(t, err)
	require.True(t, committed)

	mirror := c.ScrollingTree()
	assert.Equal(t, []scrolling.NodeID{1, 2}, mirror.NodeIDs())
	v, ok := mirror.Value(2, scrolling.PropertyScrollPosition)
	require.True(t, ok)
	assert.Equal(t, scrolling.FloatPoint{X: 0, Y: 40}, v)
	assert.Equal(t, 2, mirror.CommitCount())
}

func TestCoordinator_ScheduledCommit(t *testing.T) {
	c, err := coordinator.New(zaptest.NewLogger(t), scrollingConfig())
	require.NoError(t, err)
	startCoordinator(t, c)

	// The tree asks for a commit on its own; no explicit flush.
	require.NoError(t, c.Perform(context.Background(), buildTree))

	assert.Eventually(t, func() bool {
		return c.ScrollingTree().NodeCount() == 3
	}, 5*time.Second, 5*time.Millisecond)
}

func TestCoordinator_SerializedHandoff(t *testing.T) {
	layers := resolver{7: {id: 7}, 8: {id: 8}}

	var mu sync.Mutex
	var observed []*scrolling.StateNode
	observer := func(snapshot *scrolling.StateTree) {
		mu.Lock()
		defer mu.Unlock()
		n, _ := snapshot.StateNodeForID(2)
		observed = append(observed, n)
	}

	cfg := scrollingConfig()
	cfg.SerializedHandoff = true
	c := newCoordinator(t, cfg,
		coordinator.WithLayerRepresentation(scrolling.PlatformLayerIDRepresentation),
		coordinator.WithLayerResolver(layers),
		coordinator.WithCommitObserver(observer))
	startCoordinator(t, c)
	ctx := context.Background()

	require.NoError(t, c.Perform(ctx, func(tree *scrolling.StateTree) {
		buildTree(tree)
		n, _ := tree.StateNodeForID(2)
		n.SetLayer(scrolling.LayerFromGraphics(layers[7]))
		n.SetScrolledContentsLayer(scrolling.LayerFromGraphics(layers[8]))
	}))
	committed, err := c.CommitNow(ctx)
	require.NoError(t, err)
	require.True(t, committed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 1)
	layer := observed[0].Layer()
	assert.Equal(t, scrolling.GraphicsLayerRepresentation, layer.Type())
	assert.Same(t, layers[7], layer.Graphics())

	summary, err := c.Metrics().Summary()
	require.NoError(t, err)
	assert.Equal(t, 2.0, summary["scrollstate_scrolling_tree_layer_reattachments_total"])
}

func TestCoordinator_UnresolvedLayerIsReported(t *testing.T) {
	cfg := scrollingConfig()
	cfg.SerializedHandoff = true
	c := newCoordinator(t, cfg,
		coordinator.WithLayerRepresentation(scrolling.PlatformLayerIDRepresentation),
		coordinator.WithLayerResolver(resolver{}))
	startCoordinator(t, c)
	ctx := context.Background()

	require.NoError(t, c.Perform(ctx, func(tree *scrolling.StateTree) {
		buildTree(tree)
		n, _ := tree.StateNodeForID(3)
		n.SetLayer(scrolling.LayerFromID(42))
	}))
	committed, err := c.CommitNow(ctx)
	assert.True(t, committed)
	require.ErrorIs(t, err, scrolling.ErrUnresolvedLayer)

	// The snapshot is still applied.
	assert.Equal(t, 3, c.ScrollingTree().NodeCount())
}

func TestCoordinator_Lifecycle(t *testing.T) {
	c, err := coordinator.New(zaptest.NewLogger(t), scrollingConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	// Once Perform returns the main loop is running.
	require.NoError(t, c.Perform(context.Background(), buildTree))
	assert.ErrorIs(t, c.Run(context.Background()), coordinator.ErrAlreadyRunning)

	cancel()
	require.NoError(t, <-done)

	err = c.Perform(context.Background(), func(*scrolling.StateTree) {
		t.Error("work ran on a stopped coordinator")
	})
	assert.ErrorIs(t, err, coordinator.ErrStopped)
	_, err = c.CommitNow(context.Background())
	assert.ErrorIs(t, err, coordinator.ErrStopped)
}

func TestCoordinator_PerformHonorsContext(t *testing.T) {
	c, err := coordinator.New(zaptest.NewLogger(t), scrollingConfig())
	require.NoError(t, err)

	// Not running: the request can never be accepted.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = c.Perform(ctx, buildTree)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := scrollingConfig()
	cfg.CommitRate = 0
	_, err := coordinator.New(zaptest.NewLogger(t), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit_rate")
}
