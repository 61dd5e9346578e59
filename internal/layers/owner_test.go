package layers_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/coordinator"
	"github.com/xkilldash9x/scrollstate/internal/layers"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// treePerformer runs work inline on a tree the test owns.
type treePerformer struct {
	tree *scrolling.StateTree
}

func (p *treePerformer) Perform(_ context.Context, fn func(*scrolling.StateTree)) error {
	fn(p.tree)
	return nil
}

// outline is the element structure of a tree, by element key.
type outline struct {
	Key      string
	Type     scrolling.NodeType
	Children []outline
}

func outlineOf(t *testing.T, owner *layers.Owner, n *scrolling.StateNode) outline {
	t.Helper()
	keys := make(map[scrolling.NodeID]string)
	for _, key := range owner.Elements() {
		id, _ := owner.NodeID(key)
		keys[id] = key
	}
	var walk func(*scrolling.StateNode) outline
	walk = func(n *scrolling.StateNode) outline {
		o := outline{Key: keys[n.ID()], Type: n.NodeType()}
		for _, c := range n.Children() {
			o.Children = append(o.Children, walk(c))
		}
		return o
	}
	return walk(n)
}

func newOwner(t *testing.T) *layers.Owner {
	t.Helper()
	return layers.NewOwner(zaptest.NewLogger(t), config.NewDefaultConfig().Layers())
}

func TestOwner_Sync(t *testing.T) {
	owner := newOwner(t)
	tree := scrolling.NewStateTree(scrolling.WithLogger(zaptest.NewLogger(t)))
	p := &treePerformer{tree: tree}
	ctx := context.Background()

	doc, err := layers.LoadFile("testdata/page.html")
	require.NoError(t, err)

	res, err := owner.Sync(ctx, p, doc)
	require.NoError(t, err)
	assert.Equal(t, layers.SyncResult{Inserted: 7, Reconciled: 3}, res)
	require.NoError(t, tree.Validate())

	want := outline{Key: "page", Type: scrolling.FrameScrolling, Children: []outline{
		{Key: "header", Type: scrolling.FixedPosition},
		{Key: "feed", Type: scrolling.OverflowScrolling, Children: []outline{
			{Key: "feed-title", Type: scrolling.StickyPosition},
			{Key: "badge", Type: scrolling.Positioned},
		}},
		{Key: "footer", Type: scrolling.FixedPosition},
		{Key: "panel", Type: scrolling.Plain},
	}}
	if diff := cmp.Diff(want, outlineOf(t, owner, tree.RootStateNode())); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, tree.ScrollingNodeCount())

	t.Run("frame geometry", func(t *testing.T) {
		root := tree.RootStateNode()
		frame := root.FrameState()
		assert.Equal(t, scrolling.FloatSize{Width: 1280, Height: 800}, frame.ScrollableAreaSize)
		assert.Equal(t, scrolling.FloatSize{Width: 1280, Height: 3000}, frame.TotalContentsSize)
		assert.Equal(t, scrolling.FloatPoint{Y: 100}, frame.ScrollPosition)
		assert.Equal(t, scrolling.FloatPoint{X: 0, Y: 2200}, frame.MaxLayoutViewportOrigin)
	})

	t.Run("layers are positioned", func(t *testing.T) {
		for key, pos := range map[string]scrolling.FloatPoint{
			"header":     {X: 0, Y: 100},
			"footer":     {X: 0, Y: 860},
			"feed-title": {X: 0, Y: 60},
		} {
			layer, ok := owner.Layer(key)
			require.True(t, ok, key)
			assert.Equal(t, pos, layer.Position(), key)
			assert.Equal(t, 1, layer.Updates(), key)
		}
	})

	t.Run("positioned node knows the scroller it escapes", func(t *testing.T) {
		badgeID, _ := owner.NodeID("badge")
		feedID, _ := owner.NodeID("feed")
		badge, ok := tree.StateNodeForID(badgeID)
		require.True(t, ok)
		state := badge.PositionedState()
		assert.Equal(t, []scrolling.NodeID{feedID}, state.RelatedOverflowScrollingNodes)
		assert.Equal(t, scrolling.FloatPoint{X: 5, Y: 5}, state.Constraints.LayerPositionAtLastLayout)
	})

	t.Run("layers resolve by id", func(t *testing.T) {
		feedID, _ := owner.NodeID("feed")
		feed, _ := tree.StateNodeForID(feedID)
		contents := feed.ScrollingState().ScrolledContentsLayer
		require.False(t, contents.IsEmpty())
		l, ok := owner.LayerForID(contents.ID())
		require.True(t, ok)
		assert.Equal(t, "feed/contents", l.(*layers.Layer).Name())
	})

	t.Run("a second sync of the same document changes nothing", func(t *testing.T) {
		tree.Commit(scrolling.GraphicsLayerRepresentation)
		res, err := owner.Sync(ctx, p, doc)
		require.NoError(t, err)
		assert.Equal(t, layers.SyncResult{}, res)
		assert.False(t, tree.HasChangedProperties())
	})
}

func TestOwner_SyncDiff(t *testing.T) {
	owner := newOwner(t)
	tree := scrolling.NewStateTree(scrolling.WithLogger(zaptest.NewLogger(t)))
	p := &treePerformer{tree: tree}
	ctx := context.Background()

	doc, err := layers.LoadFile("testdata/page.html")
	require.NoError(t, err)
	_, err = owner.Sync(ctx, p, doc)
	require.NoError(t, err)
	titleID, _ := owner.NodeID("feed-title")

	updated, err := layers.LoadFile("testdata/page_updated.html")
	require.NoError(t, err)
	res, err := owner.Sync(ctx, p, updated)
	require.NoError(t, err)

	// feed stops scrolling: its sticky child survives and moves up to the frame.
	// badge and footer are gone.
	assert.Equal(t, layers.SyncResult{Moved: 1, Destroyed: 2, Unparented: 1, Reconciled: 1}, res)
	require.NoError(t, tree.Validate())
	assert.Zero(t, tree.UnparentedNodeCount())

	want := outline{Key: "page", Type: scrolling.FrameScrolling, Children: []outline{
		{Key: "feed-title", Type: scrolling.StickyPosition},
		{Key: "header", Type: scrolling.FixedPosition},
		{Key: "panel", Type: scrolling.Plain},
	}}
	if diff := cmp.Diff(want, outlineOf(t, owner, tree.RootStateNode())); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"feed-title", "header", "page", "panel"}, owner.Elements())

	id, _ := owner.NodeID("feed-title")
	assert.Equal(t, titleID, id, "surviving elements keep their node")

	title, _ := owner.Layer("feed-title")
	assert.Equal(t, scrolling.FloatPoint{X: 0, Y: 110}, title.Position())

	_, ok := owner.Layer("footer")
	assert.False(t, ok)
}

func TestOwner_Scroll(t *testing.T) {
	owner := newOwner(t)
	tree := scrolling.NewStateTree()
	p := &treePerformer{tree: tree}
	ctx := context.Background()

	doc, err := layers.LoadFile("testdata/page.html")
	require.NoError(t, err)
	_, err = owner.Sync(ctx, p, doc)
	require.NoError(t, err)

	moved, err := owner.Scroll(ctx, p, "feed", scrolling.FloatPoint{Y: 500})
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
	title, _ := owner.Layer("feed-title")
	assert.Equal(t, scrolling.FloatPoint{X: 0, Y: 510}, title.Position())
	assert.True(t, title.IsApproximate())

	moved, err = owner.Scroll(ctx, p, "page", scrolling.FloatPoint{Y: 300})
	require.NoError(t, err)
	assert.Equal(t, 2, moved, "only the fixed layers follow the frame")
	footer, _ := owner.Layer("footer")
	assert.Equal(t, scrolling.FloatPoint{X: 0, Y: 1060}, footer.Position())
	assert.Equal(t, scrolling.FloatRect{Y: 300, Width: 1280, Height: 800}, tree.RootStateNode().FrameState().LayoutViewport)

	_, err = owner.Scroll(ctx, p, "header", scrolling.FloatPoint{})
	assert.ErrorIs(t, err, layers.ErrNotScrollable)
	_, err = owner.Scroll(ctx, p, "nope", scrolling.FloatPoint{})
	assert.ErrorIs(t, err, layers.ErrUnknownElement)
}

func TestOwner_Parse(t *testing.T) {
	doc, err := layers.Parse(strings.NewReader(`<div id="a" style="overflow: auto; width: 10px; height: 10px"></div>`))
	require.NoError(t, err)

	owner := newOwner(t)
	tree := scrolling.NewStateTree()
	_, err = owner.Sync(context.Background(), &treePerformer{tree: tree}, doc)
	require.NoError(t, err)

	// The parser supplies the html element; it is keyed by its tag.
	assert.Equal(t, []string{"a", "html"}, owner.Elements())
	assert.Equal(t, 2, tree.NodeCount())
}

func TestOwner_WithCoordinator(t *testing.T) {
	defer goleak.VerifyNone(t)

	owner := newOwner(t)
	scfg := config.NewDefaultConfig().Scrolling()
	scfg.SerializedHandoff = true

	seen := make(chan scrolling.GraphicsLayer, 1)
	c, err := coordinator.New(zaptest.NewLogger(t), scfg,
		coordinator.WithManualCommits(),
		coordinator.WithLayerResolver(owner),
		coordinator.WithCommitObserver(func(snapshot *scrolling.StateTree) {
			seen <- snapshot.RootStateNode().Layer().Graphics()
		}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	doc, err := layers.LoadFile("testdata/page.html")
	require.NoError(t, err)
	_, err = owner.Sync(ctx, c, doc)
	require.NoError(t, err)

	committed, err := c.CommitNow(ctx)
	require.NoError(t, err)
	require.True(t, committed)
	assert.Equal(t, 7, c.ScrollingTree().NodeCount())

	select {
	case g := <-seen:
		want, _ := owner.Layer("page")
		assert.Same(t, want, g)
	case <-time.After(5 * time.Second):
		t.Fatal("observer was not called")
	}
}
