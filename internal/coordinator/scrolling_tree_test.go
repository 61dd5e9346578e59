package coordinator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrollstate/internal/coordinator"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

func TestScrollingTree_CommitTreeState(t *testing.T) {
	tree := scrolling.NewStateTree()
	buildTree(tree)
	mirror := coordinator.NewScrollingTree(zaptest.NewLogger(t))

	t.Run("new nodes take every property", func(t *testing.T) {
		n, _ := tree.StateNodeForID(2)
		n.SetScrollPosition(scrolling.FloatPoint{Y: 10})
		n.SetLayer(scrolling.LayerFromID(5))

		reattached := mirror.CommitTreeState(tree.Commit(scrolling.PlatformLayerIDRepresentation))
		assert.Equal(t, 1, reattached)
		assert.Equal(t, 3, mirror.NodeCount())

		info, ok := mirror.NodeForID(2)
		require.True(t, ok)
		assert.Equal(t, scrolling.OverflowScrolling, info.Type)
		assert.Equal(t, scrolling.NodeID(1), info.Parent)
		assert.Equal(t, []scrolling.NodeID{3}, info.Children)
		// Unset properties still have their zero values mirrored.
		assert.Contains(t, info.Values, scrolling.PropertyScrollableAreaSize)
		assert.Equal(t, scrolling.FloatPoint{Y: 10}, info.Values[scrolling.PropertyScrollPosition])
	})

	t.Run("existing nodes take only changed properties", func(t *testing.T) {
		n, _ := tree.StateNodeForID(2)
		n.SetScrollPosition(scrolling.FloatPoint{Y: 30})

		snapshot := tree.Commit(scrolling.PlatformLayerIDRepresentation)
		require.NotNil(t, snapshot)
		sn, _ := snapshot.StateNodeForID(2)
		assert.Equal(t, scrolling.PropertyScrollPosition, sn.ChangedProperties())

		assert.Zero(t, mirror.CommitTreeState(snapshot))
		v, ok := mirror.Value(2, scrolling.PropertyScrollPosition)
		require.True(t, ok)
		assert.Equal(t, scrolling.FloatPoint{Y: 30}, v)
		layer, ok := mirror.Value(2, scrolling.PropertyLayer)
		require.True(t, ok)
		assert.Equal(t, scrolling.LayerID(5), layer.(scrolling.LayerRepresentation).ID())
	})

	t.Run("vanished nodes are dropped", func(t *testing.T) {
		tree.UnparentNode(3)
		mirror.CommitTreeState(tree.Commit(scrolling.PlatformLayerIDRepresentation))
		assert.Equal(t, []scrolling.NodeID{1, 2}, mirror.NodeIDs())
		_, ok := mirror.NodeForID(3)
		assert.False(t, ok)
	})

	t.Run("type change recreates the node", func(t *testing.T) {
		tree.InsertNode(scrolling.Plain, 2, 1, 0)
		mirror.CommitTreeState(tree.Commit(scrolling.PlatformLayerIDRepresentation))

		info, ok := mirror.NodeForID(2)
		require.True(t, ok)
		assert.Equal(t, scrolling.Plain, info.Type)
		assert.NotContains(t, info.Values, scrolling.PropertyScrollPosition)
	})

	t.Run("empty snapshot clears the mirror", func(t *testing.T) {
		tree.Clear()
		mirror.CommitTreeState(tree.Commit(scrolling.PlatformLayerIDRepresentation))
		assert.Zero(t, mirror.NodeCount())
		assert.Equal(t, 5, mirror.CommitCount())
	})
}

func TestScrollingTree_RepresentationSwitch(t *testing.T) {
	tree := scrolling.NewStateTree()
	buildTree(tree)
	n, _ := tree.StateNodeForID(2)
	n.SetLayer(scrolling.LayerFromGraphics(&testLayer{id: 7}))
	mirror := coordinator.NewScrollingTree(zaptest.NewLogger(t))

	mirror.CommitTreeState(tree.Commit(scrolling.GraphicsLayerRepresentation))
	v, ok := mirror.Value(2, scrolling.PropertyLayer)
	require.True(t, ok)
	assert.Equal(t, scrolling.GraphicsLayerRepresentation, v.(scrolling.LayerRepresentation).Type())

	snapshot := tree.Commit(scrolling.PlatformLayerIDRepresentation)
	require.NotNil(t, snapshot)
	assert.Equal(t, 1, mirror.CommitTreeState(snapshot))

	v, ok = mirror.Value(2, scrolling.PropertyLayer)
	require.True(t, ok)
	layer := v.(scrolling.LayerRepresentation)
	assert.Equal(t, scrolling.PlatformLayerIDRepresentation, layer.Type())
	assert.Equal(t, scrolling.LayerID(7), layer.ID())
	// Non layer values are left alone.
	_, ok = mirror.Value(2, scrolling.PropertyScrollPosition)
	assert.True(t, ok)
}

func TestScrollingTree_AsText(t *testing.T) {
	tree := scrolling.NewStateTree()
	buildTree(tree)
	n, _ := tree.StateNodeForID(2)
	n.SetScrollPosition(scrolling.FloatPoint{Y: 25})

	mirror := coordinator.NewScrollingTree(nil)
	mirror.CommitTreeState(tree.Commit(scrolling.GraphicsLayerRepresentation))

	text := mirror.AsText()
	assert.Contains(t, text, "(scrolling tree\n")
	assert.Contains(t, text, "  (frame-scrolling id=1)\n")
	assert.Contains(t, text, "    (overflow-scrolling id=2 scroll-position=")
	assert.Contains(t, text, "      (fixed-position id=3 layer-position=")

	var depths []int
	mirror.TraverseScrollingTree(func(_ coordinator.NodeInfo, depth int) {
		depths = append(depths, depth)
	})
	assert.Equal(t, []int{0, 1, 2}, depths)
}
