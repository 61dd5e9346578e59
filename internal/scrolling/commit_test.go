package scrolling_test

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

func TestStateTree_Commit(t *testing.T) {
	t.Run("should return nothing when nothing changed", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)

		require.NotNil(t, tree.Commit(scrolling.GraphicsLayerRepresentation))
		assert.Nil(t, tree.Commit(scrolling.GraphicsLayerRepresentation))
	})

	t.Run("should commit when only the representation changes", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)
		tree.Commit(scrolling.GraphicsLayerRepresentation)

		snapshot := tree.Commit(scrolling.PlatformLayerIDRepresentation)
		require.NotNil(t, snapshot)
		assert.Equal(t, scrolling.PlatformLayerIDRepresentation, snapshot.PreferredLayerRepresentation())
		assert.Equal(t, scrolling.PlatformLayerIDRepresentation, tree.PreferredLayerRepresentation())
		assert.False(t, snapshot.HasChangedProperties())
		snapshot.Traverse(func(n *scrolling.StateNode) {
			want := scrolling.LayerProperties & scrolling.AllProperties(n.NodeType())
			assert.Equal(t, want, n.ChangedProperties(), "node %d", n.ID())
		})
	})

	t.Run("should clear every change mask including pooled nodes", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)
		_, ok := tree.CreateUnparentedNode(scrolling.OverflowScrolling, 8)
		require.True(t, ok)
		_, ok = tree.InsertNode(scrolling.Plain, 9, 8, 0)
		require.True(t, ok)
		mustNode(t, tree, 2).SetScrollPosition(scrolling.FloatPoint{X: 3})
		mustNode(t, tree, 8).SetScrollPosition(scrolling.FloatPoint{X: 4})

		tree.Commit(scrolling.GraphicsLayerRepresentation)

		assert.False(t, tree.HasChangedProperties())
		tree.Traverse(func(n *scrolling.StateNode) {
			assert.False(t, n.HasChangedProperties(), "node %d keeps %s", n.ID(), n.ChangedProperties())
		})
	})

	t.Run("should carry change masks and a new root into the snapshot", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)
		tree.Commit(scrolling.GraphicsLayerRepresentation)

		mustNode(t, tree, 2).SetScrollPosition(scrolling.FloatPoint{Y: 12})
		snapshot := tree.Commit(scrolling.GraphicsLayerRepresentation)
		require.NotNil(t, snapshot)

		assert.False(t, snapshot.HasNewRootStateNode())
		assert.Equal(t, scrolling.NoProperties, mustNode(t, snapshot, 1).ChangedProperties())
		assert.Equal(t, scrolling.PropertyScrollPosition, mustNode(t, snapshot, 2).ChangedProperties())
		assert.Equal(t, scrolling.NoProperties, mustNode(t, snapshot, 3).ChangedProperties())
	})

	t.Run("should produce a snapshot independent of the source", func(t *testing.T) {
		frameID := scrolling.NewFrameID()
		tree := newTree(t, scrolling.WithRootFrameIdentifier(frameID))
		buildBasicTree(t, tree)
		mustNode(t, tree, 2).SetSnapOffsets(nil, []float64{0, 50})

		snapshot := tree.Commit(scrolling.GraphicsLayerRepresentation)
		require.NotNil(t, snapshot)
		assert.Equal(t, frameID, snapshot.RootFrameIdentifier())
		assert.NotEqual(t, scrolling.CommitID{}, snapshot.CommitID())

		// 1. Mutate the source after the commit.
		src := mustNode(t, tree, 2)
		src.SetScrollPosition(scrolling.FloatPoint{Y: 99})
		src.SetSnapOffsets(nil, []float64{1})
		tree.DetachAndDestroySubtree(3)

		// 2. The snapshot must not see any of it.
		committed := mustNode(t, snapshot, 2)
		assert.NotSame(t, src, committed)
		assert.Equal(t, scrolling.FloatPoint{}, committed.ScrollingState().ScrollPosition)
		assert.Equal(t, []float64{0, 50}, committed.ScrollingState().VerticalSnapOffsets)
		assert.Equal(t, 3, snapshot.NodeCount())
		assert.Equal(t, snapshot, committed.Tree())
		require.NoError(t, snapshot.Validate())
	})

	t.Run("should leave pooled subtrees out of the snapshot", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)
		tree.UnparentNode(3)

		snapshot := tree.Commit(scrolling.GraphicsLayerRepresentation)
		require.NotNil(t, snapshot)
		assert.Equal(t, 2, snapshot.NodeCount())
		assert.Zero(t, snapshot.UnparentedNodeCount())
		assert.Equal(t, 3, tree.NodeCount())
	})
}

func TestCreateAfterReconstruction(t *testing.T) {
	t.Run("should adopt a free standing graph", func(t *testing.T) {
		root := scrolling.NewStateNode(scrolling.FrameScrolling, 1)
		overflow := scrolling.NewStateNode(scrolling.OverflowScrolling, 2)
		root.AppendChild(overflow)
		overflow.AppendChild(scrolling.NewStateNode(scrolling.FixedPosition, 3))

		tree, err := scrolling.CreateAfterReconstruction(true, true, root)
		require.NoError(t, err)

		assert.Equal(t, 3, tree.NodeCount())
		assert.Equal(t, 2, tree.ScrollingNodeCount())
		assert.True(t, tree.HasNewRootStateNode())
		assert.True(t, tree.HasChangedProperties())
		assert.Equal(t, tree, overflow.Tree())
		require.NoError(t, tree.Validate())
	})

	t.Run("should build an empty tree without a root", func(t *testing.T) {
		tree, err := scrolling.CreateAfterReconstruction(false, false, nil)
		require.NoError(t, err)
		assert.Zero(t, tree.NodeCount())
	})

	t.Run("should reject a non frame root", func(t *testing.T) {
		_, err := scrolling.CreateAfterReconstruction(false, false, scrolling.NewStateNode(scrolling.Plain, 1))
		assert.ErrorIs(t, err, scrolling.ErrInvalidRootType)
	})

	t.Run("should reject duplicate ids", func(t *testing.T) {
		root := scrolling.NewStateNode(scrolling.FrameScrolling, 1)
		root.AppendChild(scrolling.NewStateNode(scrolling.Plain, 2))
		root.AppendChild(scrolling.NewStateNode(scrolling.Plain, 2))

		_, err := scrolling.CreateAfterReconstruction(false, false, root)
		assert.ErrorIs(t, err, scrolling.ErrDuplicateNode)
	})

	t.Run("should reject nodes owned by another tree", func(t *testing.T) {
		tree := newTree(t)
		buildBasicTree(t, tree)
		_, err := scrolling.CreateAfterReconstruction(false, false, tree.RootStateNode())
		assert.ErrorIs(t, err, scrolling.ErrInvalidTree)
	})
}

func TestJSONRoundTrip(t *testing.T) {
	layers := layerMap{
		100: {id: 100},
		200: {id: 200},
	}

	tree := newTree(t, scrolling.WithRootFrameIdentifier(scrolling.NewFrameID()))
	buildBasicTree(t, tree)
	root := tree.RootStateNode()
	root.SetLayer(scrolling.LayerFromGraphics(layers[100]))
	root.SetLayoutViewport(scrolling.FloatRect{Width: 1024, Height: 768})
	root.SetFrameScaleFactor(1.5)
	overflow := mustNode(t, tree, 2)
	overflow.SetScrolledContentsLayer(scrolling.LayerFromGraphics(layers[200]))
	overflow.SetSnapOffsets([]float64{0, 300}, nil)
	fixed := mustNode(t, tree, 3)
	fixed.SetFixedConstraints(scrolling.FixedPositionConstraints{
		AnchorEdges:               scrolling.AnchorEdgeBottom,
		LayerPositionAtLastLayout: scrolling.FloatPoint{Y: 700},
	})

	snapshot := tree.Commit(scrolling.PlatformLayerIDRepresentation)
	require.NotNil(t, snapshot)

	data, err := scrolling.EncodeJSON(snapshot)
	require.NoError(t, err)

	decoded, err := scrolling.DecodeJSON(data)
	require.NoError(t, err)
	require.NoError(t, decoded.Validate())

	assert.Equal(t, snapshot.CommitID(), decoded.CommitID())
	assert.Equal(t, snapshot.RootFrameIdentifier(), decoded.RootFrameIdentifier())
	assert.Equal(t, scrolling.PlatformLayerIDRepresentation, decoded.PreferredLayerRepresentation())
	assert.Equal(t, snapshot.HasNewRootStateNode(), decoded.HasNewRootStateNode())
	if diff := cmp.Diff(shapeOf(snapshot.RootStateNode()), shapeOf(decoded.RootStateNode())); diff != "" {
		t.Errorf("decoded shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(snapshot.RootStateNode().FrameState(), decoded.RootStateNode().FrameState(), layerComparer); diff != "" {
		t.Errorf("frame state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, mustNode(t, snapshot, 3).FixedState(), mustNode(t, decoded, 3).FixedState())
	assert.Equal(t, mustNode(t, snapshot, 2).ChangedProperties(), mustNode(t, decoded, 2).ChangedProperties())

	t.Run("should rebind layer objects", func(t *testing.T) {
		require.NoError(t, decoded.AttachDeserializedNodes(layers))

		l := decoded.RootStateNode().Layer()
		assert.Equal(t, scrolling.GraphicsLayerRepresentation, l.Type())
		assert.Same(t, layers[100], l.Graphics())
		assert.Same(t, layers[200], mustNode(t, decoded, 2).ScrollingState().ScrolledContentsLayer.Graphics())
	})

	t.Run("should report layers the resolver does not know", func(t *testing.T) {
		again, err := scrolling.DecodeJSON(data)
		require.NoError(t, err)

		err = again.AttachDeserializedNodes(layerMap{100: layers[100]})
		assert.ErrorIs(t, err, scrolling.ErrUnresolvedLayer)
		assert.Equal(t, scrolling.PlatformLayerIDRepresentation, mustNode(t, again, 2).ScrollingState().ScrolledContentsLayer.Type())
	})

	t.Run("should reject malformed documents", func(t *testing.T) {
		_, err := scrolling.DecodeJSON([]byte(`{"representation":"graphics-layer","root":{"id":1,"type":"bogus"}}`))
		assert.ErrorIs(t, err, scrolling.ErrUnknownNodeType)

		_, err = scrolling.DecodeJSON([]byte(`{"representation":"graphics-layer","root":{"id":1,"type":"plain"}}`))
		assert.ErrorIs(t, err, scrolling.ErrInvalidRootType)
	})
}

func TestStateTree_WeakScheduler(t *testing.T) {
	calls := new(atomic.Int32)
	collected := make(chan struct{})

	tree := func() *scrolling.StateTree {
		sched := &countingScheduler{calls: calls}
		runtime.AddCleanup(sched, func(done chan struct{}) { close(done) }, collected)
		tree := scrolling.NewStateTree(scrolling.WithScheduler(sched))
		tree.SetHasChangedProperties(true)
		return tree
	}()
	require.Equal(t, int32(1), calls.Load())

	// The tree must not keep its scheduler alive.
	require.Eventually(t, func() bool {
		runtime.GC()
		select {
		case <-collected:
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { tree.SetHasChangedProperties(true) })
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, tree.HasChangedProperties())
}
