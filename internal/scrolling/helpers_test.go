package scrolling_test

import (
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// shape is the structural part of a subtree, used for deep comparisons.
type shape struct {
	ID       scrolling.NodeID
	Type     scrolling.NodeType
	Children []shape
}

func shapeOf(n *scrolling.StateNode) shape {
	s := shape{ID: n.ID(), Type: n.NodeType()}
	for _, c := range n.Children() {
		s.Children = append(s.Children, shapeOf(c))
	}
	return s
}

func subtreeSize(n *scrolling.StateNode) int {
	size := 1
	for _, c := range n.Children() {
		size += subtreeSize(c)
	}
	return size
}

var layerComparer = cmp.Comparer(func(a, b scrolling.LayerRepresentation) bool { return a.Equal(b) })

// fakeLayer records how reconciliation drove it.
type fakeLayer struct {
	id    scrolling.LayerID
	pos   scrolling.FloatPoint
	calls []string
}

func (l *fakeLayer) ID() scrolling.LayerID          { return l.id }
func (l *fakeLayer) Position() scrolling.FloatPoint { return l.pos }
func (l *fakeLayer) SetPosition(p scrolling.FloatPoint) {
	l.pos = p
	l.calls = append(l.calls, "set")
}
func (l *fakeLayer) SetApproximatePosition(p scrolling.FloatPoint) {
	l.pos = p
	l.calls = append(l.calls, "set-approximate")
}
func (l *fakeLayer) SyncPosition(p scrolling.FloatPoint) {
	l.pos = p
	l.calls = append(l.calls, "sync")
}

type layerMap map[scrolling.LayerID]*fakeLayer

func (m layerMap) LayerForID(id scrolling.LayerID) (scrolling.GraphicsLayer, bool) {
	l, ok := m[id]
	return l, ok
}

// countingScheduler counts commit requests into a counter it does not own, so the
// count stays readable after the scheduler is collected.
type countingScheduler struct {
	calls *atomic.Int32
}

func (s *countingScheduler) ScheduleTreeStateCommit() { s.calls.Add(1) }

// newTree returns an empty tree logging to the test.
func newTree(t *testing.T, opts ...scrolling.TreeOption) *scrolling.StateTree {
	t.Helper()
	opts = append([]scrolling.TreeOption{scrolling.WithLogger(zaptest.NewLogger(t))}, opts...)
	return scrolling.NewStateTree(opts...)
}

// buildBasicTree builds frame 1 > overflow 2 > fixed 3.
func buildBasicTree(t *testing.T, tree *scrolling.StateTree) {
	t.Helper()
	_, ok := tree.InsertNode(scrolling.FrameScrolling, 1, scrolling.InvalidNodeID, 0)
	require.True(t, ok)
	_, ok = tree.InsertNode(scrolling.OverflowScrolling, 2, 1, 0)
	require.True(t, ok)
	_, ok = tree.InsertNode(scrolling.FixedPosition, 3, 2, 0)
	require.True(t, ok)
}

func mustNode(t *testing.T, tree *scrolling.StateTree, id scrolling.NodeID) *scrolling.StateNode {
	t.Helper()
	n, ok := tree.StateNodeForID(id)
	require.True(t, ok, "node %d should exist", id)
	return n
}
