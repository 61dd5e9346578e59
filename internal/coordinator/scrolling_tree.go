// internal/coordinator/scrolling_tree.go
package coordinator

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// ScrollingTree is the scrolling context's mirror of the committed state. It is
// written only by CommitTreeState on the scrolling goroutine; the lock lets other
// goroutines query it and is never taken on the main context's handoff path.
type ScrollingTree struct {
	logger *zap.Logger

	mu          sync.RWMutex
	nodes       map[scrolling.NodeID]*treeNode
	root        *treeNode
	rootFrameID scrolling.FrameID
	lastCommit  scrolling.CommitID
	commits     int
}

type treeNode struct {
	id       scrolling.NodeID
	nodeType scrolling.NodeType
	parent   *treeNode
	children []*treeNode
	values   map[scrolling.Property]any
}

// NodeInfo is a read-only copy of one mirrored node.
type NodeInfo struct {
	ID       scrolling.NodeID
	Type     scrolling.NodeType
	Parent   scrolling.NodeID
	Children []scrolling.NodeID
	Values   map[scrolling.Property]any
}

// NewScrollingTree returns an empty mirror.
func NewScrollingTree(logger *zap.Logger) *ScrollingTree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrollingTree{
		logger: logger.Named("scrolling_tree_mirror"),
		nodes:  make(map[scrolling.NodeID]*treeNode),
	}
}

// CommitTreeState applies a snapshot. New nodes, and nodes whose type changed,
// take every property; existing nodes take only the changed ones. Nodes absent
// from the snapshot are dropped. It returns the number of layer properties that
// had to be re-attached.
func (st *ScrollingTree) CommitTreeState(snapshot *scrolling.StateTree) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.rootFrameID = snapshot.RootFrameIdentifier()
	st.lastCommit = snapshot.CommitID()
	st.commits++

	root := snapshot.RootStateNode()
	if root == nil {
		clear(st.nodes)
		st.root = nil
		return 0
	}

	seen := make(map[scrolling.NodeID]struct{}, snapshot.NodeCount())
	reattached := 0
	created := 0
	var apply func(n *scrolling.StateNode, parent *treeNode) *treeNode
	apply = func(n *scrolling.StateNode, parent *treeNode) *treeNode {
		seen[n.ID()] = struct{}{}
		mask := n.ChangedProperties()

		tn, ok := st.nodes[n.ID()]
		if !ok || tn.nodeType != n.NodeType() {
			tn = &treeNode{id: n.ID(), nodeType: n.NodeType(), values: make(map[scrolling.Property]any)}
			st.nodes[n.ID()] = tn
			mask = scrolling.AllProperties(n.NodeType())
			created++
		}

		mask.Each(func(p scrolling.Property) {
			v, ok := n.PropertyValue(p)
			if !ok {
				return
			}
			tn.values[p] = v
			if scrolling.LayerProperties.Has(p) {
				if l, ok := v.(scrolling.LayerRepresentation); ok && !l.IsEmpty() {
					reattached++
				}
			}
		})

		tn.parent = parent
		tn.children = tn.children[:0]
		for _, c := range n.Children() {
			tn.children = append(tn.children, apply(c, tn))
		}
		return tn
	}
	st.root = apply(root, nil)

	removed := 0
	for id := range st.nodes {
		if _, ok := seen[id]; !ok {
			delete(st.nodes, id)
			removed++
		}
	}

	st.logger.Debug("Applied scrolling state.",
		zap.Stringer("commit_id", st.lastCommit),
		zap.Int("nodes", len(st.nodes)),
		zap.Int("created", created),
		zap.Int("removed", removed),
		zap.Int("layers_reattached", reattached))
	return reattached
}

// NodeCount returns the number of mirrored nodes.
func (st *ScrollingTree) NodeCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.nodes)
}

// CommitCount returns how many snapshots were applied.
func (st *ScrollingTree) CommitCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.commits
}

// LastCommitID returns the ID of the last applied snapshot.
func (st *ScrollingTree) LastCommitID() scrolling.CommitID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.lastCommit
}

// RootFrameIdentifier returns the frame of the last applied snapshot.
func (st *ScrollingTree) RootFrameIdentifier() scrolling.FrameID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.rootFrameID
}

// NodeForID returns a copy of the mirrored node.
func (st *ScrollingTree) NodeForID(id scrolling.NodeID) (NodeInfo, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	tn, ok := st.nodes[id]
	if !ok {
		return NodeInfo{}, false
	}
	return tn.info(), true
}

// Value returns a single mirrored property value.
func (st *ScrollingTree) Value(id scrolling.NodeID, prop scrolling.Property) (any, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	tn, ok := st.nodes[id]
	if !ok {
		return nil, false
	}
	v, ok := tn.values[prop]
	return v, ok
}

// TraverseScrollingTree calls fn for each node in depth first order.
func (st *ScrollingTree) TraverseScrollingTree(fn func(NodeInfo, int)) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.root == nil {
		return
	}
	var walk func(*treeNode, int)
	walk = func(tn *treeNode, depth int) {
		fn(tn.info(), depth)
		for _, c := range tn.children {
			walk(c, depth+1)
		}
	}
	walk(st.root, 0)
}

// AsText renders the mirror as indented text.
func (st *ScrollingTree) AsText() string {
	var sb strings.Builder
	sb.WriteString("(scrolling tree\n")
	st.TraverseScrollingTree(func(n NodeInfo, depth int) {
		fmt.Fprintf(&sb, "%s(%s id=%d", strings.Repeat("  ", depth+1), n.Type, n.ID)
		if v, ok := n.Values[scrolling.PropertyScrollPosition]; ok && v != (scrolling.FloatPoint{}) {
			fmt.Fprintf(&sb, " scroll-position=%s", v)
		}
		if v, ok := n.Values[scrolling.PropertyLayerPosition]; ok {
			fmt.Fprintf(&sb, " layer-position=%s", v)
		}
		sb.WriteString(")\n")
	})
	sb.WriteString(")\n")
	return sb.String()
}

func (tn *treeNode) info() NodeInfo {
	info := NodeInfo{
		ID:     tn.id,
		Type:   tn.nodeType,
		Values: maps.Clone(tn.values),
	}
	if tn.parent != nil {
		info.Parent = tn.parent.id
	}
	for _, c := range tn.children {
		info.Children = append(info.Children, c.id)
	}
	return info
}

// NodeIDs returns the mirrored IDs in ascending order.
func (st *ScrollingTree) NodeIDs() []scrolling.NodeID {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return slices.Sorted(maps.Keys(st.nodes))
}
