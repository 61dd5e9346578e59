// internal/scrolling/tree.go
package scrolling

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// StateTree owns a graph of StateNodes: an optional root plus a pool of
// unparented subtrees, all indexed by ID. It is mutated by a single context and
// handed to the scrolling context through Commit.
type StateTree struct {
	logger    *zap.Logger
	scheduler schedulerRef

	rootFrameID FrameID
	commitID    CommitID
	preferred   LayerRepresentationType

	nodes      map[NodeID]*StateNode
	unparented map[NodeID]*StateNode
	root       *StateNode

	scrollingCount int
	hasChanged     bool
	hasNewRoot     bool
}

// TreeOption configures a StateTree.
type TreeOption func(*StateTree)

// WithLogger sets the logger used for structural diagnostics.
func WithLogger(logger *zap.Logger) TreeOption {
	return func(t *StateTree) {
		if logger != nil {
			t.logger = logger.Named("scrolling_tree")
		}
	}
}

// WithScheduler registers the scheduler notified about pending changes. The tree
// keeps only a weak reference, so it never extends the scheduler's lifetime.
func WithScheduler[T any, PT interface {
	*T
	CommitScheduler
}](s PT) TreeOption {
	return func(t *StateTree) {
		t.scheduler = newWeakScheduler[T, PT](s)
	}
}

// WithPreferredLayerRepresentation sets the initial layer representation.
func WithPreferredLayerRepresentation(rep LayerRepresentationType) TreeOption {
	return func(t *StateTree) { t.preferred = rep }
}

// WithRootFrameIdentifier sets the frame the tree belongs to.
func WithRootFrameIdentifier(id FrameID) TreeOption {
	return func(t *StateTree) { t.rootFrameID = id }
}

// NewStateTree returns an empty tree.
func NewStateTree(opts ...TreeOption) *StateTree {
	t := &StateTree{
		logger:     zap.NewNop(),
		preferred:  GraphicsLayerRepresentation,
		nodes:      make(map[NodeID]*StateNode),
		unparented: make(map[NodeID]*StateNode),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// -- Accessors --

// StateNodeForID returns the live node with the given ID.
func (t *StateTree) StateNodeForID(id NodeID) (*StateNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// RootStateNode returns the root, or nil.
func (t *StateTree) RootStateNode() *StateNode { return t.root }

// NodeCount returns the number of live nodes, attached or pooled.
func (t *StateTree) NodeCount() int { return len(t.nodes) }

// ScrollingNodeCount returns the number of live frame and overflow scrolling nodes.
func (t *StateTree) ScrollingNodeCount() int { return t.scrollingCount }

// UnparentedNodeCount returns the number of subtrees in the unparented pool.
func (t *StateTree) UnparentedNodeCount() int { return len(t.unparented) }

// NodeIDs returns the IDs of every live node in ascending order.
func (t *StateTree) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// UnparentedNodeIDs returns the pool keys in ascending order.
func (t *StateTree) UnparentedNodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(t.unparented))
	for id := range t.unparented {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// HasChangedProperties reports whether anything changed since the last commit.
func (t *StateTree) HasChangedProperties() bool { return t.hasChanged }

// HasNewRootStateNode reports whether the root was replaced since the last commit.
func (t *StateTree) HasNewRootStateNode() bool { return t.hasNewRoot }

// SetHasChangedProperties sets the tree level change flag. Setting it asks the
// scheduler, if it is still alive, for a commit.
func (t *StateTree) SetHasChangedProperties(changed bool) {
	t.hasChanged = changed
	if !changed || t.scheduler == nil {
		return
	}
	if s, ok := t.scheduler.get(); ok {
		s.ScheduleTreeStateCommit()
	}
}

// PreferredLayerRepresentation returns the representation used by the last commit.
func (t *StateTree) PreferredLayerRepresentation() LayerRepresentationType { return t.preferred }

// SetPreferredLayerRepresentation changes the representation without marking changes.
func (t *StateTree) SetPreferredLayerRepresentation(rep LayerRepresentationType) {
	t.preferred = rep
}

// RootFrameIdentifier returns the frame the tree belongs to.
func (t *StateTree) RootFrameIdentifier() FrameID { return t.rootFrameID }

func (t *StateTree) SetRootFrameIdentifier(id FrameID) { t.rootFrameID = id }

// CommitID identifies a snapshot. It is the zero UUID for trees that were not
// produced by Commit.
func (t *StateTree) CommitID() CommitID { return t.commitID }

// Traverse calls fn for every live node: the attached tree in depth first order,
// then each pooled subtree in ascending ID order.
func (t *StateTree) Traverse(fn func(*StateNode)) {
	if t.root != nil {
		t.root.walk(fn)
	}
	for _, id := range t.UnparentedNodeIDs() {
		t.unparented[id].walk(fn)
	}
}

// -- Structural operations --

// CreateUnparentedNode creates a node in the unparented pool. It fails if the ID
// is invalid or already in use.
func (t *StateTree) CreateUnparentedNode(typ NodeType, id NodeID) (NodeID, bool) {
	if !id.IsValid() || !typ.valid() {
		t.logger.Debug("Rejected unparented node.", zap.Stringer("id", id), zap.Stringer("type", typ))
		return InvalidNodeID, false
	}
	if _, exists := t.nodes[id]; exists {
		t.logger.Debug("Rejected unparented node.", zap.Error(fmt.Errorf("%w: %d", ErrDuplicateNode, id)))
		return InvalidNodeID, false
	}

	n := t.createNode(typ, id)
	n.loc = location{kind: locationUnparented}
	t.unparented[id] = n
	return id, true
}

// InsertNode places the node id under parentID at childIndex, creating it if it
// does not exist. With an invalid parentID the node becomes the tree root, which
// must be a frame scrolling node; the previous root subtree is destroyed. An
// existing node is moved from wherever it lives. If it exists with a different
// type, its children move to the pool and it is recreated. Out of range indexes
// append.
func (t *StateTree) InsertNode(typ NodeType, id NodeID, parentID NodeID, childIndex int) (NodeID, bool) {
	if !id.IsValid() || !typ.valid() {
		t.logger.Debug("Rejected node insertion.", zap.Stringer("id", id), zap.Stringer("type", typ))
		return InvalidNodeID, false
	}
	if !parentID.IsValid() {
		return t.insertRoot(typ, id)
	}

	parent, ok := t.nodes[parentID]
	if !ok || parentID == id {
		t.logger.Debug("Rejected node insertion.",
			zap.Stringer("id", id), zap.Error(fmt.Errorf("%w: %d", ErrUnknownParent, parentID)))
		return InvalidNodeID, false
	}

	node := t.nodes[id]
	if node != nil && node.nodeType != typ {
		t.logger.Debug("Replacing node with a different type.",
			zap.Stringer("id", id), zap.Stringer("old_type", node.nodeType), zap.Stringer("new_type", typ))
		t.unparentChildrenAndDestroy(node)
		node = nil
	}

	if node == nil {
		node = t.createNode(typ, id)
	} else {
		if parent.isDescendantOf(node) {
			t.logger.Debug("Rejected node insertion that would create a cycle.",
				zap.Stringer("id", id), zap.Stringer("parent", parentID))
			return InvalidNodeID, false
		}
		if t.detach(node) == locationUnparented {
			// The consumer may never have seen the node's current values.
			node.changed = AllProperties(node.nodeType)
		}
	}

	parent.insertChild(node, childIndex)
	t.SetHasChangedProperties(true)
	return id, true
}

func (t *StateTree) insertRoot(typ NodeType, id NodeID) (NodeID, bool) {
	if typ != FrameScrolling {
		t.logger.Debug("Rejected root insertion.",
			zap.Stringer("id", id), zap.Error(fmt.Errorf("%w: got %s", ErrInvalidRootType, typ)))
		return InvalidNodeID, false
	}
	if t.root != nil && t.root.id == id {
		t.SetHasChangedProperties(true)
		return id, true
	}

	node := t.nodes[id]
	if node != nil && node.nodeType != FrameScrolling {
		t.unparentChildrenAndDestroy(node)
		node = nil
	}
	if node != nil {
		t.detach(node)
	}

	if old := t.root; old != nil {
		t.logger.Debug("Replacing root node.", zap.Stringer("old", old.id), zap.Stringer("new", id))
		t.detach(old)
		t.destroySubtree(old)
	}

	if node == nil {
		node = t.createNode(typ, id)
	}
	node.loc = location{kind: locationRoot}
	t.root = node
	t.hasNewRoot = true
	t.SetHasChangedProperties(true)
	return id, true
}

// UnparentNode moves the subtree at id from its parent into the pool. Roots,
// pooled nodes and unknown IDs are left alone.
func (t *StateTree) UnparentNode(id NodeID) {
	node, ok := t.nodes[id]
	if !ok {
		t.logger.Debug("Ignored unparent.", zap.Error(fmt.Errorf("%w: %d", ErrUnknownNode, id)))
		return
	}
	if node.loc.kind != locationChild {
		return
	}
	t.detach(node)
	t.pool(node)
	t.SetHasChangedProperties(true)
}

// UnparentChildrenAndDestroyNode moves each child of id into the pool, keeping
// their subtrees intact, then destroys id.
func (t *StateTree) UnparentChildrenAndDestroyNode(id NodeID) {
	node, ok := t.nodes[id]
	if !ok {
		t.logger.Debug("Ignored unparent and destroy.", zap.Error(fmt.Errorf("%w: %d", ErrUnknownNode, id)))
		return
	}
	t.unparentChildrenAndDestroy(node)
	t.SetHasChangedProperties(true)
}

// DetachAndDestroySubtree removes id and all of its descendants, wherever they live.
func (t *StateTree) DetachAndDestroySubtree(id NodeID) {
	node, ok := t.nodes[id]
	if !ok {
		t.logger.Debug("Ignored detach and destroy.", zap.Error(fmt.Errorf("%w: %d", ErrUnknownNode, id)))
		return
	}
	t.detach(node)
	t.destroySubtree(node)
	t.SetHasChangedProperties(true)
}

// Clear destroys the root and every pooled subtree.
func (t *StateTree) Clear() {
	if len(t.nodes) == 0 {
		return
	}
	if root := t.root; root != nil {
		t.detach(root)
		t.destroySubtree(root)
	}
	for _, n := range t.unparented {
		t.destroySubtree(n)
	}
	clear(t.unparented)
	t.SetHasChangedProperties(true)
}

// ReconcileViewportConstrainedLayerPositions recomputes the cached layer position
// of every fixed and sticky node in the subtree rooted at id, or at the root if id
// is invalid, for the given viewport. It returns the number of nodes whose position moved.
func (t *StateTree) ReconcileViewportConstrainedLayerPositions(id NodeID, viewport FloatRect, action ScrollingLayerPositionAction) int {
	start := t.root
	if id.IsValid() {
		start = t.nodes[id]
	}
	if start == nil {
		return 0
	}

	moved := 0
	var visit func(*StateNode)
	visit = func(n *StateNode) {
		if n.ReconcileLayerPosition(viewport, action) {
			moved++
		}
		for _, child := range n.children {
			visit(child)
		}
	}
	visit(start)

	if moved > 0 {
		t.logger.Debug("Reconciled viewport constrained layers.",
			zap.Stringer("start", start.id), zap.Int("moved", moved), zap.Stringer("action", action))
	}
	return moved
}

// -- Bookkeeping --

func (t *StateTree) createNode(typ NodeType, id NodeID) *StateNode {
	n := newStateNode(t, typ, id)
	n.changed = AllProperties(typ)
	t.register(n)
	return n
}

func (t *StateTree) register(n *StateNode) {
	n.tree = t
	t.nodes[n.id] = n
	if n.nodeType.IsScrolling() {
		t.scrollingCount++
	}
}

func (t *StateTree) willRemove(n *StateNode) {
	delete(t.nodes, n.id)
	if n.nodeType.IsScrolling() {
		t.scrollingCount--
	}
	n.tree = nil
	n.loc = location{kind: locationDestroyed}
}

func (t *StateTree) pool(n *StateNode) {
	n.loc = location{kind: locationUnparented}
	t.unparented[n.id] = n
}

// detach removes n from its owner and returns where it was.
func (t *StateTree) detach(n *StateNode) locationKind {
	was := n.loc.kind
	switch was {
	case locationChild:
		n.loc.parent.removeChild(n)
	case locationRoot:
		t.root = nil
	case locationUnparented:
		delete(t.unparented, n.id)
	}
	n.loc = location{}
	return was
}

func (t *StateTree) unparentChildrenAndDestroy(n *StateNode) {
	t.detach(n)
	for _, child := range n.children {
		t.pool(child)
	}
	n.children = nil
	t.willRemove(n)
}

func (t *StateTree) destroySubtree(n *StateNode) {
	for _, child := range n.children {
		t.destroySubtree(child)
	}
	n.children = nil
	t.willRemove(n)
}

// adoptSubtree registers a free standing node graph with the tree. It fails
// without side effects if any ID is invalid or already known.
func (t *StateTree) adoptSubtree(n *StateNode) error {
	seen := make(map[NodeID]struct{})
	var err error
	n.walk(func(c *StateNode) {
		if err != nil {
			return
		}
		if !c.id.IsValid() {
			err = fmt.Errorf("%w: %d", ErrUnknownNode, c.id)
			return
		}
		if c.tree != nil {
			err = fmt.Errorf("%w: node %d belongs to a tree", ErrDuplicateNode, c.id)
			return
		}
		if _, dup := seen[c.id]; dup {
			err = fmt.Errorf("%w: %d", ErrDuplicateNode, c.id)
			return
		}
		if _, dup := t.nodes[c.id]; dup {
			err = fmt.Errorf("%w: %d", ErrDuplicateNode, c.id)
			return
		}
		seen[c.id] = struct{}{}
	})
	if err != nil {
		return err
	}
	n.walk(t.register)
	return nil
}
