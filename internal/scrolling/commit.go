// internal/scrolling/commit.go
package scrolling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrUnresolvedLayer is returned by AttachDeserializedNodes for layer IDs the
// resolver does not know.
var ErrUnresolvedLayer = errors.New("unresolved layer id")

// Commit returns an independent snapshot of the attached tree for the scrolling
// context, or nil if nothing changed and rep matches the current representation.
// The snapshot shares no nodes with the source. Every change mask in the source,
// pooled subtrees included, is cleared, as are the tree level flags. When rep
// differs from the current representation, every layer property in the snapshot
// is marked changed so the consumer re-attaches its layers.
//
// Ownership of the snapshot passes to the caller; the source never touches it again.
func (t *StateTree) Commit(rep LayerRepresentationType) *StateTree {
	if !t.hasChanged && rep == t.preferred {
		return nil
	}

	snapshot := &StateTree{
		logger:      t.logger,
		rootFrameID: t.rootFrameID,
		commitID:    uuid.New(),
		preferred:   rep,
		nodes:       make(map[NodeID]*StateNode, len(t.nodes)),
		unparented:  make(map[NodeID]*StateNode),
		hasChanged:  t.hasChanged,
		hasNewRoot:  t.hasNewRoot,
	}
	if t.root != nil {
		root := t.root.cloneAndReset(snapshot, t.hasNewRoot)
		root.loc = location{kind: locationRoot}
		snapshot.root = root
		root.walk(snapshot.register)
		if rep != t.preferred {
			root.walk(func(n *StateNode) {
				n.changed |= LayerProperties & AllProperties(n.nodeType)
			})
		}
	}
	for _, n := range t.unparented {
		n.resetSubtree()
	}

	t.hasChanged = false
	t.hasNewRoot = false
	t.preferred = rep

	fields := []zap.Field{
		zap.Stringer("commit_id", snapshot.commitID),
		zap.Int("nodes", snapshot.NodeCount()),
		zap.Bool("new_root", snapshot.hasNewRoot),
	}
	if len(t.unparented) > 0 {
		fields = append(fields, zap.Int("unparented_subtrees", len(t.unparented)))
	}
	t.logger.Debug("Committed scrolling state tree.", fields...)
	return snapshot
}

// CreateAfterReconstruction builds a tree around a node graph assembled outside
// any tree, typically one decoded from a snapshot. root may be nil for an empty
// tree; otherwise it must be a free standing frame scrolling node and every ID in
// its subtree must be unique.
func CreateAfterReconstruction(hasNewRoot, hasChanged bool, root *StateNode, opts ...TreeOption) (*StateTree, error) {
	t := NewStateTree(opts...)
	t.hasNewRoot = hasNewRoot
	t.hasChanged = hasChanged
	if root == nil {
		return t, nil
	}
	if root.nodeType != FrameScrolling {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidRootType, root.nodeType)
	}
	if root.loc.kind != locationDetached {
		return nil, fmt.Errorf("%w: root %d is already owned", ErrInvalidTree, root.id)
	}
	if err := t.adoptSubtree(root); err != nil {
		return nil, fmt.Errorf("failed to adopt reconstructed nodes: %w", err)
	}
	root.loc = location{kind: locationRoot}
	t.root = root
	return t, nil
}

// AttachDeserializedNodes rebinds ID-only layer handles to the layer objects the
// resolver knows. Handles it cannot resolve stay ID-only and are reported.
func (t *StateTree) AttachDeserializedNodes(r LayerResolver) error {
	var errs []error
	bind := func(l *LayerRepresentation) {
		resolved, ok := l.resolve(r)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %d", ErrUnresolvedLayer, l.id))
			return
		}
		*l = resolved
	}
	t.Traverse(func(n *StateNode) {
		bind(&n.layer)
		if n.state != nil {
			n.state.eachLayer(bind)
		}
	})
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the structural invariants: every node reachable from the root or
// the pool is registered exactly once, parent links agree with child lists, the
// root has no parent and the scrolling node count is right.
func (t *StateTree) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTree, fmt.Sprintf(format, args...)))
	}

	for id, n := range t.nodes {
		if n.id != id {
			fail("node %d registered under %d", n.id, id)
		}
		if n.tree != t {
			fail("node %d does not point at its tree", id)
		}
	}

	seen := make(map[NodeID]int, len(t.nodes))
	scrolling := 0
	var check func(n, parent *StateNode)
	check = func(n, parent *StateNode) {
		seen[n.id]++
		if n.nodeType.IsScrolling() {
			scrolling++
		}
		if registered, ok := t.nodes[n.id]; !ok || registered != n {
			fail("node %d is reachable but not registered", n.id)
		}
		if parent != nil && (n.loc.kind != locationChild || n.loc.parent != parent) {
			fail("node %d has location %s, want child of %d", n.id, n.loc.kind, parent.id)
		}
		for _, c := range n.children {
			check(c, n)
		}
	}

	if t.root != nil {
		if t.root.loc.kind != locationRoot {
			fail("root %d has location %s", t.root.id, t.root.loc.kind)
		}
		check(t.root, nil)
	}
	for id, n := range t.unparented {
		if n.id != id || n.loc.kind != locationUnparented {
			fail("pool entry %d holds node %d with location %s", id, n.id, n.loc.kind)
		}
		check(n, nil)
	}

	for id, count := range seen {
		if count > 1 {
			fail("node %d is reachable %d times", id, count)
		}
	}
	if len(seen) != len(t.nodes) {
		fail("%d nodes registered, %d reachable", len(t.nodes), len(seen))
	}
	if scrolling != t.scrollingCount {
		fail("scrolling node count is %d, counted %d", t.scrollingCount, scrolling)
	}
	return errors.Join(errs...)
}
