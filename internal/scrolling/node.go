// internal/scrolling/node.go
package scrolling

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// -- Node location --

// locationKind tags where a node currently lives. A node has exactly one owner at
// any time: the tree root slot, a parent's child list, or the unparented pool.
type locationKind uint8

const (
	// locationDetached is a node that has no owner yet (fresh clones, nodes being
	// assembled for reconstruction, nodes in the middle of a move).
	locationDetached locationKind = iota
	locationRoot
	locationChild
	locationUnparented
	// locationDestroyed is terminal.
	locationDestroyed
)

func (k locationKind) String() string {
	switch k {
	case locationDetached:
		return "detached"
	case locationRoot:
		return "root"
	case locationChild:
		return "child"
	case locationUnparented:
		return "unparented"
	case locationDestroyed:
		return "destroyed"
	}
	return "invalid"
}

type location struct {
	kind   locationKind
	parent *StateNode // set only for locationChild
}

// nodeState is the type specific payload of a node.
type nodeState interface {
	clone() nodeState
	eachLayer(func(*LayerRepresentation))
}

// -- StateNode --

// StateNode is a single node in a scrolling state tree. It holds the scrolling
// related properties of one layer and a mask of the properties changed since the
// last commit.
//
// Nodes are not safe for concurrent use; they belong to the context that owns
// their tree.
type StateNode struct {
	tree     *StateTree
	nodeType NodeType
	id       NodeID
	changed  Property
	loc      location
	children []*StateNode
	layer    LayerRepresentation
	state    nodeState
}

func newStateNode(tree *StateTree, t NodeType, id NodeID) *StateNode {
	n := &StateNode{tree: tree, nodeType: t, id: id}
	switch t {
	case FrameScrolling:
		n.state = &FrameNodeState{}
	case OverflowScrolling:
		n.state = &ScrollingNodeState{}
	case FixedPosition:
		n.state = &FixedNodeState{}
	case StickyPosition:
		n.state = &StickyNodeState{}
	case Positioned:
		n.state = &PositionedNodeState{}
	}
	return n
}

// NewStateNode builds a node that belongs to no tree. Such nodes are assembled
// into a graph with AppendChild and adopted by CreateAfterReconstruction.
func NewStateNode(t NodeType, id NodeID) *StateNode {
	if !t.valid() {
		panic(fmt.Sprintf("scrolling: invalid node type %d", t))
	}
	return newStateNode(nil, t, id)
}

// ID returns the node's identifier.
func (n *StateNode) ID() NodeID { return n.id }

// NodeType returns the node's type.
func (n *StateNode) NodeType() NodeType { return n.nodeType }

// Tree returns the owning tree, nil for free standing or destroyed nodes.
func (n *StateNode) Tree() *StateTree { return n.tree }

// Parent returns the parent node, nil for roots, pool entries and detached nodes.
func (n *StateNode) Parent() *StateNode {
	if n.loc.kind == locationChild {
		return n.loc.parent
	}
	return nil
}

// IsUnparented reports whether the node is the root of a subtree in the pool.
func (n *StateNode) IsUnparented() bool { return n.loc.kind == locationUnparented }

// IsDestroyed reports whether the node was removed from its tree.
func (n *StateNode) IsDestroyed() bool { return n.loc.kind == locationDestroyed }

// Children returns a copy of the ordered child list.
func (n *StateNode) Children() []*StateNode {
	out := make([]*StateNode, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children.
func (n *StateNode) ChildCount() int { return len(n.children) }

// IndexOfChild returns the position of child, or -1.
func (n *StateNode) IndexOfChild(child *StateNode) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// -- Changed properties --

// ChangedProperties returns the changed properties mask.
func (n *StateNode) ChangedProperties() Property { return n.changed }

// HasChangedProperties reports whether any property changed since the last commit.
func (n *StateNode) HasChangedProperties() bool { return n.changed != NoProperties }

// HasChangedProperty reports whether prop changed since the last commit.
func (n *StateNode) HasChangedProperty(prop Property) bool { return n.changed.Has(prop) }

// SupportsProperty reports whether prop is valid for this node's type.
func (n *StateNode) SupportsProperty(prop Property) bool {
	return AllProperties(n.nodeType).Has(prop)
}

func (n *StateNode) mustSupport(prop Property) {
	if !n.SupportsProperty(prop) {
		panic(fmt.Sprintf("scrolling: property %s is not valid for %s node %d", prop, n.nodeType, n.id))
	}
}

// SetPropertyChanged marks prop changed and tells the owning tree.
func (n *StateNode) SetPropertyChanged(prop Property) {
	n.mustSupport(prop)
	n.changed |= prop
	if n.tree != nil {
		n.tree.SetHasChangedProperties(true)
	}
}

// SetAllPropertiesChanged marks every supported property changed.
func (n *StateNode) SetAllPropertiesChanged() {
	n.SetPropertyChanged(AllProperties(n.nodeType))
}

// ResetChangedProperties clears the mask without touching the tree flag.
func (n *StateNode) ResetChangedProperties() { n.changed = NoProperties }

// setValue stores value into field and marks prop changed, unless the value is
// unchanged. Consumers treat a changed bit as a semantic signal, so equal writes
// must not set it.
func setValue[T comparable](n *StateNode, prop Property, field *T, value T) {
	if sameValue(*field, value) {
		return
	}
	*field = value
	n.SetPropertyChanged(prop)
}

func setLayerValue(n *StateNode, prop Property, field *LayerRepresentation, value LayerRepresentation) {
	if field.Equal(value) {
		return
	}
	*field = value
	n.SetPropertyChanged(prop)
}

func setSliceValue[T comparable](n *StateNode, prop Property, field *[]T, value []T) {
	if slicesEqual(*field, value) {
		return
	}
	*field = append([]T(nil), value...)
	n.SetPropertyChanged(prop)
}

func slicesEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameValue(a[i], b[i]) {
			return false
		}
	}
	return true
}

// -- Layer --

// Layer returns the node's own layer handle.
func (n *StateNode) Layer() LayerRepresentation { return n.layer }

// SetLayer sets the node's own layer.
func (n *StateNode) SetLayer(l LayerRepresentation) {
	n.mustSupport(PropertyLayer)
	setLayerValue(n, PropertyLayer, &n.layer, l)
}

// -- Children --

// AppendChild adds child at the end of the child list.
func (n *StateNode) AppendChild(child *StateNode) {
	n.InsertChild(child, -1)
}

// InsertChild adds child at index. Negative or out of range indexes append. The
// child must not have an owner and must belong to the same tree (or, for free
// standing graphs, to none); violating that is a programming error.
func (n *StateNode) InsertChild(child *StateNode, index int) {
	if child == nil || child == n {
		panic("scrolling: invalid child")
	}
	if child.loc.kind != locationDetached {
		panic(fmt.Sprintf("scrolling: node %d is already owned (%s)", child.id, child.loc.kind))
	}
	if child.tree != nil && child.tree != n.tree {
		panic(fmt.Sprintf("scrolling: node %d belongs to another tree", child.id))
	}
	if n.isDescendantOf(child) {
		panic(fmt.Sprintf("scrolling: inserting node %d under %d would create a cycle", child.id, n.id))
	}
	if n.tree != nil && child.tree == nil {
		if err := n.tree.adoptSubtree(child); err != nil {
			panic(err.Error())
		}
	}
	n.insertChild(child, index)
	if n.tree != nil {
		n.tree.SetHasChangedProperties(true)
	}
}

// RemoveChild detaches child. For a node owned by a tree the child's subtree is
// moved into the unparented pool so it stays reachable; for free standing graphs
// it is simply dropped from the list.
func (n *StateNode) RemoveChild(child *StateNode) bool {
	if child == nil || child.Parent() != n {
		return false
	}
	if n.tree != nil {
		n.tree.UnparentNode(child.id)
		return true
	}
	n.removeChild(child)
	return true
}

func (n *StateNode) insertChild(child *StateNode, index int) {
	child.loc = location{kind: locationChild, parent: n}
	if index < 0 || index >= len(n.children) {
		n.children = append(n.children, child)
		return
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
}

func (n *StateNode) removeChild(child *StateNode) {
	i := n.IndexOfChild(child)
	if i < 0 {
		return
	}
	copy(n.children[i:], n.children[i+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.loc = location{}
}

// isDescendantOf reports whether n is ancestor or lies below it.
func (n *StateNode) isDescendantOf(ancestor *StateNode) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// -- Cloning --

// CloneForCommit returns a copy of the node, without children, owned by adoptive.
// Layer handles are converted to the adoptive tree's preferred representation.
// A clone made as a tree root gets every property marked changed, because a newly
// promoted root has to re-establish all of its platform state.
func (n *StateNode) CloneForCommit(adoptive *StateTree, asTreeRoot bool) *StateNode {
	clone := &StateNode{
		tree:     adoptive,
		nodeType: n.nodeType,
		id:       n.id,
		changed:  n.changed,
		layer:    n.layer,
	}
	if n.state != nil {
		clone.state = n.state.clone()
	}
	if adoptive != nil {
		rep := adoptive.preferred
		clone.layer = clone.layer.ToRepresentation(rep)
		if clone.state != nil {
			clone.state.eachLayer(func(l *LayerRepresentation) { *l = l.ToRepresentation(rep) })
		}
	}
	if asTreeRoot {
		clone.changed = AllProperties(n.nodeType)
	}
	return clone
}

// cloneAndReset clones the subtree for adoptive and clears the source masks.
func (n *StateNode) cloneAndReset(adoptive *StateTree, asTreeRoot bool) *StateNode {
	clone := n.CloneForCommit(adoptive, asTreeRoot)
	n.changed = NoProperties
	clone.children = make([]*StateNode, 0, len(n.children))
	for _, child := range n.children {
		clone.insertChild(child.cloneAndReset(adoptive, false), -1)
	}
	return clone
}

func (n *StateNode) resetSubtree() {
	n.changed = NoProperties
	for _, child := range n.children {
		child.resetSubtree()
	}
}

func (n *StateNode) walk(fn func(*StateNode)) {
	fn(n)
	for _, child := range n.children {
		child.walk(fn)
	}
}

func (n *StateNode) String() string {
	return fmt.Sprintf("%s node %d", n.nodeType, n.id)
}

// sameValue is == except that NaN components compare equal to NaN, so writing
// the same NaN twice is not a change.
func sameValue[T comparable](a, b T) bool {
	if a == b {
		return true
	}
	if a == a && b == b {
		return false
	}
	return cmp.Equal(a, b, cmpopts.EquateNaNs())
}
