// internal/scrolling/node_positioned.go
package scrolling

import "fmt"

// FixedNodeState holds the properties of a position:fixed node.
type FixedNodeState struct {
	Constraints   FixedPositionConstraints `json:"constraints"`
	LayerPosition FloatPoint               `json:"layerPosition"`
}

func (s *FixedNodeState) clone() nodeState {
	c := *s
	return &c
}

func (s *FixedNodeState) eachLayer(func(*LayerRepresentation)) {}

// StickyNodeState holds the properties of a position:sticky node.
type StickyNodeState struct {
	Constraints   StickyPositionConstraints `json:"constraints"`
	LayerPosition FloatPoint                `json:"layerPosition"`
}

func (s *StickyNodeState) clone() nodeState {
	c := *s
	return &c
}

func (s *StickyNodeState) eachLayer(func(*LayerRepresentation)) {}

// PositionedNodeState holds the properties of an absolutely positioned node that
// tracks scrollers outside its own ancestry.
type PositionedNodeState struct {
	RelatedOverflowScrollingNodes []NodeID                    `json:"relatedOverflowScrollingNodes,omitempty"`
	Constraints                   AbsolutePositionConstraints `json:"constraints"`
}

func (s *PositionedNodeState) clone() nodeState {
	c := *s
	c.RelatedOverflowScrollingNodes = append([]NodeID(nil), s.RelatedOverflowScrollingNodes...)
	return &c
}

func (s *PositionedNodeState) eachLayer(func(*LayerRepresentation)) {}

// -- Accessors --

// FixedState returns the fixed node properties. It panics for other node types.
func (n *StateNode) FixedState() FixedNodeState {
	return *n.fixed()
}

// StickyState returns the sticky node properties. It panics for other node types.
func (n *StateNode) StickyState() StickyNodeState {
	return *n.sticky()
}

// PositionedState returns a copy of the positioned node properties. It panics for
// other node types.
func (n *StateNode) PositionedState() PositionedNodeState {
	return *(n.positioned().clone().(*PositionedNodeState))
}

// LayerPosition returns the cached layer position of a fixed or sticky node.
func (n *StateNode) LayerPosition() FloatPoint {
	switch s := n.state.(type) {
	case *FixedNodeState:
		return s.LayerPosition
	case *StickyNodeState:
		return s.LayerPosition
	}
	panic(fmt.Sprintf("scrolling: %s has no layer position", n))
}

func (n *StateNode) fixed() *FixedNodeState {
	if s, ok := n.state.(*FixedNodeState); ok {
		return s
	}
	panic(fmt.Sprintf("scrolling: %s has no fixed state", n))
}

func (n *StateNode) sticky() *StickyNodeState {
	if s, ok := n.state.(*StickyNodeState); ok {
		return s
	}
	panic(fmt.Sprintf("scrolling: %s has no sticky state", n))
}

func (n *StateNode) positioned() *PositionedNodeState {
	if s, ok := n.state.(*PositionedNodeState); ok {
		return s
	}
	panic(fmt.Sprintf("scrolling: %s has no positioned state", n))
}

func (n *StateNode) layerPositionField() *FloatPoint {
	switch s := n.state.(type) {
	case *FixedNodeState:
		return &s.LayerPosition
	case *StickyNodeState:
		return &s.LayerPosition
	}
	panic(fmt.Sprintf("scrolling: %s has no layer position", n))
}

// -- Setters --

// SetFixedConstraints replaces the constraints of a fixed node.
func (n *StateNode) SetFixedConstraints(c FixedPositionConstraints) {
	n.mustSupport(PropertyViewportConstraints)
	setValue(n, PropertyViewportConstraints, &n.fixed().Constraints, c)
}

// SetStickyConstraints replaces the constraints of a sticky node.
func (n *StateNode) SetStickyConstraints(c StickyPositionConstraints) {
	n.mustSupport(PropertyViewportConstraints)
	setValue(n, PropertyViewportConstraints, &n.sticky().Constraints, c)
}

// SetLayerPosition stores a new cached layer position for a fixed or sticky node.
func (n *StateNode) SetLayerPosition(p FloatPoint) {
	n.mustSupport(PropertyLayerPosition)
	setValue(n, PropertyLayerPosition, n.layerPositionField(), p)
}

func (n *StateNode) SetRelatedOverflowScrollingNodes(ids []NodeID) {
	n.mustSupport(PropertyRelatedOverflowScrollingNodes)
	setSliceValue(n, PropertyRelatedOverflowScrollingNodes, &n.positioned().RelatedOverflowScrollingNodes, ids)
}

func (n *StateNode) SetLayoutConstraints(c AbsolutePositionConstraints) {
	n.mustSupport(PropertyLayoutConstraints)
	setValue(n, PropertyLayoutConstraints, &n.positioned().Constraints, c)
}

// -- Reconciliation --

// ReconcileLayerPosition recomputes the layer position of a fixed or sticky node
// for viewport and pushes it to the node's graphics layer. The node is marked
// changed only when the position differs and action is not LayerPositionSync.
// It reports whether the cached position moved. Other node types are ignored.
func (n *StateNode) ReconcileLayerPosition(viewport FloatRect, action ScrollingLayerPositionAction) bool {
	var pos FloatPoint
	switch s := n.state.(type) {
	case *FixedNodeState:
		pos = s.Constraints.LayerPositionForViewportRect(viewport)
	case *StickyNodeState:
		pos = s.Constraints.LayerPositionForConstrainingRect(n.stickyConstrainingRect(viewport))
	default:
		return false
	}

	field := n.layerPositionField()
	if sameValue(*field, pos) {
		return false
	}
	if action == LayerPositionSync {
		*field = pos
	} else {
		n.SetLayerPosition(pos)
	}

	if g := n.layer.Graphics(); g != nil {
		switch action {
		case LayerPositionSet:
			g.SetPosition(pos)
		case LayerPositionSetApproximate:
			g.SetApproximatePosition(pos)
		case LayerPositionSync:
			g.SyncPosition(pos)
		}
	}
	return true
}

// stickyConstrainingRect is the visible rect of the scroller a sticky node sticks
// within: the viewport for frames, the scrolled area for overflow scrollers.
func (n *StateNode) stickyConstrainingRect(viewport FloatRect) FloatRect {
	for cur := n.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.nodeType {
		case FrameScrolling:
			return viewport
		case OverflowScrolling:
			c := n.sticky().Constraints.ConstrainingRectAtLastLayout
			pos := cur.scrolling().ScrollPosition
			return FloatRect{X: pos.X, Y: pos.Y, Width: c.Width, Height: c.Height}
		}
	}
	return viewport
}
