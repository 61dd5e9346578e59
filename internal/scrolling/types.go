// internal/scrolling/types.go
package scrolling

import (
	"fmt"
	"strings"
)

// NodeType is the closed set of scrolling state node kinds.
type NodeType uint8

const (
	// FrameScrolling is the scrolling node of a frame; the only valid tree root type.
	FrameScrolling NodeType = iota
	// OverflowScrolling is an overflow:scroll/auto container.
	OverflowScrolling
	// FixedPosition is a position:fixed layer.
	FixedPosition
	// StickyPosition is a position:sticky layer.
	StickyPosition
	// Positioned is an absolutely positioned layer that moves with a scroller it is
	// not a descendant of.
	Positioned
	// Plain is a structural node carrying only a layer.
	Plain
)

var nodeTypeNames = [...]string{
	FrameScrolling:    "frame-scrolling",
	OverflowScrolling: "overflow-scrolling",
	FixedPosition:     "fixed-position",
	StickyPosition:    "sticky-position",
	Positioned:        "positioned",
	Plain:             "plain",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("node-type(%d)", uint8(t))
}

// IsScrolling reports whether the type participates in scroll offset computation.
func (t NodeType) IsScrolling() bool {
	return t == FrameScrolling || t == OverflowScrolling
}

// IsViewportConstrained reports whether the type holds viewport constraints.
func (t NodeType) IsViewportConstrained() bool {
	return t == FixedPosition || t == StickyPosition
}

func (t NodeType) valid() bool { return int(t) < len(nodeTypeNames) }

// ParseNodeType maps a kebab-case name back to its NodeType.
func ParseNodeType(s string) (NodeType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range nodeTypeNames {
		if name == s {
			return NodeType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
}

// ScrollingLayerPositionAction tells a viewport constrained node how to push a
// recomputed position down to its layer.
type ScrollingLayerPositionAction uint8

const (
	// LayerPositionSet stores the position and marks the node changed.
	LayerPositionSet ScrollingLayerPositionAction = iota
	// LayerPositionSetApproximate stores an approximate position and marks the node changed.
	LayerPositionSetApproximate
	// LayerPositionSync records a position the scrolling side already applied.
	LayerPositionSync
)

func (a ScrollingLayerPositionAction) String() string {
	switch a {
	case LayerPositionSet:
		return "set"
	case LayerPositionSetApproximate:
		return "set-approximate"
	case LayerPositionSync:
		return "sync"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// ParseLayerPositionAction parses "set", "set-approximate" or "sync".
func ParseLayerPositionAction(s string) (ScrollingLayerPositionAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "set":
		return LayerPositionSet, nil
	case "set-approximate":
		return LayerPositionSetApproximate, nil
	case "sync":
		return LayerPositionSync, nil
	}
	return 0, fmt.Errorf("unknown layer position action %q", s)
}

// SynchronousScrollingReasons explains why a frame must scroll on the main context.
type SynchronousScrollingReasons uint8

const (
	ForcedOnMainThread SynchronousScrollingReasons = 1 << iota
	HasViewportConstrainedObjectsWithoutSupportingFixedLayers
	HasNonLayerViewportConstrainedObjects
	IsImageDocument
	HasSlowRepaintObjects
)

// ScrollElasticity controls rubber-banding on an axis.
type ScrollElasticity uint8

const (
	ElasticityAutomatic ScrollElasticity = iota
	ElasticityNone
	ElasticityAllowed
)

// ScrollbarMode is the overflow behavior of an axis scrollbar.
type ScrollbarMode uint8

const (
	ScrollbarAuto ScrollbarMode = iota
	ScrollbarAlwaysOff
	ScrollbarAlwaysOn
)

// OverscrollBehavior mirrors the CSS overscroll-behavior values.
type OverscrollBehavior uint8

const (
	OverscrollAuto OverscrollBehavior = iota
	OverscrollContain
	OverscrollNone
)

// ScrollableAreaParameters groups the per-axis scrolling policies of a scroller.
type ScrollableAreaParameters struct {
	HorizontalScrollElasticity    ScrollElasticity
	VerticalScrollElasticity      ScrollElasticity
	HorizontalScrollbarMode       ScrollbarMode
	VerticalScrollbarMode         ScrollbarMode
	HorizontalOverscrollBehavior  OverscrollBehavior
	VerticalOverscrollBehavior    OverscrollBehavior
	HasEnabledHorizontalScrollbar bool
	HasEnabledVerticalScrollbar   bool
}

// ScrollRequestType distinguishes absolute and relative programmatic scrolls.
type ScrollRequestType uint8

const (
	ScrollRequestPosition ScrollRequestType = iota
	ScrollRequestDelta
	ScrollRequestCancelAnimated
)

// RequestedScrollData is a programmatic scroll waiting to be applied by the scrolling side.
type RequestedScrollData struct {
	Type           ScrollRequestType
	Position       FloatPoint
	Delta          FloatSize
	Animated       bool
	ScrollIsAnchor bool
}
