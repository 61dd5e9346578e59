// internal/scrolling/constraints.go
package scrolling

import "math"

// AnchorEdges records which viewport edges a constrained layer is pinned to.
type AnchorEdges uint8

const (
	AnchorEdgeLeft AnchorEdges = 1 << iota
	AnchorEdgeRight
	AnchorEdgeTop
	AnchorEdgeBottom
)

// Has reports whether edge e is set.
func (a AnchorEdges) Has(e AnchorEdges) bool { return a&e != 0 }

// FixedPositionConstraints describe a position:fixed layer as it was at the last
// layout, enough to reposition it for any later viewport.
type FixedPositionConstraints struct {
	AlignmentOffset           FloatSize
	AnchorEdges               AnchorEdges
	ViewportRectAtLastLayout  FloatRect
	LayerPositionAtLastLayout FloatPoint
}

// LayerPositionForViewportRect returns where the layer belongs when the viewport is at r.
func (c FixedPositionConstraints) LayerPositionForViewportRect(r FloatRect) FloatPoint {
	var offset FloatSize
	switch {
	case c.AnchorEdges.Has(AnchorEdgeLeft):
		offset.Width = r.X - c.ViewportRectAtLastLayout.X
	case c.AnchorEdges.Has(AnchorEdgeRight):
		offset.Width = r.MaxX() - c.ViewportRectAtLastLayout.MaxX()
	}
	switch {
	case c.AnchorEdges.Has(AnchorEdgeTop):
		offset.Height = r.Y - c.ViewportRectAtLastLayout.Y
	case c.AnchorEdges.Has(AnchorEdgeBottom):
		offset.Height = r.MaxY() - c.ViewportRectAtLastLayout.MaxY()
	}
	return c.LayerPositionAtLastLayout.Add(offset)
}

// StickyPositionConstraints describe a position:sticky layer at the last layout.
type StickyPositionConstraints struct {
	AlignmentOffset              FloatSize
	AnchorEdges                  AnchorEdges
	LeftOffset                   float64
	RightOffset                  float64
	TopOffset                    float64
	BottomOffset                 float64
	ConstrainingRectAtLastLayout FloatRect
	ContainingBlockRect          FloatRect
	StickyBoxRect                FloatRect
	StickyOffsetAtLastLayout     FloatSize
	LayerPositionAtLastLayout    FloatPoint
}

// ComputeStickyOffset returns how far the sticky box moves when its scroller's
// visible area is constrainingRect. The box never leaves its containing block.
func (c StickyPositionConstraints) ComputeStickyOffset(constrainingRect FloatRect) FloatSize {
	box := c.StickyBoxRect

	if c.AnchorEdges.Has(AnchorEdgeRight) {
		rightLimit := constrainingRect.MaxX() - c.RightOffset
		rightDelta := math.Min(0, rightLimit-c.StickyBoxRect.MaxX())
		available := math.Min(0, c.ContainingBlockRect.X-c.StickyBoxRect.X)
		if rightDelta < available {
			rightDelta = available
		}
		box = box.Moved(rightDelta, 0)
	}
	if c.AnchorEdges.Has(AnchorEdgeLeft) {
		leftLimit := constrainingRect.X + c.LeftOffset
		leftDelta := math.Max(0, leftLimit-c.StickyBoxRect.X)
		available := math.Max(0, c.ContainingBlockRect.MaxX()-c.StickyBoxRect.MaxX())
		if leftDelta > available {
			leftDelta = available
		}
		box = box.Moved(leftDelta, 0)
	}
	if c.AnchorEdges.Has(AnchorEdgeBottom) {
		bottomLimit := constrainingRect.MaxY() - c.BottomOffset
		bottomDelta := math.Min(0, bottomLimit-c.StickyBoxRect.MaxY())
		available := math.Min(0, c.ContainingBlockRect.Y-c.StickyBoxRect.Y)
		if bottomDelta < available {
			bottomDelta = available
		}
		box = box.Moved(0, bottomDelta)
	}
	if c.AnchorEdges.Has(AnchorEdgeTop) {
		topLimit := constrainingRect.Y + c.TopOffset
		topDelta := math.Max(0, topLimit-c.StickyBoxRect.Y)
		available := math.Max(0, c.ContainingBlockRect.MaxY()-c.StickyBoxRect.MaxY())
		if topDelta > available {
			topDelta = available
		}
		box = box.Moved(0, topDelta)
	}

	return box.Location().Sub(c.StickyBoxRect.Location())
}

// LayerPositionForConstrainingRect returns the sticky layer's position for a
// given constraining rectangle.
func (c StickyPositionConstraints) LayerPositionForConstrainingRect(constrainingRect FloatRect) FloatPoint {
	offset := c.ComputeStickyOffset(constrainingRect)
	return c.LayerPositionAtLastLayout.Add(offset.Sub(c.StickyOffsetAtLastLayout))
}

// AbsolutePositionConstraints describe a positioned node relative to its layer's
// position at the last layout.
type AbsolutePositionConstraints struct {
	AlignmentOffset           FloatSize
	LayerPositionAtLastLayout FloatPoint
}
