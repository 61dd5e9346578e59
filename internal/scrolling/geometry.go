// internal/scrolling/geometry.go
package scrolling

import "fmt"

// -- Geometry primitives --

// FloatPoint is a position in CSS pixels.
type FloatPoint struct {
	X, Y float64
}

// Add returns the point moved by the size.
func (p FloatPoint) Add(s FloatSize) FloatPoint {
	return FloatPoint{X: p.X + s.Width, Y: p.Y + s.Height}
}

// Sub returns the offset from q to p.
func (p FloatPoint) Sub(q FloatPoint) FloatSize {
	return FloatSize{Width: p.X - q.X, Height: p.Y - q.Y}
}

func (p FloatPoint) String() string {
	return fmt.Sprintf("(%g,%g)", p.X, p.Y)
}

// FloatSize is a width/height pair, also used as an offset.
type FloatSize struct {
	Width, Height float64
}

// Sub returns s - o.
func (s FloatSize) Sub(o FloatSize) FloatSize {
	return FloatSize{Width: s.Width - o.Width, Height: s.Height - o.Height}
}

// IsZero reports whether both components are zero.
func (s FloatSize) IsZero() bool { return s.Width == 0 && s.Height == 0 }

func (s FloatSize) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// FloatRect is an axis aligned rectangle.
type FloatRect struct {
	X, Y, Width, Height float64
}

// Location returns the top-left corner.
func (r FloatRect) Location() FloatPoint { return FloatPoint{X: r.X, Y: r.Y} }

// Size returns the rectangle's size.
func (r FloatRect) Size() FloatSize { return FloatSize{Width: r.Width, Height: r.Height} }

// MaxX returns the right edge.
func (r FloatRect) MaxX() float64 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r FloatRect) MaxY() float64 { return r.Y + r.Height }

// Moved returns the rectangle translated by (dx, dy).
func (r FloatRect) Moved(dx, dy float64) FloatRect {
	r.X += dx
	r.Y += dy
	return r
}

// IsEmpty reports whether the rectangle has no area.
func (r FloatRect) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r FloatRect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.Width, r.Height)
}

// BoxExtent holds per-edge insets, in the same order the layout engine uses.
type BoxExtent struct {
	Top, Right, Bottom, Left float64
}

func (e BoxExtent) String() string {
	return fmt.Sprintf("(top %g, right %g, bottom %g, left %g)", e.Top, e.Right, e.Bottom, e.Left)
}
