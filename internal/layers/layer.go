// internal/layers/layer.go
package layers

import (
	"sync"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// Layer is a compositing layer owned by an Owner. Positions are pushed by the
// main context during reconciliation and may be read from any goroutine.
type Layer struct {
	id   scrolling.LayerID
	name string

	mu          sync.Mutex
	position    scrolling.FloatPoint
	approximate bool
	updates     int
}

var _ scrolling.GraphicsLayer = (*Layer)(nil)

func newLayer(id scrolling.LayerID, name string) *Layer {
	return &Layer{id: id, name: name}
}

// ID returns the platform layer ID.
func (l *Layer) ID() scrolling.LayerID { return l.id }

// Name returns the element key and role the layer was created for.
func (l *Layer) Name() string { return l.name }

// Position returns the last pushed position.
func (l *Layer) Position() scrolling.FloatPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

// IsApproximate reports whether the last position was an approximation.
func (l *Layer) IsApproximate() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.approximate
}

// Updates counts position pushes.
func (l *Layer) Updates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates
}

func (l *Layer) SetPosition(p scrolling.FloatPoint)            { l.push(p, false) }
func (l *Layer) SetApproximatePosition(p scrolling.FloatPoint) { l.push(p, true) }

// SyncPosition records a position the scrolling context already applied. It does
// not count as an update.
func (l *Layer) SyncPosition(p scrolling.FloatPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
	l.approximate = false
}

func (l *Layer) push(p scrolling.FloatPoint, approximate bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
	l.approximate = approximate
	l.updates++
}
