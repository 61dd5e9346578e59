// internal/scrolling/layer.go
package scrolling

import (
	"fmt"
	"strings"
)

// LayerID names a platform layer independently of any in-memory object.
type LayerID uint64

// LayerRepresentationType is the style of handle a node uses for its layers.
type LayerRepresentationType uint8

const (
	// EmptyRepresentation means no layer.
	EmptyRepresentation LayerRepresentationType = iota
	// GraphicsLayerRepresentation carries the compositing layer object itself.
	GraphicsLayerRepresentation
	// PlatformLayerRepresentation carries the platform layer object.
	PlatformLayerRepresentation
	// PlatformLayerIDRepresentation carries only the layer ID; objects are resolved
	// after the tree is rehydrated.
	PlatformLayerIDRepresentation
)

var representationNames = [...]string{
	EmptyRepresentation:           "empty",
	GraphicsLayerRepresentation:   "graphics-layer",
	PlatformLayerRepresentation:   "platform-layer",
	PlatformLayerIDRepresentation: "platform-layer-id",
}

func (t LayerRepresentationType) String() string {
	if int(t) < len(representationNames) {
		return representationNames[t]
	}
	return fmt.Sprintf("representation(%d)", uint8(t))
}

// ParseLayerRepresentationType parses the names used in config files.
func ParseLayerRepresentationType(s string) (LayerRepresentationType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range representationNames {
		if name == s {
			return LayerRepresentationType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown layer representation %q", s)
}

// GraphicsLayer is the compositing layer a node is realized with. Implementations
// belong to the compositing layer owner and must be pointer types.
type GraphicsLayer interface {
	ID() LayerID
	Position() FloatPoint
	SetPosition(FloatPoint)
	SetApproximatePosition(FloatPoint)
	SyncPosition(FloatPoint)
}

// LayerResolver finds the layer object for an ID after rehydration.
type LayerResolver interface {
	LayerForID(LayerID) (GraphicsLayer, bool)
}

// LayerRepresentation is a handle to a layer in one of several styles.
type LayerRepresentation struct {
	kind     LayerRepresentationType
	id       LayerID
	graphics GraphicsLayer
}

// LayerFromGraphics wraps a graphics layer. A nil layer yields an empty handle.
func LayerFromGraphics(l GraphicsLayer) LayerRepresentation {
	if l == nil {
		return LayerRepresentation{}
	}
	return LayerRepresentation{kind: GraphicsLayerRepresentation, id: l.ID(), graphics: l}
}

// LayerFromID builds an ID-only handle.
func LayerFromID(id LayerID) LayerRepresentation {
	if id == 0 {
		return LayerRepresentation{}
	}
	return LayerRepresentation{kind: PlatformLayerIDRepresentation, id: id}
}

// Type returns the handle style.
func (l LayerRepresentation) Type() LayerRepresentationType { return l.kind }

// ID returns the layer ID, zero for an empty handle.
func (l LayerRepresentation) ID() LayerID { return l.id }

// Graphics returns the layer object, if the handle carries one.
func (l LayerRepresentation) Graphics() GraphicsLayer { return l.graphics }

// IsEmpty reports whether the handle names no layer.
func (l LayerRepresentation) IsEmpty() bool { return l.kind == EmptyRepresentation }

// Equal compares handles by style and layer ID.
func (l LayerRepresentation) Equal(o LayerRepresentation) bool {
	return l.kind == o.kind && l.id == o.id
}

// ToRepresentation converts the handle for a tree that prefers style t. Object
// carrying styles can always degrade to an ID; an ID cannot be upgraded without a
// LayerResolver.
func (l LayerRepresentation) ToRepresentation(t LayerRepresentationType) LayerRepresentation {
	if l.kind == EmptyRepresentation || l.kind == t {
		return l
	}
	switch t {
	case PlatformLayerIDRepresentation:
		return LayerRepresentation{kind: PlatformLayerIDRepresentation, id: l.id}
	case GraphicsLayerRepresentation, PlatformLayerRepresentation:
		if l.graphics != nil {
			return LayerRepresentation{kind: t, id: l.id, graphics: l.graphics}
		}
	}
	return l
}

// resolve re-binds an ID-only handle to its object.
func (l LayerRepresentation) resolve(r LayerResolver) (LayerRepresentation, bool) {
	if l.kind != PlatformLayerIDRepresentation {
		return l, true
	}
	layer, ok := r.LayerForID(l.id)
	if !ok {
		return l, false
	}
	return LayerRepresentation{kind: GraphicsLayerRepresentation, id: l.id, graphics: layer}, true
}

func (l LayerRepresentation) String() string {
	if l.kind == EmptyRepresentation {
		return "none"
	}
	return fmt.Sprintf("%s#%d", l.kind, l.id)
}
