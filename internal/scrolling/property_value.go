// internal/scrolling/property_value.go
package scrolling

import (
	"fmt"
	"reflect"
)

// propertyTypes is the Go type each property is set with.
var propertyTypes = map[Property]reflect.Type{
	PropertyLayer:                                     reflect.TypeFor[LayerRepresentation](),
	PropertyScrollableAreaSize:                        reflect.TypeFor[FloatSize](),
	PropertyTotalContentsSize:                         reflect.TypeFor[FloatSize](),
	PropertyReachableContentsSize:                     reflect.TypeFor[FloatSize](),
	PropertyScrollPosition:                            reflect.TypeFor[FloatPoint](),
	PropertyScrollOrigin:                              reflect.TypeFor[FloatPoint](),
	PropertyScrollableAreaParams:                      reflect.TypeFor[ScrollableAreaParameters](),
	PropertyRequestedScrollPosition:                   reflect.TypeFor[RequestedScrollData](),
	PropertySnapOffsets:                               reflect.TypeFor[SnapOffsets](),
	PropertyScrollContainerLayer:                      reflect.TypeFor[LayerRepresentation](),
	PropertyScrolledContentsLayer:                     reflect.TypeFor[LayerRepresentation](),
	PropertyHorizontalScrollbarLayer:                  reflect.TypeFor[LayerRepresentation](),
	PropertyVerticalScrollbarLayer:                    reflect.TypeFor[LayerRepresentation](),
	PropertyFrameScaleFactor:                          reflect.TypeFor[float64](),
	PropertySynchronousScrollingReasons:               reflect.TypeFor[SynchronousScrollingReasons](),
	PropertyHeaderHeight:                              reflect.TypeFor[int](),
	PropertyFooterHeight:                              reflect.TypeFor[int](),
	PropertyFixedElementsLayoutRelativeToFrame:        reflect.TypeFor[bool](),
	PropertyLayoutViewport:                            reflect.TypeFor[FloatRect](),
	PropertyMinLayoutViewportOrigin:                   reflect.TypeFor[FloatPoint](),
	PropertyMaxLayoutViewportOrigin:                   reflect.TypeFor[FloatPoint](),
	PropertyObscuredContentInsets:                     reflect.TypeFor[BoxExtent](),
	PropertyVisualViewportIsSmallerThanLayoutViewport: reflect.TypeFor[bool](),
	PropertyCounterScrollingLayer:                     reflect.TypeFor[LayerRepresentation](),
	PropertyInsetClipLayer:                            reflect.TypeFor[LayerRepresentation](),
	PropertyContentShadowLayer:                        reflect.TypeFor[LayerRepresentation](),
	PropertyRootContentsLayer:                         reflect.TypeFor[LayerRepresentation](),
	PropertyLayerPosition:                             reflect.TypeFor[FloatPoint](),
	PropertyRelatedOverflowScrollingNodes:             reflect.TypeFor[[]NodeID](),
	PropertyLayoutConstraints:                         reflect.TypeFor[AbsolutePositionConstraints](),
}

// SnapOffsets is the value of PropertySnapOffsets.
type SnapOffsets struct {
	Horizontal []float64 `json:"horizontal,omitempty" yaml:"horizontal"`
	Vertical   []float64 `json:"vertical,omitempty" yaml:"vertical"`
}

// PropertyType returns the Go type SetProperty expects for prop on a node of type
// t. Viewport constraints depend on the node type, so it is part of the lookup.
func PropertyType(t NodeType, prop Property) (reflect.Type, bool) {
	if !AllProperties(t).Has(prop) || prop.Count() != 1 {
		return nil, false
	}
	if prop == PropertyViewportConstraints {
		if t == StickyPosition {
			return reflect.TypeFor[StickyPositionConstraints](), true
		}
		return reflect.TypeFor[FixedPositionConstraints](), true
	}
	typ, ok := propertyTypes[prop]
	return typ, ok
}

// SetProperty sets a single property from a dynamically typed value. It panics if
// prop is not supported by the node's type or value has the wrong type; both
// indicate a bug in the caller.
func (n *StateNode) SetProperty(prop Property, value any) {
	typ, ok := PropertyType(n.nodeType, prop)
	if !ok {
		panic(fmt.Sprintf("scrolling: property %s is not valid for %s node %d", prop, n.nodeType, n.id))
	}
	if value == nil || reflect.TypeOf(value) != typ {
		panic(fmt.Sprintf("scrolling: property %s wants %s, got %T", prop, typ, value))
	}

	switch prop {
	case PropertyLayer:
		n.SetLayer(value.(LayerRepresentation))
	case PropertyScrollableAreaSize:
		n.SetScrollableAreaSize(value.(FloatSize))
	case PropertyTotalContentsSize:
		n.SetTotalContentsSize(value.(FloatSize))
	case PropertyReachableContentsSize:
		n.SetReachableContentsSize(value.(FloatSize))
	case PropertyScrollPosition:
		n.SetScrollPosition(value.(FloatPoint))
	case PropertyScrollOrigin:
		n.SetScrollOrigin(value.(FloatPoint))
	case PropertyScrollableAreaParams:
		n.SetScrollableAreaParameters(value.(ScrollableAreaParameters))
	case PropertyRequestedScrollPosition:
		n.SetRequestedScrollData(value.(RequestedScrollData))
	case PropertySnapOffsets:
		v := value.(SnapOffsets)
		n.SetSnapOffsets(v.Horizontal, v.Vertical)
	case PropertyScrollContainerLayer:
		n.SetScrollContainerLayer(value.(LayerRepresentation))
	case PropertyScrolledContentsLayer:
		n.SetScrolledContentsLayer(value.(LayerRepresentation))
	case PropertyHorizontalScrollbarLayer:
		n.SetHorizontalScrollbarLayer(value.(LayerRepresentation))
	case PropertyVerticalScrollbarLayer:
		n.SetVerticalScrollbarLayer(value.(LayerRepresentation))
	case PropertyFrameScaleFactor:
		n.SetFrameScaleFactor(value.(float64))
	case PropertySynchronousScrollingReasons:
		n.SetSynchronousScrollingReasons(value.(SynchronousScrollingReasons))
	case PropertyHeaderHeight:
		n.SetHeaderHeight(value.(int))
	case PropertyFooterHeight:
		n.SetFooterHeight(value.(int))
	case PropertyFixedElementsLayoutRelativeToFrame:
		n.SetFixedElementsLayoutRelativeToFrame(value.(bool))
	case PropertyLayoutViewport:
		n.SetLayoutViewport(value.(FloatRect))
	case PropertyMinLayoutViewportOrigin:
		n.SetMinLayoutViewportOrigin(value.(FloatPoint))
	case PropertyMaxLayoutViewportOrigin:
		n.SetMaxLayoutViewportOrigin(value.(FloatPoint))
	case PropertyObscuredContentInsets:
		n.SetObscuredContentInsets(value.(BoxExtent))
	case PropertyVisualViewportIsSmallerThanLayoutViewport:
		n.SetVisualViewportIsSmallerThanLayoutViewport(value.(bool))
	case PropertyCounterScrollingLayer:
		n.SetCounterScrollingLayer(value.(LayerRepresentation))
	case PropertyInsetClipLayer:
		n.SetInsetClipLayer(value.(LayerRepresentation))
	case PropertyContentShadowLayer:
		n.SetContentShadowLayer(value.(LayerRepresentation))
	case PropertyRootContentsLayer:
		n.SetRootContentsLayer(value.(LayerRepresentation))
	case PropertyViewportConstraints:
		if n.nodeType == StickyPosition {
			n.SetStickyConstraints(value.(StickyPositionConstraints))
		} else {
			n.SetFixedConstraints(value.(FixedPositionConstraints))
		}
	case PropertyLayerPosition:
		n.SetLayerPosition(value.(FloatPoint))
	case PropertyRelatedOverflowScrollingNodes:
		n.SetRelatedOverflowScrollingNodes(value.([]NodeID))
	case PropertyLayoutConstraints:
		n.SetLayoutConstraints(value.(AbsolutePositionConstraints))
	}
}

// PropertyValue returns the current value of a single property, typed as
// PropertyType reports. Slices are copied.
func (n *StateNode) PropertyValue(prop Property) (any, bool) {
	if _, ok := PropertyType(n.nodeType, prop); !ok {
		return nil, false
	}
	switch prop {
	case PropertyLayer:
		return n.layer, true
	case PropertyViewportConstraints:
		if n.nodeType == StickyPosition {
			return n.sticky().Constraints, true
		}
		return n.fixed().Constraints, true
	case PropertyLayerPosition:
		return *n.layerPositionField(), true
	case PropertyRelatedOverflowScrollingNodes:
		return append([]NodeID(nil), n.positioned().RelatedOverflowScrollingNodes...), true
	case PropertyLayoutConstraints:
		return n.positioned().Constraints, true
	}

	if frameOnlyProperties.Has(prop) {
		f := n.frame()
		switch prop {
		case PropertyFrameScaleFactor:
			return f.FrameScaleFactor, true
		case PropertySynchronousScrollingReasons:
			return f.SynchronousScrollingReasons, true
		case PropertyHeaderHeight:
			return f.HeaderHeight, true
		case PropertyFooterHeight:
			return f.FooterHeight, true
		case PropertyFixedElementsLayoutRelativeToFrame:
			return f.FixedElementsLayoutRelativeToFrame, true
		case PropertyLayoutViewport:
			return f.LayoutViewport, true
		case PropertyMinLayoutViewportOrigin:
			return f.MinLayoutViewportOrigin, true
		case PropertyMaxLayoutViewportOrigin:
			return f.MaxLayoutViewportOrigin, true
		case PropertyObscuredContentInsets:
			return f.ObscuredContentInsets, true
		case PropertyVisualViewportIsSmallerThanLayoutViewport:
			return f.VisualViewportIsSmallerThanLayoutViewport, true
		case PropertyCounterScrollingLayer:
			return f.CounterScrollingLayer, true
		case PropertyInsetClipLayer:
			return f.InsetClipLayer, true
		case PropertyContentShadowLayer:
			return f.ContentShadowLayer, true
		case PropertyRootContentsLayer:
			return f.RootContentsLayer, true
		}
	}

	s := n.scrolling()
	switch prop {
	case PropertyScrollableAreaSize:
		return s.ScrollableAreaSize, true
	case PropertyTotalContentsSize:
		return s.TotalContentsSize, true
	case PropertyReachableContentsSize:
		return s.ReachableContentsSize, true
	case PropertyScrollPosition:
		return s.ScrollPosition, true
	case PropertyScrollOrigin:
		return s.ScrollOrigin, true
	case PropertyScrollableAreaParams:
		return s.ScrollableAreaParams, true
	case PropertyRequestedScrollPosition:
		return s.RequestedScroll, true
	case PropertySnapOffsets:
		return SnapOffsets{
			Horizontal: append([]float64(nil), s.HorizontalSnapOffsets...),
			Vertical:   append([]float64(nil), s.VerticalSnapOffsets...),
		}, true
	case PropertyScrollContainerLayer:
		return s.ScrollContainerLayer, true
	case PropertyScrolledContentsLayer:
		return s.ScrolledContentsLayer, true
	case PropertyHorizontalScrollbarLayer:
		return s.HorizontalScrollbarLayer, true
	case PropertyVerticalScrollbarLayer:
		return s.VerticalScrollbarLayer, true
	}
	return nil, false
}
