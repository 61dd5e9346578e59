// internal/scrolling/properties.go
package scrolling

import (
	"fmt"
	"math/bits"
	"strings"
)

// Property is a single bit in a node's changed properties mask. Which properties a
// node accepts is fixed by its NodeType.
type Property uint64

const (
	PropertyLayer Property = 1 << iota

	// Scrolling nodes (frame and overflow).
	PropertyScrollableAreaSize
	PropertyTotalContentsSize
	PropertyReachableContentsSize
	PropertyScrollPosition
	PropertyScrollOrigin
	PropertyScrollableAreaParams
	PropertyRequestedScrollPosition
	PropertySnapOffsets
	PropertyScrollContainerLayer
	PropertyScrolledContentsLayer
	PropertyHorizontalScrollbarLayer
	PropertyVerticalScrollbarLayer

	// Frame scrolling nodes.
	PropertyFrameScaleFactor
	PropertySynchronousScrollingReasons
	PropertyHeaderHeight
	PropertyFooterHeight
	PropertyFixedElementsLayoutRelativeToFrame
	PropertyLayoutViewport
	PropertyMinLayoutViewportOrigin
	PropertyMaxLayoutViewportOrigin
	PropertyObscuredContentInsets
	PropertyVisualViewportIsSmallerThanLayoutViewport
	PropertyCounterScrollingLayer
	PropertyInsetClipLayer
	PropertyContentShadowLayer
	PropertyRootContentsLayer

	// Fixed and sticky nodes.
	PropertyViewportConstraints
	PropertyLayerPosition

	// Positioned nodes.
	PropertyRelatedOverflowScrollingNodes
	PropertyLayoutConstraints

	propertySentinel
)

// NoProperties is the empty mask.
const NoProperties Property = 0

var propertyNames = map[Property]string{
	PropertyLayer:                                     "layer",
	PropertyScrollableAreaSize:                        "scrollable-area-size",
	PropertyTotalContentsSize:                         "total-contents-size",
	PropertyReachableContentsSize:                     "reachable-contents-size",
	PropertyScrollPosition:                            "scroll-position",
	PropertyScrollOrigin:                              "scroll-origin",
	PropertyScrollableAreaParams:                      "scrollable-area-params",
	PropertyRequestedScrollPosition:                   "requested-scroll-position",
	PropertySnapOffsets:                               "snap-offsets",
	PropertyScrollContainerLayer:                      "scroll-container-layer",
	PropertyScrolledContentsLayer:                     "scrolled-contents-layer",
	PropertyHorizontalScrollbarLayer:                  "horizontal-scrollbar-layer",
	PropertyVerticalScrollbarLayer:                    "vertical-scrollbar-layer",
	PropertyFrameScaleFactor:                          "frame-scale-factor",
	PropertySynchronousScrollingReasons:               "synchronous-scrolling-reasons",
	PropertyHeaderHeight:                              "header-height",
	PropertyFooterHeight:                              "footer-height",
	PropertyFixedElementsLayoutRelativeToFrame:        "fixed-elements-layout-relative-to-frame",
	PropertyLayoutViewport:                            "layout-viewport",
	PropertyMinLayoutViewportOrigin:                   "min-layout-viewport-origin",
	PropertyMaxLayoutViewportOrigin:                   "max-layout-viewport-origin",
	PropertyObscuredContentInsets:                     "obscured-content-insets",
	PropertyVisualViewportIsSmallerThanLayoutViewport: "visual-viewport-is-smaller-than-layout-viewport",
	PropertyCounterScrollingLayer:                     "counter-scrolling-layer",
	PropertyInsetClipLayer:                            "inset-clip-layer",
	PropertyContentShadowLayer:                        "content-shadow-layer",
	PropertyRootContentsLayer:                         "root-contents-layer",
	PropertyViewportConstraints:                       "viewport-constraints",
	PropertyLayerPosition:                             "layer-position",
	PropertyRelatedOverflowScrollingNodes:             "related-overflow-scrolling-nodes",
	PropertyLayoutConstraints:                         "layout-constraints",
}

const (
	scrollingProperties = PropertyScrollableAreaSize | PropertyTotalContentsSize |
		PropertyReachableContentsSize | PropertyScrollPosition | PropertyScrollOrigin |
		PropertyScrollableAreaParams | PropertyRequestedScrollPosition | PropertySnapOffsets |
		PropertyScrollContainerLayer | PropertyScrolledContentsLayer |
		PropertyHorizontalScrollbarLayer | PropertyVerticalScrollbarLayer

	frameOnlyProperties = PropertyFrameScaleFactor | PropertySynchronousScrollingReasons |
		PropertyHeaderHeight | PropertyFooterHeight | PropertyFixedElementsLayoutRelativeToFrame |
		PropertyLayoutViewport | PropertyMinLayoutViewportOrigin | PropertyMaxLayoutViewportOrigin |
		PropertyObscuredContentInsets | PropertyVisualViewportIsSmallerThanLayoutViewport |
		PropertyCounterScrollingLayer | PropertyInsetClipLayer | PropertyContentShadowLayer |
		PropertyRootContentsLayer

	viewportConstrainedProperties = PropertyViewportConstraints | PropertyLayerPosition

	positionedProperties = PropertyRelatedOverflowScrollingNodes | PropertyLayoutConstraints
)

// LayerProperties holds every property whose value is a LayerRepresentation.
const LayerProperties = PropertyLayer |
	PropertyScrollContainerLayer | PropertyScrolledContentsLayer |
	PropertyHorizontalScrollbarLayer | PropertyVerticalScrollbarLayer |
	PropertyCounterScrollingLayer | PropertyInsetClipLayer |
	PropertyContentShadowLayer | PropertyRootContentsLayer

// AllProperties returns every property the node type supports.
func AllProperties(t NodeType) Property {
	switch t {
	case FrameScrolling:
		return PropertyLayer | scrollingProperties | frameOnlyProperties
	case OverflowScrolling:
		return PropertyLayer | scrollingProperties
	case FixedPosition, StickyPosition:
		return PropertyLayer | viewportConstrainedProperties
	case Positioned:
		return PropertyLayer | positionedProperties
	case Plain:
		return PropertyLayer
	}
	return NoProperties
}

// Has reports whether every bit of o is set in p.
func (p Property) Has(o Property) bool { return o != 0 && p&o == o }

// Count returns the number of bits set.
func (p Property) Count() int { return bits.OnesCount64(uint64(p)) }

// Each calls fn for every single-bit property in the mask, lowest bit first.
func (p Property) Each(fn func(Property)) {
	for m := uint64(p); m != 0; m &= m - 1 {
		fn(Property(m & -m))
	}
}

func (p Property) String() string {
	if p == NoProperties {
		return "none"
	}
	var names []string
	p.Each(func(bit Property) {
		if name, ok := propertyNames[bit]; ok {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("bit(%d)", bits.TrailingZeros64(uint64(bit))))
		}
	})
	return strings.Join(names, "|")
}

// ParseProperty maps a kebab-case property name to its bit.
func ParseProperty(s string) (Property, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for bit, name := range propertyNames {
		if name == s {
			return bit, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProperty, s)
}
