// internal/scrolling/node_scrolling.go
package scrolling

import "fmt"

// ScrollingNodeState holds the properties shared by frame and overflow scrolling nodes.
type ScrollingNodeState struct {
	ScrollableAreaSize       FloatSize                `json:"scrollableAreaSize"`
	TotalContentsSize        FloatSize                `json:"totalContentsSize"`
	ReachableContentsSize    FloatSize                `json:"reachableContentsSize"`
	ScrollPosition           FloatPoint               `json:"scrollPosition"`
	ScrollOrigin             FloatPoint               `json:"scrollOrigin"`
	ScrollableAreaParams     ScrollableAreaParameters `json:"scrollableAreaParams"`
	RequestedScroll          RequestedScrollData      `json:"requestedScroll"`
	HorizontalSnapOffsets    []float64                `json:"horizontalSnapOffsets,omitempty"`
	VerticalSnapOffsets      []float64                `json:"verticalSnapOffsets,omitempty"`
	ScrollContainerLayer     LayerRepresentation      `json:"scrollContainerLayer"`
	ScrolledContentsLayer    LayerRepresentation      `json:"scrolledContentsLayer"`
	HorizontalScrollbarLayer LayerRepresentation      `json:"horizontalScrollbarLayer"`
	VerticalScrollbarLayer   LayerRepresentation      `json:"verticalScrollbarLayer"`
}

func (s *ScrollingNodeState) clone() nodeState {
	c := s.copy()
	return &c
}

func (s *ScrollingNodeState) copy() ScrollingNodeState {
	c := *s
	c.HorizontalSnapOffsets = append([]float64(nil), s.HorizontalSnapOffsets...)
	c.VerticalSnapOffsets = append([]float64(nil), s.VerticalSnapOffsets...)
	return c
}

func (s *ScrollingNodeState) eachLayer(fn func(*LayerRepresentation)) {
	fn(&s.ScrollContainerLayer)
	fn(&s.ScrolledContentsLayer)
	fn(&s.HorizontalScrollbarLayer)
	fn(&s.VerticalScrollbarLayer)
}

// MaximumScrollPosition is the largest scroll position the contents allow.
func (s *ScrollingNodeState) MaximumScrollPosition() FloatPoint {
	return FloatPoint{
		X: max(0, s.TotalContentsSize.Width-s.ScrollableAreaSize.Width) - s.ScrollOrigin.X,
		Y: max(0, s.TotalContentsSize.Height-s.ScrollableAreaSize.Height) - s.ScrollOrigin.Y,
	}
}

// FrameNodeState holds the properties of a frame scrolling node.
type FrameNodeState struct {
	ScrollingNodeState

	FrameScaleFactor                          float64                     `json:"frameScaleFactor"`
	SynchronousScrollingReasons               SynchronousScrollingReasons `json:"synchronousScrollingReasons"`
	HeaderHeight                              int                         `json:"headerHeight"`
	FooterHeight                              int                         `json:"footerHeight"`
	FixedElementsLayoutRelativeToFrame        bool                        `json:"fixedElementsLayoutRelativeToFrame"`
	LayoutViewport                            FloatRect                   `json:"layoutViewport"`
	MinLayoutViewportOrigin                   FloatPoint                  `json:"minLayoutViewportOrigin"`
	MaxLayoutViewportOrigin                   FloatPoint                  `json:"maxLayoutViewportOrigin"`
	ObscuredContentInsets                     BoxExtent                   `json:"obscuredContentInsets"`
	VisualViewportIsSmallerThanLayoutViewport bool                        `json:"visualViewportIsSmallerThanLayoutViewport"`
	CounterScrollingLayer                     LayerRepresentation         `json:"counterScrollingLayer"`
	InsetClipLayer                            LayerRepresentation         `json:"insetClipLayer"`
	ContentShadowLayer                        LayerRepresentation         `json:"contentShadowLayer"`
	RootContentsLayer                         LayerRepresentation         `json:"rootContentsLayer"`
}

func (s *FrameNodeState) clone() nodeState {
	c := *s
	c.ScrollingNodeState = s.ScrollingNodeState.copy()
	return &c
}

func (s *FrameNodeState) eachLayer(fn func(*LayerRepresentation)) {
	s.ScrollingNodeState.eachLayer(fn)
	fn(&s.CounterScrollingLayer)
	fn(&s.InsetClipLayer)
	fn(&s.ContentShadowLayer)
	fn(&s.RootContentsLayer)
}

// -- Accessors --

func (n *StateNode) scrolling() *ScrollingNodeState {
	switch s := n.state.(type) {
	case *FrameNodeState:
		return &s.ScrollingNodeState
	case *ScrollingNodeState:
		return s
	}
	panic(fmt.Sprintf("scrolling: %s has no scrolling state", n))
}

func (n *StateNode) frame() *FrameNodeState {
	if s, ok := n.state.(*FrameNodeState); ok {
		return s
	}
	panic(fmt.Sprintf("scrolling: %s has no frame state", n))
}

// ScrollingState returns a copy of the scrolling properties. It panics for nodes
// that are not frame or overflow scrolling nodes.
func (n *StateNode) ScrollingState() ScrollingNodeState {
	return n.scrolling().copy()
}

// FrameState returns a copy of the frame properties. It panics for non frame nodes.
func (n *StateNode) FrameState() FrameNodeState {
	s := n.frame()
	c := *s
	c.ScrollingNodeState = s.ScrollingNodeState.copy()
	return c
}

// -- Scrolling setters --

func (n *StateNode) SetScrollableAreaSize(v FloatSize) {
	n.mustSupport(PropertyScrollableAreaSize)
	setValue(n, PropertyScrollableAreaSize, &n.scrolling().ScrollableAreaSize, v)
}

func (n *StateNode) SetTotalContentsSize(v FloatSize) {
	n.mustSupport(PropertyTotalContentsSize)
	setValue(n, PropertyTotalContentsSize, &n.scrolling().TotalContentsSize, v)
}

func (n *StateNode) SetReachableContentsSize(v FloatSize) {
	n.mustSupport(PropertyReachableContentsSize)
	setValue(n, PropertyReachableContentsSize, &n.scrolling().ReachableContentsSize, v)
}

// SetScrollPosition records the main context's view of the scroll position.
func (n *StateNode) SetScrollPosition(v FloatPoint) {
	n.mustSupport(PropertyScrollPosition)
	setValue(n, PropertyScrollPosition, &n.scrolling().ScrollPosition, v)
}

func (n *StateNode) SetScrollOrigin(v FloatPoint) {
	n.mustSupport(PropertyScrollOrigin)
	setValue(n, PropertyScrollOrigin, &n.scrolling().ScrollOrigin, v)
}

func (n *StateNode) SetScrollableAreaParameters(v ScrollableAreaParameters) {
	n.mustSupport(PropertyScrollableAreaParams)
	setValue(n, PropertyScrollableAreaParams, &n.scrolling().ScrollableAreaParams, v)
}

// SetRequestedScrollData queues a programmatic scroll for the scrolling side.
func (n *StateNode) SetRequestedScrollData(v RequestedScrollData) {
	n.mustSupport(PropertyRequestedScrollPosition)
	setValue(n, PropertyRequestedScrollPosition, &n.scrolling().RequestedScroll, v)
}

// SetSnapOffsets replaces both snap offset lists; the property changes if either differs.
func (n *StateNode) SetSnapOffsets(horizontal, vertical []float64) {
	n.mustSupport(PropertySnapOffsets)
	s := n.scrolling()
	if slicesEqual(s.HorizontalSnapOffsets, horizontal) && slicesEqual(s.VerticalSnapOffsets, vertical) {
		return
	}
	s.HorizontalSnapOffsets = append([]float64(nil), horizontal...)
	s.VerticalSnapOffsets = append([]float64(nil), vertical...)
	n.SetPropertyChanged(PropertySnapOffsets)
}

func (n *StateNode) SetScrollContainerLayer(l LayerRepresentation) {
	n.mustSupport(PropertyScrollContainerLayer)
	setLayerValue(n, PropertyScrollContainerLayer, &n.scrolling().ScrollContainerLayer, l)
}

func (n *StateNode) SetScrolledContentsLayer(l LayerRepresentation) {
	n.mustSupport(PropertyScrolledContentsLayer)
	setLayerValue(n, PropertyScrolledContentsLayer, &n.scrolling().ScrolledContentsLayer, l)
}

func (n *StateNode) SetHorizontalScrollbarLayer(l LayerRepresentation) {
	n.mustSupport(PropertyHorizontalScrollbarLayer)
	setLayerValue(n, PropertyHorizontalScrollbarLayer, &n.scrolling().HorizontalScrollbarLayer, l)
}

func (n *StateNode) SetVerticalScrollbarLayer(l LayerRepresentation) {
	n.mustSupport(PropertyVerticalScrollbarLayer)
	setLayerValue(n, PropertyVerticalScrollbarLayer, &n.scrolling().VerticalScrollbarLayer, l)
}

// -- Frame setters --

func (n *StateNode) SetFrameScaleFactor(v float64) {
	n.mustSupport(PropertyFrameScaleFactor)
	setValue(n, PropertyFrameScaleFactor, &n.frame().FrameScaleFactor, v)
}

func (n *StateNode) SetSynchronousScrollingReasons(v SynchronousScrollingReasons) {
	n.mustSupport(PropertySynchronousScrollingReasons)
	setValue(n, PropertySynchronousScrollingReasons, &n.frame().SynchronousScrollingReasons, v)
}

func (n *StateNode) SetHeaderHeight(v int) {
	n.mustSupport(PropertyHeaderHeight)
	setValue(n, PropertyHeaderHeight, &n.frame().HeaderHeight, v)
}

func (n *StateNode) SetFooterHeight(v int) {
	n.mustSupport(PropertyFooterHeight)
	setValue(n, PropertyFooterHeight, &n.frame().FooterHeight, v)
}

func (n *StateNode) SetFixedElementsLayoutRelativeToFrame(v bool) {
	n.mustSupport(PropertyFixedElementsLayoutRelativeToFrame)
	setValue(n, PropertyFixedElementsLayoutRelativeToFrame, &n.frame().FixedElementsLayoutRelativeToFrame, v)
}

func (n *StateNode) SetLayoutViewport(v FloatRect) {
	n.mustSupport(PropertyLayoutViewport)
	setValue(n, PropertyLayoutViewport, &n.frame().LayoutViewport, v)
}

func (n *StateNode) SetMinLayoutViewportOrigin(v FloatPoint) {
	n.mustSupport(PropertyMinLayoutViewportOrigin)
	setValue(n, PropertyMinLayoutViewportOrigin, &n.frame().MinLayoutViewportOrigin, v)
}

func (n *StateNode) SetMaxLayoutViewportOrigin(v FloatPoint) {
	n.mustSupport(PropertyMaxLayoutViewportOrigin)
	setValue(n, PropertyMaxLayoutViewportOrigin, &n.frame().MaxLayoutViewportOrigin, v)
}

func (n *StateNode) SetObscuredContentInsets(v BoxExtent) {
	n.mustSupport(PropertyObscuredContentInsets)
	setValue(n, PropertyObscuredContentInsets, &n.frame().ObscuredContentInsets, v)
}

func (n *StateNode) SetVisualViewportIsSmallerThanLayoutViewport(v bool) {
	n.mustSupport(PropertyVisualViewportIsSmallerThanLayoutViewport)
	setValue(n, PropertyVisualViewportIsSmallerThanLayoutViewport, &n.frame().VisualViewportIsSmallerThanLayoutViewport, v)
}

func (n *StateNode) SetCounterScrollingLayer(l LayerRepresentation) {
	n.mustSupport(PropertyCounterScrollingLayer)
	setLayerValue(n, PropertyCounterScrollingLayer, &n.frame().CounterScrollingLayer, l)
}

func (n *StateNode) SetInsetClipLayer(l LayerRepresentation) {
	n.mustSupport(PropertyInsetClipLayer)
	setLayerValue(n, PropertyInsetClipLayer, &n.frame().InsetClipLayer, l)
}

func (n *StateNode) SetContentShadowLayer(l LayerRepresentation) {
	n.mustSupport(PropertyContentShadowLayer)
	setLayerValue(n, PropertyContentShadowLayer, &n.frame().ContentShadowLayer, l)
}

func (n *StateNode) SetRootContentsLayer(l LayerRepresentation) {
	n.mustSupport(PropertyRootContentsLayer)
	setLayerValue(n, PropertyRootContentsLayer, &n.frame().RootContentsLayer, l)
}
