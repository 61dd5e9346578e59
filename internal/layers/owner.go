// internal/layers/owner.go
package layers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

var (
	// ErrNoDocumentElement is returned for documents without an <html> element.
	ErrNoDocumentElement = errors.New("document has no html element")
	// ErrUnknownElement is returned for an element key the owner does not track.
	ErrUnknownElement = errors.New("unknown element")
	// ErrNotScrollable is returned when scrolling an element that is not a scroll container.
	ErrNotScrollable = errors.New("element is not a scroll container")
)

// rootKey names the document element when it carries no id.
const rootKey = "html"

// Performer runs work on the context that owns the state tree.
type Performer interface {
	Perform(ctx context.Context, fn func(*scrolling.StateTree)) error
}

// Owner maps the elements of an HTML document onto scrolling state nodes and
// owns the compositing layers those nodes reference. Geometry is read straight
// from inline styles; nothing is laid out.
type Owner struct {
	logger   *zap.Logger
	viewport scrolling.FloatSize

	nodeIDs   scrolling.NodeIDAllocator
	nextLayer atomic.Uint64

	mu       sync.RWMutex
	elements map[string]*element
	byNode   map[scrolling.NodeID]string
	layers   map[scrolling.LayerID]*Layer
}

var _ scrolling.LayerResolver = (*Owner)(nil)

type element struct {
	key      string
	node     scrolling.NodeID
	nodeType scrolling.NodeType
	layer    *Layer
	contents *Layer
}

// mapping is one element of the current document that should have a node.
type mapping struct {
	key     string
	node    *html.Node
	typ     scrolling.NodeType
	style   inlineStyle
	parent  *mapping
	index   int
	related []*mapping
}

// SyncResult counts what a Sync changed in the tree.
type SyncResult struct {
	Inserted   int
	Moved      int
	Recreated  int
	Destroyed  int
	Unparented int
	Reconciled int
}

// NewOwner returns an owner for a viewport of the configured size.
func NewOwner(logger *zap.Logger, cfg config.LayersConfig) *Owner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Owner{
		logger:   logger.Named("layer_owner"),
		viewport: scrolling.FloatSize{Width: cfg.ViewportWidth, Height: cfg.ViewportHeight},
		elements: make(map[string]*element),
		byNode:   make(map[scrolling.NodeID]string),
		layers:   make(map[scrolling.LayerID]*Layer),
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

// LoadFile reads an HTML document from disk.
func LoadFile(path string) (*html.Node, error) {
	doc, err := htmlquery.LoadDoc(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", path, err)
	}
	return doc, nil
}

// LayerForID implements scrolling.LayerResolver.
func (o *Owner) LayerForID(id scrolling.LayerID) (scrolling.GraphicsLayer, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	l, ok := o.layers[id]
	if !ok {
		return nil, false
	}
	return l, true
}

// Layer returns the primary layer of an element.
func (o *Owner) Layer(key string) (*Layer, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	el, ok := o.elements[key]
	if !ok {
		return nil, false
	}
	return el.layer, true
}

// NodeID returns the node an element is mapped to.
func (o *Owner) NodeID(key string) (scrolling.NodeID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	el, ok := o.elements[key]
	if !ok {
		return scrolling.InvalidNodeID, false
	}
	return el.node, true
}

// Elements returns the tracked element keys in sorted order.
func (o *Owner) Elements() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Sorted(maps.Keys(o.elements))
}

// Sync brings the tree in line with doc: new elements are inserted, vanished
// ones destroyed, moved ones reinserted, and every node's properties refreshed.
// Fixed and sticky layers are then repositioned for the frame's viewport.
func (o *Owner) Sync(ctx context.Context, p Performer, doc *html.Node) (SyncResult, error) {
	mappings, err := o.collect(doc)
	if err != nil {
		return SyncResult{}, err
	}

	var res SyncResult
	err = p.Perform(ctx, func(tree *scrolling.StateTree) {
		res = o.apply(tree, mappings)
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to sync document: %w", err)
	}

	o.logger.Debug("Synced document.",
		zap.Int("elements", len(mappings)),
		zap.Int("inserted", res.Inserted),
		zap.Int("moved", res.Moved),
		zap.Int("recreated", res.Recreated),
		zap.Int("destroyed", res.Destroyed),
		zap.Int("unparented", res.Unparented),
		zap.Int("reconciled", res.Reconciled))
	return res, nil
}

// Scroll moves a scroll container and repositions the viewport constrained
// layers below it. It returns how many layers moved.
func (o *Owner) Scroll(ctx context.Context, p Performer, key string, to scrolling.FloatPoint) (int, error) {
	var moved int
	var opErr error
	err := p.Perform(ctx, func(tree *scrolling.StateTree) {
		id, ok := o.NodeID(key)
		if !ok {
			opErr = fmt.Errorf("%w: %q", ErrUnknownElement, key)
			return
		}
		node, ok := tree.StateNodeForID(id)
		if !ok || !node.NodeType().IsScrolling() {
			opErr = fmt.Errorf("%w: %q", ErrNotScrollable, key)
			return
		}
		node.SetScrollPosition(to)

		var viewport scrolling.FloatRect
		if root := tree.RootStateNode(); root != nil {
			viewport = root.FrameState().LayoutViewport
			if node == root {
				viewport.X, viewport.Y = to.X, to.Y
				root.SetLayoutViewport(viewport)
			}
		}
		moved = tree.ReconcileViewportConstrainedLayerPositions(id, viewport, scrolling.LayerPositionSetApproximate)
	})
	if err != nil {
		return 0, err
	}
	return moved, opErr
}

// collect walks doc in document order and decides which elements get nodes.
func (o *Owner) collect(doc *html.Node) ([]*mapping, error) {
	docElement := htmlquery.FindOne(doc, "//html")
	if docElement == nil {
		return nil, ErrNoDocumentElement
	}

	root := &mapping{key: keyOf(docElement), node: docElement, typ: scrolling.FrameScrolling, style: styleOf(docElement)}
	if root.key == "" {
		root.key = rootKey
	}
	mappings := []*mapping{root}
	byNode := map[*html.Node]*mapping{docElement: root}
	seen := map[string]bool{root.key: true}
	children := map[*mapping]int{}

	for _, n := range htmlquery.Find(doc, "//*[@id]") {
		if n == docElement {
			continue
		}
		key := keyOf(n)
		if key == "" {
			continue
		}
		if seen[key] {
			o.logger.Warn("Ignoring element with duplicate id.", zap.String("id", key))
			continue
		}

		style := styleOf(n)
		typ, ok := classify(n, style)
		if !ok {
			continue
		}
		m := &mapping{key: key, node: n, typ: typ, style: style, parent: nearestMapped(n, byNode)}
		if typ == scrolling.Positioned {
			m.related = crossedScrollers(n, byNode)
			if len(m.related) == 0 {
				continue
			}
		}
		m.index = children[m.parent]
		children[m.parent]++
		byNode[n] = m
		seen[key] = true
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func keyOf(n *html.Node) string {
	return strings.TrimSpace(htmlquery.SelectAttr(n, "id"))
}

func classify(n *html.Node, style inlineStyle) (scrolling.NodeType, bool) {
	if htmlquery.SelectAttr(n, "data-scrolling") == "plain" {
		return scrolling.Plain, true
	}
	switch style.position() {
	case "fixed":
		return scrolling.FixedPosition, true
	case "sticky":
		return scrolling.StickyPosition, true
	}
	if style.scrolls() {
		return scrolling.OverflowScrolling, true
	}
	if style.position() == "absolute" {
		return scrolling.Positioned, true
	}
	return 0, false
}

func nearestMapped(n *html.Node, byNode map[*html.Node]*mapping) *mapping {
	for p := n.Parent; p != nil; p = p.Parent {
		if m, ok := byNode[p]; ok {
			return m
		}
	}
	return nil
}

// crossedScrollers returns the overflow scrollers between an absolutely
// positioned element and its containing block. The element does not move when
// they scroll, so its node must be told about them.
func crossedScrollers(n *html.Node, byNode map[*html.Node]*mapping) []*mapping {
	var crossed []*mapping
	for p := n.Parent; p != nil && p.Type == html.ElementNode; p = p.Parent {
		m, mapped := byNode[p]
		if mapped && m.typ == scrolling.FrameScrolling {
			break
		}
		if styleOf(p).position() != "static" {
			break
		}
		if mapped && m.typ == scrolling.OverflowScrolling {
			crossed = append(crossed, m)
		}
	}
	return crossed
}

// apply runs on the main context.
func (o *Owner) apply(tree *scrolling.StateTree, mappings []*mapping) SyncResult {
	o.mu.Lock()
	defer o.mu.Unlock()

	var res SyncResult
	wanted := make(map[string]*mapping, len(mappings))
	for _, m := range mappings {
		wanted[m.key] = m
	}

	for _, key := range slices.Sorted(maps.Keys(o.elements)) {
		if _, ok := wanted[key]; ok {
			continue
		}
		el := o.elements[key]
		if node, ok := tree.StateNodeForID(el.node); ok {
			if o.hasWantedDescendant(node, wanted) {
				tree.UnparentChildrenAndDestroyNode(el.node)
				res.Unparented++
			} else {
				tree.DetachAndDestroySubtree(el.node)
				res.Destroyed++
			}
		}
		o.dropElement(el)
	}

	var frameViewport scrolling.FloatRect
	for _, m := range mappings {
		parentID := scrolling.InvalidNodeID
		if m.parent != nil {
			parentID = o.elements[m.parent.key].node
		}

		el, ok := o.elements[m.key]
		switch {
		case !ok:
			el = o.addElement(m)
			tree.InsertNode(m.typ, el.node, parentID, m.index)
			res.Inserted++
		case el.nodeType != m.typ:
			el.nodeType = m.typ
			if el.contents != nil && !m.typ.IsScrolling() {
				delete(o.layers, el.contents.ID())
				el.contents = nil
			}
			tree.InsertNode(m.typ, el.node, parentID, m.index)
			res.Recreated++
		case needsMove(tree, el.node, parentID, m.index):
			tree.InsertNode(m.typ, el.node, parentID, m.index)
			res.Moved++
		}

		node, ok := tree.StateNodeForID(el.node)
		if !ok {
			o.logger.Warn("Element has no node after insertion.", zap.String("element", m.key))
			continue
		}
		if m.typ == scrolling.FrameScrolling {
			frameViewport = o.updateFrame(node, el, m)
			continue
		}
		o.update(node, el, m, frameViewport)
	}

	res.Reconciled = tree.ReconcileViewportConstrainedLayerPositions(scrolling.InvalidNodeID, frameViewport, scrolling.LayerPositionSet)
	return res
}

func (o *Owner) hasWantedDescendant(n *scrolling.StateNode, wanted map[string]*mapping) bool {
	for _, c := range n.Children() {
		if _, ok := wanted[o.byNode[c.ID()]]; ok {
			return true
		}
		if o.hasWantedDescendant(c, wanted) {
			return true
		}
	}
	return false
}

func needsMove(tree *scrolling.StateTree, id, parentID scrolling.NodeID, index int) bool {
	node, ok := tree.StateNodeForID(id)
	if !ok {
		return true
	}
	if !parentID.IsValid() {
		return tree.RootStateNode() != node
	}
	parent := node.Parent()
	return parent == nil || parent.ID() != parentID || parent.IndexOfChild(node) != index
}

func (o *Owner) addElement(m *mapping) *element {
	el := &element{key: m.key, node: o.nodeIDs.Next(), nodeType: m.typ}
	el.layer = o.newLayer(m.key)
	o.elements[m.key] = el
	o.byNode[el.node] = m.key
	return el
}

func (o *Owner) dropElement(el *element) {
	delete(o.elements, el.key)
	delete(o.byNode, el.node)
	delete(o.layers, el.layer.ID())
	if el.contents != nil {
		delete(o.layers, el.contents.ID())
	}
}

func (o *Owner) newLayer(name string) *Layer {
	l := newLayer(scrolling.LayerID(o.nextLayer.Add(1)), name)
	o.layers[l.ID()] = l
	return l
}

func (o *Owner) contentsLayer(el *element) *Layer {
	if el.contents == nil {
		el.contents = o.newLayer(el.key + "/contents")
	}
	return el.contents
}

// -- Geometry --

func scrollPositionOf(m *mapping) scrolling.FloatPoint {
	x, _ := floatAttr(m.node, "data-scroll-left")
	y, _ := floatAttr(m.node, "data-scroll-top")
	return scrolling.FloatPoint{X: x, Y: y}
}

// areaSize is the visible size of a scroller, or the box size of anything else.
func (o *Owner) areaSize(m *mapping) scrolling.FloatSize {
	if m == nil || m.typ == scrolling.FrameScrolling {
		return o.viewport
	}
	ref := o.areaSize(m.parent)
	return scrolling.FloatSize{
		Width:  m.style.lengthOr("width", ref.Width, o.viewport, 0),
		Height: m.style.lengthOr("height", ref.Height, o.viewport, 0),
	}
}

// contentsSize is the scrollable size of a scroller, or the box size of anything else.
func (o *Owner) contentsSize(m *mapping) scrolling.FloatSize {
	if m == nil {
		return o.viewport
	}
	area := o.areaSize(m)
	if m.typ == scrolling.FrameScrolling {
		area = scrolling.FloatSize{
			Width:  m.style.lengthOr("width", o.viewport.Width, o.viewport, o.viewport.Width),
			Height: m.style.lengthOr("height", o.viewport.Height, o.viewport, o.viewport.Height),
		}
	}
	if w, ok := floatAttr(m.node, "data-content-width"); ok {
		area.Width = w
	}
	if h, ok := floatAttr(m.node, "data-content-height"); ok {
		area.Height = h
	}
	return area
}

func (o *Owner) updateFrame(node *scrolling.StateNode, el *element, m *mapping) scrolling.FloatRect {
	contents := o.contentsSize(m)
	pos := scrollPositionOf(m)
	viewport := scrolling.FloatRect{X: pos.X, Y: pos.Y, Width: o.viewport.Width, Height: o.viewport.Height}

	node.SetLayer(scrolling.LayerFromGraphics(el.layer))
	node.SetScrollableAreaSize(o.viewport)
	node.SetTotalContentsSize(contents)
	node.SetReachableContentsSize(contents)
	node.SetScrollPosition(pos)
	node.SetLayoutViewport(viewport)
	node.SetMaxLayoutViewportOrigin(scrolling.FloatPoint{
		X: max(0, contents.Width-o.viewport.Width),
		Y: max(0, contents.Height-o.viewport.Height),
	})
	node.SetFrameScaleFactor(1)
	node.SetScrollContainerLayer(scrolling.LayerFromGraphics(el.layer))
	node.SetScrolledContentsLayer(scrolling.LayerFromGraphics(o.contentsLayer(el)))
	return viewport
}

func (o *Owner) update(node *scrolling.StateNode, el *element, m *mapping, frameViewport scrolling.FloatRect) {
	node.SetLayer(scrolling.LayerFromGraphics(el.layer))

	switch m.typ {
	case scrolling.OverflowScrolling:
		contents := o.contentsSize(m)
		node.SetScrollableAreaSize(o.areaSize(m))
		node.SetTotalContentsSize(contents)
		node.SetReachableContentsSize(contents)
		node.SetScrollPosition(scrollPositionOf(m))
		node.SetScrollContainerLayer(scrolling.LayerFromGraphics(el.layer))
		node.SetScrolledContentsLayer(scrolling.LayerFromGraphics(o.contentsLayer(el)))

	case scrolling.FixedPosition:
		node.SetFixedConstraints(o.fixedConstraints(m, frameViewport))

	case scrolling.StickyPosition:
		node.SetStickyConstraints(o.stickyConstraints(m, frameViewport))

	case scrolling.Positioned:
		related := make([]scrolling.NodeID, 0, len(m.related))
		for _, r := range m.related {
			related = append(related, o.elements[r.key].node)
		}
		node.SetRelatedOverflowScrollingNodes(related)
		ref := o.areaSize(m.parent)
		node.SetLayoutConstraints(scrolling.AbsolutePositionConstraints{
			LayerPositionAtLastLayout: scrolling.FloatPoint{
				X: m.style.lengthOr("left", ref.Width, o.viewport, 0),
				Y: m.style.lengthOr("top", ref.Height, o.viewport, 0),
			},
		})
	}
}

// fixedConstraints pins the layer to the edges its style names, left and top
// when neither side of an axis is given.
func (o *Owner) fixedConstraints(m *mapping, viewport scrolling.FloatRect) scrolling.FixedPositionConstraints {
	vp := viewport.Size()
	size := scrolling.FloatSize{
		Width:  m.style.lengthOr("width", vp.Width, o.viewport, 0),
		Height: m.style.lengthOr("height", vp.Height, o.viewport, 0),
	}

	c := scrolling.FixedPositionConstraints{ViewportRectAtLastLayout: viewport}
	var offset scrolling.FloatSize
	left, hasLeft := m.style.length("left", vp.Width, o.viewport)
	if right, ok := m.style.length("right", vp.Width, o.viewport); ok && !hasLeft {
		c.AnchorEdges |= scrolling.AnchorEdgeRight
		offset.Width = vp.Width - right - size.Width
	} else {
		c.AnchorEdges |= scrolling.AnchorEdgeLeft
		offset.Width = left
	}
	top, hasTop := m.style.length("top", vp.Height, o.viewport)
	if bottom, ok := m.style.length("bottom", vp.Height, o.viewport); ok && !hasTop {
		c.AnchorEdges |= scrolling.AnchorEdgeBottom
		offset.Height = vp.Height - bottom - size.Height
	} else {
		c.AnchorEdges |= scrolling.AnchorEdgeTop
		offset.Height = top
	}
	c.LayerPositionAtLastLayout = viewport.Location().Add(offset)
	return c
}

// stickyConstraints places the sticky box at its margin offsets inside its
// parent's contents, then computes where it sits for the layout-time visible
// area of the nearest scroller.
func (o *Owner) stickyConstraints(m *mapping, frameViewport scrolling.FloatRect) scrolling.StickyPositionConstraints {
	container := o.contentsSize(m.parent)
	box := scrolling.FloatRect{
		X:      m.style.lengthOr("margin-left", container.Width, o.viewport, 0),
		Y:      m.style.lengthOr("margin-top", container.Height, o.viewport, 0),
		Width:  m.style.lengthOr("width", container.Width, o.viewport, 0),
		Height: m.style.lengthOr("height", container.Height, o.viewport, 0),
	}

	constraining := frameViewport
	for s := m.parent; s != nil; s = s.parent {
		if s.typ == scrolling.OverflowScrolling {
			pos := scrollPositionOf(s)
			area := o.areaSize(s)
			constraining = scrolling.FloatRect{X: pos.X, Y: pos.Y, Width: area.Width, Height: area.Height}
			break
		}
		if s.typ == scrolling.FrameScrolling {
			break
		}
	}

	c := scrolling.StickyPositionConstraints{
		ConstrainingRectAtLastLayout: constraining,
		ContainingBlockRect:          scrolling.FloatRect{Width: container.Width, Height: container.Height},
		StickyBoxRect:                box,
	}
	if v, ok := m.style.length("left", constraining.Width, o.viewport); ok {
		c.AnchorEdges |= scrolling.AnchorEdgeLeft
		c.LeftOffset = v
	}
	if v, ok := m.style.length("right", constraining.Width, o.viewport); ok {
		c.AnchorEdges |= scrolling.AnchorEdgeRight
		c.RightOffset = v
	}
	if v, ok := m.style.length("top", constraining.Height, o.viewport); ok {
		c.AnchorEdges |= scrolling.AnchorEdgeTop
		c.TopOffset = v
	}
	if v, ok := m.style.length("bottom", constraining.Height, o.viewport); ok {
		c.AnchorEdges |= scrolling.AnchorEdgeBottom
		c.BottomOffset = v
	}
	c.StickyOffsetAtLastLayout = c.ComputeStickyOffset(constraining)
	c.LayerPositionAtLastLayout = box.Location().Add(c.StickyOffsetAtLastLayout)
	return c
}
