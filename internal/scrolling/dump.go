// internal/scrolling/dump.go
package scrolling

import (
	"fmt"
	"strings"
)

// DumpBehavior selects what AsText includes.
type DumpBehavior uint8

const (
	IncludeNodeIDs DumpBehavior = 1 << iota
	IncludeLayerIDs
	IncludeLayerPositions
	IncludeChangedProperties
	IncludeUnparented

	DumpNormal  DumpBehavior = 0
	DumpVerbose              = IncludeNodeIDs | IncludeLayerIDs | IncludeLayerPositions | IncludeChangedProperties | IncludeUnparented
)

var dumpBehaviorNames = map[string]DumpBehavior{
	"node-ids":           IncludeNodeIDs,
	"layer-ids":          IncludeLayerIDs,
	"layer-positions":    IncludeLayerPositions,
	"changed-properties": IncludeChangedProperties,
	"unparented":         IncludeUnparented,
	"all":                DumpVerbose,
}

// ParseDumpBehavior combines flag names such as "node-ids" or "all".
func ParseDumpBehavior(names []string) (DumpBehavior, error) {
	var b DumpBehavior
	for _, name := range names {
		flag, ok := dumpBehaviorNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return 0, fmt.Errorf("unknown dump behavior %q", name)
		}
		b |= flag
	}
	return b, nil
}

// AsText renders the tree as indented text for logs and tests.
func (t *StateTree) AsText(behavior DumpBehavior) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "(scrolling state tree nodes=%d scrolling=%d", t.NodeCount(), t.ScrollingNodeCount())
	if t.hasNewRoot {
		sb.WriteString(" new-root")
	}
	if t.hasChanged {
		sb.WriteString(" changed")
	}
	sb.WriteString("\n")
	if t.root != nil {
		t.root.dump(&sb, 1, behavior)
	}
	if behavior&IncludeUnparented != 0 && len(t.unparented) > 0 {
		sb.WriteString("  (unparented\n")
		for _, id := range t.UnparentedNodeIDs() {
			t.unparented[id].dump(&sb, 2, behavior)
		}
		sb.WriteString("  )\n")
	}
	sb.WriteString(")\n")
	return sb.String()
}

func (n *StateNode) dump(sb *strings.Builder, depth int, behavior DumpBehavior) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s(%s", indent, n.nodeType)
	if behavior&IncludeNodeIDs != 0 {
		fmt.Fprintf(sb, " id=%d", n.id)
	}
	if behavior&IncludeLayerIDs != 0 && !n.layer.IsEmpty() {
		fmt.Fprintf(sb, " layer=%s", n.layer)
	}
	if behavior&IncludeChangedProperties != 0 && n.changed != NoProperties {
		fmt.Fprintf(sb, " changed=%s", n.changed)
	}
	n.dumpProperties(sb, behavior)
	if len(n.children) == 0 {
		sb.WriteString(")\n")
		return
	}
	sb.WriteString("\n")
	for _, child := range n.children {
		child.dump(sb, depth+1, behavior)
	}
	fmt.Fprintf(sb, "%s)\n", indent)
}

func (n *StateNode) dumpProperties(sb *strings.Builder, behavior DumpBehavior) {
	switch s := n.state.(type) {
	case *FrameNodeState:
		writeScrolling(sb, &s.ScrollingNodeState)
		if !s.LayoutViewport.IsEmpty() {
			fmt.Fprintf(sb, " layout-viewport=%s", s.LayoutViewport)
		}
		if s.FrameScaleFactor != 0 && s.FrameScaleFactor != 1 {
			fmt.Fprintf(sb, " scale=%g", s.FrameScaleFactor)
		}
		if s.SynchronousScrollingReasons != 0 {
			fmt.Fprintf(sb, " sync-reasons=%#x", uint8(s.SynchronousScrollingReasons))
		}
	case *ScrollingNodeState:
		writeScrolling(sb, s)
	case *FixedNodeState:
		if behavior&IncludeLayerPositions != 0 {
			fmt.Fprintf(sb, " layer-position=%s", s.LayerPosition)
		}
	case *StickyNodeState:
		if behavior&IncludeLayerPositions != 0 {
			fmt.Fprintf(sb, " layer-position=%s", s.LayerPosition)
		}
	case *PositionedNodeState:
		if len(s.RelatedOverflowScrollingNodes) > 0 {
			fmt.Fprintf(sb, " related=%v", s.RelatedOverflowScrollingNodes)
		}
	}
}

func writeScrolling(sb *strings.Builder, s *ScrollingNodeState) {
	if !s.ScrollableAreaSize.IsZero() {
		fmt.Fprintf(sb, " scrollable-area=%s", s.ScrollableAreaSize)
	}
	if !s.TotalContentsSize.IsZero() {
		fmt.Fprintf(sb, " contents=%s", s.TotalContentsSize)
	}
	if s.ScrollPosition != (FloatPoint{}) {
		fmt.Fprintf(sb, " scroll-position=%s", s.ScrollPosition)
	}
}
