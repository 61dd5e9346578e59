// internal/scrolling/json.go
package scrolling

import (
	"fmt"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MarshalJSON encodes a layer handle as its layer ID; empty handles encode as 0.
func (l LayerRepresentation) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(l.id))
}

// UnmarshalJSON decodes an ID-only handle. AttachDeserializedNodes turns it back
// into an object handle.
func (l *LayerRepresentation) UnmarshalJSON(data []byte) error {
	var id uint64
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("failed to decode layer id: %w", err)
	}
	*l = LayerFromID(LayerID(id))
	return nil
}

type treeDocument struct {
	RootFrameID    string        `json:"rootFrameId"`
	CommitID       string        `json:"commitId,omitempty"`
	Representation string        `json:"representation"`
	HasNewRoot     bool          `json:"hasNewRoot"`
	HasChanged     bool          `json:"hasChanged"`
	Root           *nodeDocument `json:"root,omitempty"`
}

type nodeDocument struct {
	ID       NodeID              `json:"id"`
	Type     string              `json:"type"`
	Changed  uint64              `json:"changed"`
	Layer    LayerRepresentation `json:"layer"`
	State    jsoniter.RawMessage `json:"state,omitempty"`
	Children []*nodeDocument     `json:"children,omitempty"`
}

// EncodeJSON encodes the attached part of a tree, normally a commit snapshot.
// Layer handles are written as IDs.
func EncodeJSON(t *StateTree) ([]byte, error) {
	doc := treeDocument{
		RootFrameID:    t.rootFrameID.String(),
		Representation: t.preferred.String(),
		HasNewRoot:     t.hasNewRoot,
		HasChanged:     t.hasChanged,
	}
	if t.commitID != uuid.Nil {
		doc.CommitID = t.commitID.String()
	}
	if t.root != nil {
		root, err := encodeNode(t.root)
		if err != nil {
			return nil, err
		}
		doc.Root = root
	}
	return json.MarshalIndent(doc, "", "  ")
}

func encodeNode(n *StateNode) (*nodeDocument, error) {
	doc := &nodeDocument{
		ID:      n.id,
		Type:    n.nodeType.String(),
		Changed: uint64(n.changed),
		Layer:   n.layer,
	}
	if n.state != nil {
		raw, err := json.Marshal(n.state)
		if err != nil {
			return nil, fmt.Errorf("failed to encode state of node %d: %w", n.id, err)
		}
		doc.State = raw
	}
	for _, c := range n.children {
		child, err := encodeNode(c)
		if err != nil {
			return nil, err
		}
		doc.Children = append(doc.Children, child)
	}
	return doc, nil
}

// DecodeJSON rebuilds a tree written by EncodeJSON through
// CreateAfterReconstruction. Layer handles come back ID-only; call
// AttachDeserializedNodes to bind them to layer objects.
func DecodeJSON(data []byte, opts ...TreeOption) (*StateTree, error) {
	var doc treeDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode scrolling state tree: %w", err)
	}

	var frameID FrameID
	if doc.RootFrameID != "" {
		id, err := uuid.Parse(doc.RootFrameID)
		if err != nil {
			return nil, fmt.Errorf("invalid root frame id: %w", err)
		}
		frameID = id
	}
	rep, err := ParseLayerRepresentationType(doc.Representation)
	if err != nil {
		return nil, err
	}

	var root *StateNode
	if doc.Root != nil {
		if root, err = decodeNode(doc.Root); err != nil {
			return nil, err
		}
	}

	opts = append(opts, WithRootFrameIdentifier(frameID), WithPreferredLayerRepresentation(rep))
	t, err := CreateAfterReconstruction(doc.HasNewRoot, doc.HasChanged, root, opts...)
	if err != nil {
		return nil, err
	}
	if doc.CommitID != "" {
		if t.commitID, err = uuid.Parse(doc.CommitID); err != nil {
			return nil, fmt.Errorf("invalid commit id: %w", err)
		}
	}
	return t, nil
}

func decodeNode(doc *nodeDocument) (*StateNode, error) {
	typ, err := ParseNodeType(doc.Type)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", doc.ID, err)
	}
	n := NewStateNode(typ, doc.ID)
	n.changed = Property(doc.Changed) & AllProperties(typ)
	n.layer = doc.Layer
	if n.state != nil && len(doc.State) > 0 {
		if err := json.Unmarshal(doc.State, n.state); err != nil {
			return nil, fmt.Errorf("failed to decode state of node %d: %w", doc.ID, err)
		}
	}
	for _, c := range doc.Children {
		child, err := decodeNode(c)
		if err != nil {
			return nil, err
		}
		if child.id == n.id {
			return nil, fmt.Errorf("%w: node %d is its own child", ErrDuplicateNode, n.id)
		}
		n.insertChild(child, -1)
	}
	return n, nil
}
