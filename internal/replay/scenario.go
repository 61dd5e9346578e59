// internal/replay/scenario.go
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/scrollstate/internal/scrolling"
)

// Step operations.
const (
	OpCreate                     = "create"
	OpInsert                     = "insert"
	OpUnparent                   = "unparent"
	OpUnparentChildrenAndDestroy = "unparent-children-and-destroy"
	OpDetachAndDestroy           = "detach-and-destroy"
	OpClear                      = "clear"
	OpSet                        = "set"
	OpCommit                     = "commit"
	OpReconcile                  = "reconcile"
	OpExpect                     = "expect"
)

var (
	// ErrInvalidScenario is returned for scenarios that cannot be run at all.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrExpectation is returned when a step's outcome differs from what it declares.
	ErrExpectation = errors.New("expectation not met")
	// ErrRejected is returned when the tree refuses a create or insert step that
	// was not declared as rejected.
	ErrRejected = errors.New("operation rejected by the tree")
)

// Scenario is a scripted sequence of tree operations.
type Scenario struct {
	Name string `yaml:"name"`
	// Representation overrides the configured layer representation for commits.
	Representation string `yaml:"representation,omitempty"`
	Steps          []Step `yaml:"steps"`
}

// Step is one operation. Which fields apply depends on Op.
type Step struct {
	Op     string           `yaml:"op"`
	Type   string           `yaml:"type,omitempty"`
	ID     scrolling.NodeID `yaml:"id,omitempty"`
	Parent scrolling.NodeID `yaml:"parent,omitempty"`
	Index  *int             `yaml:"index,omitempty"`

	// Property and Value are used by set.
	Property string    `yaml:"property,omitempty"`
	Value    yaml.Node `yaml:"value,omitempty"`

	// Viewport and Action are used by reconcile.
	Viewport *scrolling.FloatRect `yaml:"viewport,omitempty"`
	Action   string               `yaml:"action,omitempty"`

	// Reject declares that create or insert must refuse the operation.
	Reject bool `yaml:"reject,omitempty"`
	// Committed declares whether commit found anything to send.
	Committed *bool `yaml:"committed,omitempty"`
	// Moved declares how many layers reconcile moved.
	Moved *int `yaml:"moved,omitempty"`

	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation describes the state of the main tree, and optionally of the
// scrolling side mirror, after a step.
type Expectation struct {
	NodeCount      *int                                    `yaml:"node_count,omitempty"`
	ScrollingCount *int                                    `yaml:"scrolling_count,omitempty"`
	Nodes          []scrolling.NodeID                      `yaml:"nodes,omitempty"`
	Absent         []scrolling.NodeID                      `yaml:"absent,omitempty"`
	Unparented     []scrolling.NodeID                      `yaml:"unparented,omitempty"`
	Root           *scrolling.NodeID                       `yaml:"root,omitempty"`
	Children       map[scrolling.NodeID][]scrolling.NodeID `yaml:"children,omitempty"`
	HasChanged     *bool                                   `yaml:"has_changed,omitempty"`
	Changed        map[scrolling.NodeID][]string           `yaml:"changed,omitempty"`
	Values         []ValueExpectation                      `yaml:"values,omitempty"`
	Mirror         *MirrorExpectation                      `yaml:"mirror,omitempty"`
	DumpContains   []string                                `yaml:"dump_contains,omitempty"`
}

// MirrorExpectation describes the scrolling side tree after the last commit.
type MirrorExpectation struct {
	NodeCount *int                                    `yaml:"node_count,omitempty"`
	Commits   *int                                    `yaml:"commits,omitempty"`
	Children  map[scrolling.NodeID][]scrolling.NodeID `yaml:"children,omitempty"`
	Values    []ValueExpectation                      `yaml:"values,omitempty"`
}

// ValueExpectation is a single property value on a node.
type ValueExpectation struct {
	ID       scrolling.NodeID `yaml:"id"`
	Property string           `yaml:"property"`
	Value    yaml.Node        `yaml:"value"`
}

// Load decodes a scenario. Unknown keys are rejected so typos fail loudly.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a scenario from disk.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()

	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks the parts of a scenario that do not depend on tree state.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	}
	if s.Representation != "" {
		if _, err := scrolling.ParseLayerRepresentationType(s.Representation); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidScenario, err)
		}
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %w", ErrInvalidScenario, i+1, step.Op, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	switch st.Op {
	case OpCreate, OpInsert:
		if _, err := scrolling.ParseNodeType(st.Type); err != nil {
			return err
		}
	case OpUnparent, OpUnparentChildrenAndDestroy, OpDetachAndDestroy:
		if !st.ID.IsValid() {
			return errors.New("id is required")
		}
	case OpSet:
		if !st.ID.IsValid() {
			return errors.New("id is required")
		}
		if _, err := scrolling.ParseProperty(st.Property); err != nil {
			return err
		}
		if st.Value.Kind == 0 {
			return errors.New("value is required")
		}
	case OpReconcile:
		if _, err := scrolling.ParseLayerPositionAction(st.Action); err != nil {
			return err
		}
		if st.Viewport == nil {
			return errors.New("viewport is required")
		}
	case OpExpect:
		if st.Expect == nil {
			return errors.New("expect is required")
		}
	case OpClear, OpCommit:
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}
	return nil
}

// decodeValue decodes a YAML value into the Go type prop takes on a node of type
// t. Layer representations are written as plain layer IDs.
func decodeValue(t scrolling.NodeType, prop scrolling.Property, node *yaml.Node) (any, error) {
	typ, ok := scrolling.PropertyType(t, prop)
	if !ok {
		return nil, fmt.Errorf("property %s is not valid for %s nodes", prop, t)
	}
	if typ == reflect.TypeFor[scrolling.LayerRepresentation]() {
		var id uint64
		if err := node.Decode(&id); err != nil {
			return nil, fmt.Errorf("property %s: %w", prop, err)
		}
		if id == 0 {
			return scrolling.LayerRepresentation{}, nil
		}
		return scrolling.LayerFromID(scrolling.LayerID(id)), nil
	}

	v := reflect.New(typ)
	if err := node.Decode(v.Interface()); err != nil {
		return nil, fmt.Errorf("property %s: %w", prop, err)
	}
	return v.Elem().Interface(), nil
}
