// Package scrolling implements the scrolling state tree: a mutable tree of
// scrolling related nodes owned by the main context, and the commit machinery
// that clones it into independent snapshots for the scrolling context.
package scrolling

import "errors"

// Structural errors. Tree operations never return these to callers; a malformed
// request is a no-op. They are used for logging and by Validate.
var (
	// ErrUnknownNode indicates that an operation referenced an ID the tree does not know.
	ErrUnknownNode = errors.New("unknown scrolling node")

	// ErrUnknownParent indicates that InsertNode named a parent that is not live.
	ErrUnknownParent = errors.New("unknown parent node")

	// ErrDuplicateNode indicates that an ID is already registered in the tree.
	ErrDuplicateNode = errors.New("scrolling node already registered")

	// ErrInvalidRootType indicates an attempt to root the tree at a non frame node.
	ErrInvalidRootType = errors.New("tree root must be a frame scrolling node")

	// ErrUnknownNodeType indicates a node type name that could not be parsed.
	ErrUnknownNodeType = errors.New("unknown scrolling node type")

	// ErrUnknownProperty indicates a property name that could not be parsed.
	ErrUnknownProperty = errors.New("unknown scrolling node property")

	// ErrInvalidTree is wrapped by every invariant violation Validate reports.
	ErrInvalidTree = errors.New("scrolling state tree invariant violated")
)
