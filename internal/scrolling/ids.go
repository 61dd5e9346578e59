// internal/scrolling/ids.go
package scrolling

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// NodeID identifies a node in a scrolling state tree. IDs are stable across commits;
// a node keeps its ID until it is destroyed. The zero value is never a valid ID.
type NodeID uint64

// InvalidNodeID is the zero NodeID.
const InvalidNodeID NodeID = 0

// IsValid reports whether the ID is non-zero.
func (id NodeID) IsValid() bool { return id != InvalidNodeID }

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// NodeIDAllocator hands out process-unique node IDs. The tree never allocates IDs
// on its own; callers obtain them from a single allocator and pass them in.
type NodeIDAllocator struct {
	last atomic.Uint64
}

// Next returns a fresh, never before returned ID.
func (a *NodeIDAllocator) Next() NodeID {
	return NodeID(a.last.Add(1))
}

// Reserve makes sure the allocator never hands out ids at or below id. Used after
// rehydrating a tree whose IDs came from another allocator.
func (a *NodeIDAllocator) Reserve(id NodeID) {
	for {
		cur := a.last.Load()
		if uint64(id) <= cur {
			return
		}
		if a.last.CompareAndSwap(cur, uint64(id)) {
			return
		}
	}
}

var globalAllocator NodeIDAllocator

// NextNodeID returns an ID from the process-wide allocator.
func NextNodeID() NodeID {
	return globalAllocator.Next()
}

// FrameID identifies the root frame a tree was built for.
type FrameID = uuid.UUID

// NewFrameID returns a random frame identifier.
func NewFrameID() FrameID {
	return uuid.New()
}

// CommitID tags a single commit snapshot for log correlation.
type CommitID = uuid.UUID
