// internal/scrolling/weak.go
package scrolling

import "weak"

// CommitScheduler is told when a tree has changes worth committing. The tree
// holds its scheduler weakly: a scheduler that has been collected is simply not
// notified.
type CommitScheduler interface {
	ScheduleTreeStateCommit()
}

type schedulerRef interface {
	get() (CommitScheduler, bool)
}

type weakScheduler[T any, PT interface {
	*T
	CommitScheduler
}] struct {
	ptr weak.Pointer[T]
}

func (w weakScheduler[T, PT]) get() (CommitScheduler, bool) {
	p := w.ptr.Value()
	if p == nil {
		return nil, false
	}
	return PT(p), true
}

func newWeakScheduler[T any, PT interface {
	*T
	CommitScheduler
}](s PT) schedulerRef {
	if s == nil {
		return nil
	}
	return weakScheduler[T, PT]{ptr: weak.Make((*T)(s))}
}
