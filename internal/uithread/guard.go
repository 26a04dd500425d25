package uithread

import (
	"fmt"
	"sync/atomic"
)

// ConcurrentAccessError is raised (as a panic) when two callers are inside
// the same Guard at once.
type ConcurrentAccessError struct {
	Owner  string
	Method string
	Holder string
}

func (e *ConcurrentAccessError) Error() string {
	return fmt.Sprintf("uithread: %s.%s called while %s is still running; callbacks must be serialized on one loop",
		e.Owner, e.Method, e.Holder)
}

// Guard asserts serialized access to an object whose methods must only run
// on its callback loop. It does not lock: an overlapping entry panics.
type Guard struct {
	owner  string
	holder atomic.Pointer[string]
}

// NewGuard creates a guard; owner names the protected object in panics.
func NewGuard(owner string) *Guard {
	return &Guard{owner: owner}
}

// Enter marks method as running and returns the matching exit function:
//
//	defer g.Enter("OnPaint")()
func (g *Guard) Enter(method string) func() {
	m := method
	if !g.holder.CompareAndSwap(nil, &m) {
		holder := "another callback"
		if h := g.holder.Load(); h != nil {
			holder = *h
		}
		panic(&ConcurrentAccessError{Owner: g.owner, Method: method, Holder: holder})
	}
	return func() {
		g.holder.Store(nil)
	}
}

// Busy reports whether a guarded method is running.
func (g *Guard) Busy() bool {
	return g.holder.Load() != nil
}
