package engine

import (
	"sync/atomic"
)

// Ref is a reference-counted hold on a Browser shared between the host and
// the webview core. The release hook runs once, when the last hold is
// dropped.
type Ref struct {
	Browser

	state *refState
}

type refState struct {
	count   atomic.Int32
	release func(Browser)
}

// NewRef takes the first hold on browser. release may be nil.
func NewRef(browser Browser, release func(Browser)) *Ref {
	s := &refState{release: release}
	s.count.Store(1)
	return &Ref{Browser: browser, state: s}
}

// Retain returns a new hold on browser, sharing the count when browser is
// already a *Ref.
func Retain(browser Browser) *Ref {
	if r, ok := browser.(*Ref); ok {
		return r.Acquire()
	}
	return NewRef(browser, nil)
}

// Acquire adds a hold and returns it.
func (r *Ref) Acquire() *Ref {
	r.state.count.Add(1)
	return &Ref{Browser: r.Browser, state: r.state}
}

// Release drops this hold and reports whether it was the last one.
// Releasing more times than acquired panics.
func (r *Ref) Release() bool {
	n := r.state.count.Add(-1)
	if n < 0 {
		panic("engine: browser reference released too many times")
	}
	if n > 0 {
		return false
	}
	if r.state.release != nil {
		r.state.release(r.Browser)
	}
	return true
}

// Count returns the number of live holds.
func (r *Ref) Count() int {
	return int(r.state.count.Load())
}

// Unwrap returns the underlying engine browser.
func (r *Ref) Unwrap() Browser {
	if inner, ok := r.Browser.(*Ref); ok {
		return inner.Unwrap()
	}
	return r.Browser
}
