package stream

import (
	"sync"
	"sync/atomic"
)

// CancelFlag is a one-way signal from a listener goroutine to the receive
// loop. Hooks registered with OnSet run once, on the goroutine that sets the
// flag.
type CancelFlag struct {
	set   atomic.Bool
	mu    sync.Mutex
	hooks []func()
}

// NewCancelFlag returns an unset flag.
func NewCancelFlag() *CancelFlag {
	return &CancelFlag{}
}

// Set raises the flag. Only the first call runs the hooks.
func (f *CancelFlag) Set() {
	if !f.set.CompareAndSwap(false, true) {
		return
	}
	f.mu.Lock()
	hooks := f.hooks
	f.hooks = nil
	f.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}

// IsSet reports whether the flag was raised.
func (f *CancelFlag) IsSet() bool {
	return f.set.Load()
}

// OnSet registers fn to run when the flag is raised. If it already is, fn
// runs immediately.
func (f *CancelFlag) OnSet(fn func()) {
	f.mu.Lock()
	if !f.set.Load() {
		f.hooks = append(f.hooks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}
