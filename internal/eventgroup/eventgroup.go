// Package eventgroup implements a small set of independently addressable
// boolean flags with blocking wait semantics. It is the coordination
// primitive used for stage readiness barriers, the streaming gate and the
// cooperative shutdown signal.
package eventgroup

import (
	"sync"
	"time"
)

// Bits is a bitmask of flags. Flag meanings are assigned by the caller.
type Bits uint32

// Group holds the current flag state. All methods are safe for concurrent
// use. Waiters are woken on every state change and re-check their mask.
type Group struct {
	mu      sync.Mutex
	bits    Bits
	changed chan struct{}
}

// New returns an empty flag group.
func New() *Group {
	return &Group{changed: make(chan struct{})}
}

// Set raises the given flags and wakes all waiters.
func (g *Group) Set(b Bits) {
	g.mu.Lock()
	if g.bits&b != b {
		g.bits |= b
		g.wakeLocked()
	}
	g.mu.Unlock()
}

// Clear lowers the given flags and wakes all waiters.
func (g *Group) Clear(b Bits) {
	g.mu.Lock()
	if g.bits&b != 0 {
		g.bits &^= b
		g.wakeLocked()
	}
	g.mu.Unlock()
}

// Bits returns a snapshot of the current flag state.
func (g *Group) Bits() Bits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bits
}

// IsSet reports whether every flag in mask is currently raised.
func (g *Group) IsSet(mask Bits) bool {
	return g.Bits()&mask == mask
}

// WaitAny blocks until at least one flag in mask is raised or the timeout
// elapses. It returns the flag snapshot at wake time and whether the
// condition was met.
func (g *Group) WaitAny(mask Bits, timeout time.Duration) (Bits, bool) {
	return g.wait(mask, timeout, func(bits Bits) bool { return bits&mask != 0 })
}

// WaitAll blocks until every flag in mask is raised or the timeout elapses.
func (g *Group) WaitAll(mask Bits, timeout time.Duration) (Bits, bool) {
	return g.wait(mask, timeout, func(bits Bits) bool { return bits&mask == mask })
}

func (g *Group) wait(mask Bits, timeout time.Duration, met func(Bits) bool) (Bits, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		g.mu.Lock()
		bits := g.bits
		if met(bits) {
			g.mu.Unlock()
			return bits, true
		}
		changed := g.changed
		g.mu.Unlock()

		select {
		case <-changed:
		case <-timer.C:
			return g.Bits(), false
		}
	}
}

// wakeLocked closes the current change channel so every waiter re-checks,
// then installs a fresh one. Caller holds g.mu.
func (g *Group) wakeLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}
