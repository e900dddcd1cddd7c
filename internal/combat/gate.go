package combat

import (
	"sync"
	"sync/atomic"
)

// Gate is an external flag that suppresses timed phase progression while held,
// for example while the mulligan screen is still open.
type Gate interface {
	Held() bool
}

// Open is a gate that is never held.
var Open Gate = openGate{}

type openGate struct{}

func (openGate) Held() bool { return false }

// AnyOf returns a gate that is held while any of gates is held.
func AnyOf(gates ...Gate) Gate {
	return anyGate(gates)
}

type anyGate []Gate

func (g anyGate) Held() bool {
	for _, gate := range g {
		if gate != nil && gate.Held() {
			return true
		}
	}
	return false
}

// Latch is a Gate that can be toggled from outside.
type Latch struct {
	held atomic.Bool

	mu        sync.Mutex
	onRelease []func()
}

// NewLatch returns a latch in the given state.
func NewLatch(held bool) *Latch {
	l := &Latch{}
	l.held.Store(held)
	return l
}

func (l *Latch) Held() bool {
	return l.held.Load()
}

// Hold sets the latch.
func (l *Latch) Hold() {
	l.held.Store(true)
}

// Release clears the latch and runs the release hooks if it was held.
func (l *Latch) Release() {
	if !l.held.Swap(false) {
		return
	}
	l.mu.Lock()
	hooks := append([]func(){}, l.onRelease...)
	l.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// OnRelease registers fn to be called every time the latch is released.
func (l *Latch) OnRelease(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onRelease = append(l.onRelease, fn)
}
