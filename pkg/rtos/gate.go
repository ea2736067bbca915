package rtos

import (
	"context"
	"sync"
	"time"

	"github.com/robotalks/rtos.go/pkg/framework"
)

// Gate is a binary signal handing control to exactly one waiter.
//
// Signals are not counted: raising an already raised gate is a no-op
// apart from the Coalesced counter.
type Gate struct {
	name string

	// lock guards a short critical section and is never held while
	// blocking, so the gate can be raised from interrupt context.
	lock      sync.Mutex
	raised    bool
	waiters   waitList
	coalesced uint64
}

// NewGate creates a Gate in clear state.
func NewGate(name string) *Gate {
	return &Gate{name: name}
}

// Name implements framework.Named.
func (g *Gate) Name() string {
	return g.name
}

// Signal raises the gate. It returns true if a waiting task was released.
func (g *Gate) Signal() bool {
	_, woken := g.give()
	return woken
}

// SignalFromISR raises the gate from interrupt context. It returns true
// if the released waiter has a higher priority than the interrupted one,
// which means a context switch should be requested.
func (g *Gate) SignalFromISR(interrupted framework.Priority) bool {
	p, woken := g.give()
	return woken && p > interrupted
}

// Raised tells if the gate is armed with no waiter consuming it yet.
func (g *Gate) Raised() bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.raised
}

// Coalesced returns the number of signals absorbed by an already raised gate.
func (g *Gate) Coalesced() uint64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.coalesced
}

// Waiting returns the number of blocked waiters.
func (g *Gate) Waiting() int {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.waiters.len()
}

// Wait blocks until the gate is raised and consumes it.
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) error {
	g.lock.Lock()
	if g.raised {
		g.raised = false
		g.lock.Unlock()
		return nil
	}
	if timeout == NoWait {
		g.lock.Unlock()
		return ErrTimeout
	}
	w := newWaiter(framework.TaskFrom(ctx), framework.PriorityFrom(ctx))
	g.waiters.push(w)
	g.lock.Unlock()

	expired, stop := deadline(timeout)
	defer stop()
	select {
	case <-w.ready:
		return nil
	case <-expired:
		if !g.abandon(w) {
			return nil
		}
		return ErrTimeout
	case <-ctx.Done():
		if !g.abandon(w) {
			// don't swallow the signal.
			g.give()
		}
		return ctx.Err()
	}
}

func (g *Gate) give() (framework.Priority, bool) {
	g.lock.Lock()
	defer g.lock.Unlock()
	if w := g.waiters.pop(); w != nil {
		w.ready <- struct{}{}
		return w.priority, true
	}
	if g.raised {
		g.coalesced++
	}
	g.raised = true
	return framework.PriorityIdle, false
}

// abandon returns false if the signal was delivered concurrently.
func (g *Gate) abandon(w *waiter) bool {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.waiters.remove(w)
}
