package rtos

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/framework"
)

// Mutex is a binary lock owned by at most one task.
//
// Waiters are granted in priority order. While a waiter has a higher
// priority than the owner, the owner inherits that priority until release.
type Mutex struct {
	name string

	lock    sync.Mutex
	owner   *framework.Task
	waiters waitList
}

// NewMutex creates a Mutex.
func NewMutex(name string) *Mutex {
	return &Mutex{name: name}
}

// Name implements framework.Named.
func (m *Mutex) Name() string {
	return m.name
}

// Owner returns the current owner, nil when free.
func (m *Mutex) Owner() *framework.Task {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.owner
}

// Waiting returns the number of blocked waiters.
func (m *Mutex) Waiting() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.waiters.len()
}

// TryAcquire acquires the mutex only if it's free.
func (m *Mutex) TryAcquire(ctx context.Context) bool {
	return m.Acquire(ctx, NoWait) == nil
}

// Acquire blocks the task in ctx until it owns the mutex.
// It returns ErrTimeout after timeout, or ctx.Err() on cancellation.
func (m *Mutex) Acquire(ctx context.Context, timeout time.Duration) error {
	t := framework.TaskFrom(ctx)
	if t == nil {
		return ErrNoTask
	}

	m.lock.Lock()
	switch m.owner {
	case nil:
		m.owner = t
		m.lock.Unlock()
		return nil
	case t:
		m.lock.Unlock()
		return &SequenceError{Op: "acquire " + m.name, Reason: "already owned by " + t.Name()}
	}
	if timeout == NoWait {
		m.lock.Unlock()
		return ErrTimeout
	}
	w := newWaiter(t, t.EffectivePriority())
	m.waiters.push(w)
	m.inherit()
	m.lock.Unlock()

	expired, stop := deadline(timeout)
	defer stop()
	select {
	case <-w.ready:
		return nil
	case <-expired:
		return m.abandon(w, ErrTimeout)
	case <-ctx.Done():
		return m.abandon(w, ctx.Err())
	}
}

// Release gives up ownership. Only the owner may release,
// otherwise it panics with a *SequenceError.
func (m *Mutex) Release(ctx context.Context) {
	t := framework.TaskFrom(ctx)

	m.lock.Lock()
	defer m.lock.Unlock()
	if t == nil || m.owner != t {
		err := &SequenceError{Op: "release " + m.name, Reason: "caller is not the owner"}
		glog.Error(err)
		panic(err)
	}
	t.Disinherit(m)
	m.handOff()
}

func (m *Mutex) abandon(w *waiter, err error) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.waiters.remove(w) {
		m.inherit()
		return err
	}
	// ownership was handed over while giving up, pass it on.
	<-w.ready
	w.task.Disinherit(m)
	m.handOff()
	return err
}

func (m *Mutex) handOff() {
	w := m.waiters.pop()
	if w == nil {
		m.owner = nil
		return
	}
	m.owner = w.task
	m.inherit()
	w.ready <- struct{}{}
}

func (m *Mutex) inherit() {
	if m.owner == nil {
		return
	}
	if p, ok := m.waiters.top(); ok && p > m.owner.Priority() {
		m.owner.Inherit(m, p)
	} else {
		m.owner.Disinherit(m)
	}
}
