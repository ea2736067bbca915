package framework

import (
	"context"
	"sync"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Priority is the logical priority of a task.
// A larger value is more urgent.
type Priority int

// Logical priorities.
const (
	PriorityIdle Priority = iota
	PriorityBackground
	PriorityExchange
	PrioritySignaling
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityBackground:
		return "background"
	case PriorityExchange:
		return "exchange"
	case PrioritySignaling:
		return "signaling"
	default:
		return "unknown"
	}
}

// PriorityLevels is the total levels of priorities.
const PriorityLevels int = 16

// Predefine priority levels, 0 is scheduled first.
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvInterrupt is reserved for interrupt handlers, above every task.
	PrLvInterrupt = PrLvTop
)

// Level maps a logical priority to the scheduler level.
// This is the only place the mapping is defined.
func (p Priority) Level() int {
	switch {
	case p >= PrioritySignaling:
		return PrLvHigh
	case p == PriorityExchange:
		return PrLvNormal
	case p == PriorityBackground:
		return PrLvLow
	default:
		return PrLvIdle
	}
}

// Task is an independently scheduled unit of execution at a fixed priority.
type Task struct {
	name     string
	priority Priority
	runnable Runnable

	lock   sync.Mutex
	boosts map[interface{}]Priority
}

// NewTask creates a Task.
func NewTask(name string, priority Priority, runnable Runnable) *Task {
	return &Task{name: name, priority: priority, runnable: runnable}
}

// Name implements Named.
func (t *Task) Name() string {
	return t.name
}

// Priority returns the base priority.
func (t *Task) Priority() Priority {
	return t.priority
}

// EffectivePriority returns the base priority raised by any inherited
// priority currently applied.
func (t *Task) EffectivePriority() Priority {
	t.lock.Lock()
	defer t.lock.Unlock()
	p := t.priority
	for _, b := range t.boosts {
		if b > p {
			p = b
		}
	}
	return p
}

// Inherit applies priority p on behalf of key (usually a held lock).
// A later call with the same key replaces the previous value.
func (t *Task) Inherit(key interface{}, p Priority) {
	t.lock.Lock()
	if t.boosts == nil {
		t.boosts = make(map[interface{}]Priority)
	}
	t.boosts[key] = p
	t.lock.Unlock()
}

// Disinherit removes the priority applied on behalf of key.
func (t *Task) Disinherit(key interface{}) {
	t.lock.Lock()
	delete(t.boosts, key)
	t.lock.Unlock()
}

// Run implements Runnable. The task is available from the context
// passed to the wrapped Runnable.
func (t *Task) Run(ctx context.Context) error {
	if t.runnable == nil {
		return nil
	}
	return t.runnable.Run(WithTask(ctx, t))
}

var taskCtxKey = &Task{}

// WithTask attaches the task to the context.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, taskCtxKey, t)
}

// TaskFrom gets the task from context, nil if absent.
func TaskFrom(ctx context.Context) *Task {
	t, _ := ctx.Value(taskCtxKey).(*Task)
	return t
}

// PriorityFrom gets the effective priority of the task in context.
func PriorityFrom(ctx context.Context) Priority {
	if t := TaskFrom(ctx); t != nil {
		return t.EffectivePriority()
	}
	return PriorityIdle
}

// Delay blocks the calling task for d, or until ctx is done.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
