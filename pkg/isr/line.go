// Package isr models interrupt sources and the restricted interrupt context.
package isr

import (
	"sync"
	"sync/atomic"

	"github.com/robotalks/rtos.go/pkg/framework"
)

// Giver is the interrupt-safe part of a gate.
type Giver interface {
	SignalFromISR(interrupted framework.Priority) bool
}

// Sender is the interrupt-safe part of a queue.
type Sender[T any] interface {
	TrySendFromISR(v T) bool
}

// Handler is an interrupt service routine.
// It must only use the operations exposed by Frame.
type Handler func(*Frame)

// Frame is the execution context of one interrupt.
// It exposes no blocking operation.
type Frame struct {
	line  *Line
	woken bool
}

// Name returns the name of the line which raised the interrupt.
func (f *Frame) Name() string {
	return f.line.Name
}

// Pending tells if the hardware pending flag is set.
func (f *Frame) Pending() bool {
	return atomic.LoadUint32(&f.line.pending) != 0
}

// ClearPending clears the hardware pending flag.
func (f *Frame) ClearPending() {
	atomic.StoreUint32(&f.line.pending, 0)
}

// Give raises a gate. It reports whether a higher priority task was woken.
func (f *Frame) Give(g Giver) bool {
	woken := g.SignalFromISR(f.line.Interrupted)
	f.woken = f.woken || woken
	return woken
}

// TrySend enqueues v from interrupt context without waiting.
func TrySend[T any](f *Frame, q Sender[T], v T) bool {
	return q.TrySendFromISR(v)
}

// YieldFromISR requests a context switch on exit if a higher priority
// task was woken during this interrupt, otherwise it has no effect.
func (f *Frame) YieldFromISR() bool {
	if f.woken {
		atomic.AddUint64(&f.line.yields, 1)
	}
	return f.woken
}

// Stats are counters of a Line.
type Stats struct {
	Triggers uint64
	Handled  uint64
	Yields   uint64
}

// Line is an edge triggered interrupt source.
type Line struct {
	Name string
	// Interrupted is the priority of the context preempted by the
	// interrupt, used to decide if a context switch is needed.
	Interrupted framework.Priority

	handler Handler
	lock    sync.Mutex

	pending  uint32
	triggers uint64
	handled  uint64
	yields   uint64
}

// NewLine creates a Line with handler attached.
func NewLine(name string, handler Handler) *Line {
	return &Line{Name: name, handler: handler, Interrupted: framework.PriorityIdle}
}

// Trigger latches the pending flag and runs the handler.
// Handlers of the same line never run concurrently.
func (l *Line) Trigger() {
	atomic.AddUint64(&l.triggers, 1)
	atomic.StoreUint32(&l.pending, 1)
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.handler == nil {
		return
	}
	l.handler(&Frame{line: l})
	atomic.AddUint64(&l.handled, 1)
}

// Pending tells if the pending flag is still set.
func (l *Line) Pending() bool {
	return atomic.LoadUint32(&l.pending) != 0
}

// Stats returns the counters.
func (l *Line) Stats() Stats {
	return Stats{
		Triggers: atomic.LoadUint64(&l.triggers),
		Handled:  atomic.LoadUint64(&l.handled),
		Yields:   atomic.LoadUint64(&l.yields),
	}
}

// GiveHandler is the common handler which clears the pending flag,
// raises the gate and yields if needed.
func GiveHandler(g Giver) Handler {
	return func(f *Frame) {
		f.ClearPending()
		f.Give(g)
		f.YieldFromISR()
	}
}
