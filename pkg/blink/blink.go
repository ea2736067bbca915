// Package blink implements periodic status output tasks.
package blink

import (
	"context"
	"runtime"
	"time"

	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
)

// Blinker toggles a pin periodically.
type Blinker struct {
	Pin gpio.Pin
	On  time.Duration
	Off time.Duration
	// Busy spins instead of sleeping, yielding the processor explicitly
	// while spinning.
	Busy bool
	// Count limits the number of cycles, 0 for unlimited.
	Count int
}

// Run implements framework.Runnable.
func (b *Blinker) Run(ctx context.Context) error {
	for i := 0; b.Count == 0 || i < b.Count; i++ {
		b.Pin.High()
		if err := b.wait(ctx, b.On); err != nil {
			b.Pin.Low()
			return err
		}
		b.Pin.Low()
		if err := b.wait(ctx, b.Off); err != nil {
			return err
		}
	}
	return nil
}

func (b *Blinker) wait(ctx context.Context, d time.Duration) error {
	if !b.Busy {
		return fx.Delay(ctx, d)
	}
	until := time.Now().Add(d)
	for time.Now().Before(until) {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// Exercise is a set of blinkers started together.
type Exercise struct {
	Tasks []Task
}

// Task is a Blinker at a priority.
type Task struct {
	Name     string
	Priority fx.Priority
	Blinker  *Blinker
}

// AddToScheduler implements framework.TaskAdder.
func (e *Exercise) AddToScheduler(s *fx.Scheduler) {
	for _, t := range e.Tasks {
		s.Spawn(t.Name, t.Priority, t.Blinker)
	}
}

// Single blinks red 10ms on and 900ms off.
func Single(board *gpio.Board) *Exercise {
	return &Exercise{Tasks: []Task{
		{Name: "red", Priority: fx.PriorityBackground, Blinker: &Blinker{Pin: board.Red, On: 10 * time.Millisecond, Off: 900 * time.Millisecond}},
	}}
}

// Dual blinks red 1s on and 1s off, and green using busy waits at a
// lower priority.
func Dual(board *gpio.Board) *Exercise {
	return &Exercise{Tasks: []Task{
		{Name: "red", Priority: fx.PriorityExchange, Blinker: &Blinker{Pin: board.Red, On: time.Second, Off: time.Second}},
		{Name: "green", Priority: fx.PriorityBackground, Blinker: &Blinker{Pin: board.Green, On: 200 * time.Millisecond, Off: 200 * time.Millisecond, Busy: true}},
	}}
}

// Heartbeat is the 10ms on and 990ms off indicator.
func Heartbeat(pin gpio.Pin) *Blinker {
	return &Blinker{Pin: pin, On: 10 * time.Millisecond, Off: 990 * time.Millisecond}
}
