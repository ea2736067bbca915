// Package command implements the button/mutex exercise: an interrupt
// toggles a shared command which a lower priority task executes once.
package command

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
	"github.com/robotalks/rtos.go/pkg/isr"
	"github.com/robotalks/rtos.go/pkg/rtos"
)

// Selector selects the output driven by a command.
type Selector int

// Selectors.
const (
	SelectRed Selector = iota
	SelectGreen
)

// String implements fmt.Stringer.
func (s Selector) String() string {
	if s == SelectGreen {
		return "green"
	}
	return "red"
}

// Command tells which output to pulse and for how long.
type Command struct {
	Selector Selector
	Duration time.Duration
	// Pending is set by the writer and cleared by the reader, both under
	// the mutex.
	Pending bool
	// Seq counts the updates, used to detect duplicated execution.
	Seq uint32
}

// Initial is the command pending at start.
var Initial = Command{Selector: SelectRed, Duration: 100 * time.Millisecond, Pending: true}

// Toggled returns the next pending command.
func (c Command) Toggled() Command {
	next := Command{Selector: SelectRed, Duration: 100 * time.Millisecond, Pending: true, Seq: c.Seq + 1}
	if c.Selector == SelectRed {
		next.Selector, next.Duration = SelectGreen, 500*time.Millisecond
	}
	return next
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return fmt.Sprintf("#%d %s %v", c.Seq, c.Selector, c.Duration)
}

// Shared is the command shared between the tasks.
// It is not synchronized by itself, owners must hold Mutex.
type Shared struct {
	Mutex   *rtos.Mutex
	Command Command
}

// Config defines the timing of the exercise.
type Config struct {
	// MaxExpectedInterval bounds the wait for a button press.
	MaxExpectedInterval time.Duration
	// PollInterval is the delay of the receiver when nothing is pending.
	PollInterval time.Duration
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return Config{
		MaxExpectedInterval: 500 * time.Millisecond,
		PollInterval:        10 * time.Millisecond,
	}
}

// Exercise wires the button interrupt, the shared command and the tasks.
type Exercise struct {
	Config
	Shared *Shared
	Button *rtos.Gate
	Line   *isr.Line
	Board  *gpio.Board

	// OnExecute is called after a command has been executed.
	OnExecute func(Command)

	lock     sync.Mutex
	executed []Command
}

// New creates an Exercise.
func New(cfg Config, board *gpio.Board) *Exercise {
	if board == nil {
		board = &gpio.Board{Red: gpio.Nop{}, Green: gpio.Nop{}}
	}
	gate := rtos.NewGate("button")
	line := isr.NewLine("P1.1", isr.GiveHandler(gate))
	// the receiver is the task usually running when the button is pressed.
	line.Interrupted = fx.PriorityExchange
	return &Exercise{
		Config: cfg,
		Shared: &Shared{Mutex: rtos.NewMutex("command"), Command: Initial},
		Button: gate,
		Line:   line,
		Board:  board,
	}
}

// Press simulates the button edge.
func (e *Exercise) Press() {
	e.Line.Trigger()
}

// Executed returns executed commands in order.
func (e *Exercise) Executed() []Command {
	e.lock.Lock()
	defer e.lock.Unlock()
	return append([]Command(nil), e.executed...)
}

// AddToScheduler implements framework.TaskAdder.
func (e *Exercise) AddToScheduler(s *fx.Scheduler) {
	s.Spawn("sender", fx.PrioritySignaling, fx.RunFunc(e.send))
	s.Spawn("receiver", fx.PriorityExchange, fx.RunFunc(e.receive))
}

func (e *Exercise) send(ctx context.Context) error {
	for {
		err := e.Button.Wait(ctx, e.MaxExpectedInterval)
		if err == rtos.ErrTimeout {
			continue
		}
		if err != nil {
			return err
		}
		if err := e.Shared.Mutex.Acquire(ctx, rtos.Forever); err != nil {
			return err
		}
		e.Shared.Command = e.Shared.Command.Toggled()
		cmd := e.Shared.Command
		e.Shared.Mutex.Release(ctx)
		glog.V(1).Infof("command %s", cmd)
	}
}

func (e *Exercise) receive(ctx context.Context) error {
	for {
		if err := e.Shared.Mutex.Acquire(ctx, rtos.Forever); err != nil {
			return err
		}
		cmd := e.Shared.Command
		e.Shared.Command.Pending = false
		e.Shared.Mutex.Release(ctx)

		if !cmd.Pending {
			if err := fx.Delay(ctx, e.PollInterval); err != nil {
				return err
			}
			continue
		}
		if err := e.execute(ctx, cmd); err != nil {
			return err
		}
	}
}

func (e *Exercise) execute(ctx context.Context, cmd Command) error {
	pin := e.Board.Red
	if cmd.Selector == SelectGreen {
		pin = e.Board.Green
	}
	pin.High()
	err := fx.Delay(ctx, cmd.Duration)
	pin.Low()
	if err != nil {
		return err
	}
	glog.Infof("executed %s", cmd)
	e.lock.Lock()
	e.executed = append(e.executed, cmd)
	e.lock.Unlock()
	if e.OnExecute != nil {
		e.OnExecute(cmd)
	}
	return nil
}
