// Package sh provides the interactive shell driving the exercises.
package sh

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rtos.go/pkg/blink"
	"github.com/robotalks/rtos.go/pkg/command"
	"github.com/robotalks/rtos.go/pkg/env"
	"github.com/robotalks/rtos.go/pkg/exchange"
	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/status"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool

	Shell *ishell.Shell
	Env   *env.Env

	lock    sync.Mutex
	running *Running
}

// Running is an exercise running in background.
type Running struct {
	Name    string
	Cancel  func()
	Done    chan error
	Command *command.Exercise
	Session *exchange.Session
}

const (
	shellKey    = "$shell"
	idlePrompt  = "[idle] > "
	busyPromptF = "[%s] > "
)

var (
	evalOnly bool

	commands = []*ishell.Cmd{
		&BlinkCmd,
		&MutexCmd,
		&PressCmd,
		&PingCmd,
		&StatusCmd,
		&StopCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
}

// AddCmds adds more commands, must be called before New.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(e *env.Env) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		Shell:       ishell.New(),
		Env:         e,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(idlePrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Running returns the exercise in background, nil if none.
func (s *Shell) Running() *Running {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// Start runs the tasks added by adder in background.
func (s *Shell) Start(name string, adders ...fx.TaskAdder) (*Running, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.running != nil {
		return nil, fmt.Errorf("%s is running, stop it first", s.running.Name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Running{Name: name, Cancel: cancel, Done: make(chan error, 1)}
	sched := fx.NewScheduler().Add(adders...)
	go func() {
		err := sched.Run(ctx)
		s.lock.Lock()
		if s.running == r {
			s.running = nil
			s.Shell.SetPrompt(idlePrompt)
		}
		s.lock.Unlock()
		r.Done <- err
	}()
	s.running = r
	s.Shell.SetPrompt(fmt.Sprintf(busyPromptF, name))
	return r, nil
}

// Stop stops the exercise in background and waits for it.
func (s *Shell) Stop() error {
	r := s.Running()
	if r == nil {
		return nil
	}
	r.Cancel()
	return <-r.Done
}

// Wait waits for the running exercise for at most d, 0 for unlimited,
// then stops it.
func (s *Shell) Wait(r *Running, d time.Duration) error {
	var timeout <-chan time.Time
	if d > 0 {
		timeout = time.After(d)
	}
	select {
	case err := <-r.Done:
		return err
	case <-timeout:
	}
	r.Cancel()
	return <-r.Done
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Env.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		if err := s.Stop(); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		s.Stop()
		return
	}
	log.Fatalln("command expected")
}

// durationArg parses args[i] as duration, 0 when absent.
func durationArg(args []string, i int) (time.Duration, error) {
	if len(args) <= i {
		return 0, nil
	}
	return time.ParseDuration(args[i])
}

// finish waits for a started exercise in eval mode or for a duration.
func finish(c *ishell.Context, r *Running, d time.Duration) {
	s := ShellFrom(c)
	if d == 0 && s.Interactive {
		c.Printf("%s started\n", r.Name)
		return
	}
	if err := s.Wait(r, d); err != nil && !errors.Is(err, context.Canceled) {
		c.Err(err)
	}
}

var (
	// BlinkCmd runs the blink exercises.
	BlinkCmd = ishell.Cmd{
		Name: "blink",
		Help: "[single|dual] [DURATION]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			preset := "single"
			if len(c.Args) > 0 {
				preset = c.Args[0]
			}
			var ex *blink.Exercise
			switch preset {
			case "single":
				ex = blink.Single(s.Env.Board)
			case "dual":
				ex = blink.Dual(s.Env.Board)
			default:
				c.Err(fmt.Errorf("unknown preset %q", preset))
				return
			}
			d, err := durationArg(c.Args, 1)
			if err != nil {
				c.Err(err)
				return
			}
			r, err := s.Start("blink-"+preset, ex)
			if err != nil {
				c.Err(err)
				return
			}
			finish(c, r, d)
		},
	}

	// MutexCmd runs the button/mutex exercise.
	MutexCmd = ishell.Cmd{
		Name: "mutex",
		Help: "[DURATION]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			d, err := durationArg(c.Args, 0)
			if err != nil {
				c.Err(err)
				return
			}
			ex := command.New(s.Env.Config.Command, s.Env.Board)
			ex.OnExecute = func(cmd command.Command) {
				s.Env.PublishState("command", cmd.Selector.String(), cmd.Seq)
			}
			adders := []fx.TaskAdder{ex}
			if s.Env.Bus != nil {
				adders = append(adders, buttonAdder{&status.Button{
					PubSub: s.Env.Bus,
					Device: s.Env.Config.Device,
					Line:   ex.Line,
				}})
			}
			r, err := s.Start("mutex", adders...)
			if err != nil {
				c.Err(err)
				return
			}
			r.Command = ex
			finish(c, r, d)
		},
	}

	// PressCmd presses the button of the mutex exercise.
	PressCmd = ishell.Cmd{
		Name:    "press",
		Aliases: []string{"p"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			r := ShellFrom(c).Running()
			if r == nil || r.Command == nil {
				c.Err(fmt.Errorf("mutex exercise not running"))
				return
			}
			count := 1
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				count = n
			}
			for i := 0; i < count; i++ {
				r.Command.Press()
			}
			c.Printf("%+v\n", r.Command.Line.Stats())
		},
	}

	// PingCmd runs the ping/pong exchange.
	PingCmd = ishell.Cmd{
		Name: "ping",
		Help: "[COUNT] [ADDRESS]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			cfg := s.Env.Config.Exchange
			if len(c.Args) > 0 {
				n, err := strconv.ParseUint(c.Args[0], 10, 32)
				if err != nil {
					c.Err(err)
					return
				}
				cfg.RoundTrips = uint32(n)
			}
			if len(c.Args) > 1 {
				cfg.Address = c.Args[1]
			}
			sess, err := exchange.NewSession(cfg, nil, s.Env.Board)
			if err != nil {
				c.Err(err)
				return
			}
			sess.OnState = func(state exchange.State, counter uint32) {
				s.Env.PublishState("exchange", state.String(), counter)
			}
			r, err := s.Start("ping", sess)
			if err != nil {
				c.Err(err)
				return
			}
			r.Session = sess
			if s.Interactive {
				c.Printf("ping %s started\n", cfg.Address)
				return
			}
			if err := <-r.Done; err != nil {
				c.Err(err)
			}
			c.Printf("%+v\n", sess.Stats())
		},
	}

	// StatusCmd prints the state of the running exercise.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			r := ShellFrom(c).Running()
			switch {
			case r == nil:
				c.Println("idle")
			case r.Session != nil:
				c.Printf("%s %+v\n", r.Name, r.Session.Stats())
			case r.Command != nil:
				c.Printf("%s executed %d, %+v\n", r.Name, len(r.Command.Executed()), r.Command.Line.Stats())
			default:
				c.Println(r.Name)
			}
		},
	}

	// StopCmd stops the running exercise.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Stop(); err != nil && !errors.Is(err, context.Canceled) {
				c.Err(err)
			}
		},
	}
)

type buttonAdder struct {
	button *status.Button
}

func (a buttonAdder) AddToScheduler(s *fx.Scheduler) {
	s.Spawn("button", fx.PrioritySignaling, a.button)
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig().MustNewEnv()).Run(flag.Args()...)
}
