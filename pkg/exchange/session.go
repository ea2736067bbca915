// Package exchange implements the ping/pong exercise: a connection owner,
// a sender and a receiver sharing one connection under a mutex.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/robotalks/rtos.go/pkg/blink"
	"github.com/robotalks/rtos.go/pkg/conn"
	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
	"github.com/robotalks/rtos.go/pkg/rtos"
	"github.com/robotalks/rtos.go/pkg/wire"
)

// Session is the context shared by the tasks of one exchange.
type Session struct {
	// OnState is called on every state change and every completed
	// round trip.
	OnState func(State, uint32)

	cfg    Config
	dialer conn.Dialer
	board  *gpio.Board

	lock     *rtos.Mutex
	ready    *rtos.Gate
	permit   *rtos.Gate
	done     *rtos.Gate
	counters *rtos.Queue[uint32]

	// guarded by lock.
	conn        conn.Conn
	outstanding bool

	started  int32
	state    int32
	counter  uint32
	sent     uint32
	received uint32
}

// Stats are the observable counters of a Session.
type Stats struct {
	State    State
	Counter  uint32
	Sent     uint32
	Received uint32
}

// NewSession creates a Session. Nil board disables status outputs.
func NewSession(cfg Config, dialer conn.Dialer, board *gpio.Board) (*Session, error) {
	if cfg.RoundTrips < 1 {
		return nil, fmt.Errorf("invalid round trips %d: %w", cfg.RoundTrips, rtos.ErrResource)
	}
	counters, err := rtos.NewQueue[uint32]("counters", cfg.QueueSize)
	if err != nil {
		return nil, err
	}
	if dialer == nil {
		dialer = conn.DefaultMux
	}
	if board == nil {
		board = &gpio.Board{Red: gpio.Nop{}, Green: gpio.Nop{}}
	}
	return &Session{
		cfg:      cfg,
		dialer:   dialer,
		board:    board,
		lock:     rtos.NewMutex("connection"),
		ready:    rtos.NewGate("ready"),
		permit:   rtos.NewGate("permit"),
		done:     rtos.NewGate("done"),
		counters: counters,
	}, nil
}

// Config returns the configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// State returns the current state.
func (s *Session) State() State {
	return State(atomic.LoadInt32(&s.state))
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return Stats{
		State:    s.State(),
		Counter:  atomic.LoadUint32(&s.counter),
		Sent:     atomic.LoadUint32(&s.sent),
		Received: atomic.LoadUint32(&s.received),
	}
}

// AddToScheduler implements framework.TaskAdder.
func (s *Session) AddToScheduler(sched *fx.Scheduler) {
	sched.Spawn("exchange", fx.PriorityExchange, s)
}

// Run implements framework.Runnable. It runs all tasks of the exchange
// until the protocol is closed or any task fails. A failing task cancels
// the others, so no task is left waiting on a peer which is gone.
func (s *Session) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return &rtos.SequenceError{Op: "session", Reason: "already run"}
	}
	s.notify(AwaitConnection)

	runCtx, finish := context.WithCancel(ctx)
	defer finish()
	g, gctx := errgroup.WithContext(runCtx)

	tasks := []*fx.Task{
		fx.NewTask("coordinator", fx.PriorityExchange, fx.RunFunc(func(ctx context.Context) error {
			if err := s.coordinate(ctx); err != nil {
				return err
			}
			finish()
			return nil
		})),
		fx.NewTask("sender", fx.PriorityExchange, fx.RunFunc(s.sendLoop)),
		fx.NewTask("receiver", fx.PriorityExchange, fx.RunFunc(s.receiveLoop)),
	}
	if s.cfg.Heartbeat {
		tasks = append(tasks, fx.NewTask("blink", fx.PriorityBackground, blink.Heartbeat(s.board.Red)))
	}
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t.Run(gctx)
			if err == nil {
				return nil
			}
			if stopped := gctx.Err(); stopped != nil && errors.Is(err, stopped) {
				if s.State() == Closed {
					return nil
				}
				return err
			}
			glog.Errorf("%s: %v", t.Name(), err)
			return err
		})
	}
	err := g.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		s.closeConn()
		return ctx.Err()
	}
	s.fail(err)
	return err
}

func (s *Session) setState(state State) {
	atomic.StoreInt32(&s.state, int32(state))
	glog.V(1).Infof("exchange state %s", state)
	s.notify(state)
}

func (s *Session) notify(state State) {
	if s.OnState != nil {
		s.OnState(state, atomic.LoadUint32(&s.counter))
	}
}

func (s *Session) fail(err error) {
	s.closeConn()
	s.board.Red.High()
	s.setState(Failed)
	glog.Errorf("exchange failed: %v", err)
}

// closeConn closes the connection without the mutex, only used once all
// tasks are stopped.
func (s *Session) closeConn() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) checkUse(ctx context.Context, op string) error {
	if s.State() >= Closed {
		return ErrClosed
	}
	if owner := s.lock.Owner(); owner == nil || owner != fx.TaskFrom(ctx) {
		return &rtos.SequenceError{Op: op, Reason: "connection used without holding the lock"}
	}
	if s.conn == nil {
		return &rtos.SequenceError{Op: op, Reason: "connection not open"}
	}
	return nil
}

// send writes a request. The caller must hold the lock.
func (s *Session) send(ctx context.Context, f wire.Frame) error {
	if err := s.checkUse(ctx, "send"); err != nil {
		return err
	}
	if s.outstanding {
		return &rtos.SequenceError{Op: "send", Reason: "previous request not answered"}
	}
	if _, err := s.conn.Send(f.Bytes()); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	s.outstanding = true
	atomic.AddUint32(&s.sent, 1)
	return nil
}

// receive reads a response, 0 when nothing arrived yet. The caller must
// hold the lock.
func (s *Session) receive(ctx context.Context, buf []byte) (int, error) {
	if err := s.checkUse(ctx, "receive"); err != nil {
		return 0, err
	}
	if !s.outstanding {
		return 0, &rtos.SequenceError{Op: "receive", Reason: "read before write"}
	}
	n, err := s.conn.Receive(buf)
	if err != nil {
		return n, fmt.Errorf("receive: %w", err)
	}
	if n > 0 {
		s.outstanding = false
		atomic.AddUint32(&s.received, 1)
	}
	return n, nil
}
