package exchange

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/conn"
	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/rtos"
	"github.com/robotalks/rtos.go/pkg/wire"
)

// coordinate owns the connection: it opens it, releases the other tasks
// and closes it after the last round trip.
func (s *Session) coordinate(ctx context.Context) error {
	if err := s.lock.Acquire(ctx, rtos.Forever); err != nil {
		return err
	}
	c, err := s.open(ctx)
	if err == nil {
		s.conn = c
	}
	s.lock.Release(ctx)
	if err != nil {
		return err
	}
	s.setState(Exchanging)
	s.ready.Signal()

	if err := s.done.Wait(ctx, rtos.Forever); err != nil {
		return err
	}
	if err := s.lock.Acquire(ctx, rtos.Forever); err != nil {
		return err
	}
	err = s.conn.Close()
	s.conn = nil
	s.setState(Closed)
	s.lock.Release(ctx)
	if err != nil {
		glog.Warningf("close connection: %v", err)
	}
	glog.Info("PING PONG finished")
	return nil
}

func (s *Session) open(ctx context.Context) (conn.Conn, error) {
	for attempt := 1; ; attempt++ {
		c, err := s.dialer.Open(ctx, s.cfg.Address)
		if err == nil {
			s.board.Red.Low()
			glog.Infof("connected to %s", s.cfg.Address)
			return c, nil
		}
		s.board.Red.High()
		glog.Warningf("open %s failed (attempt %d): %v", s.cfg.Address, attempt, err)
		if s.cfg.OpenRetries > 0 && attempt >= s.cfg.OpenRetries {
			return nil, fmt.Errorf("open %s: %w after %d attempts: %v", s.cfg.Address, ErrUnreachable, attempt, err)
		}
		if err := fx.Delay(ctx, s.cfg.OpenBackoff); err != nil {
			return nil, err
		}
	}
}

// sendLoop sends one request per counter value handed back by the receiver.
func (s *Session) sendLoop(ctx context.Context) error {
	if err := s.ready.Wait(ctx, rtos.Forever); err != nil {
		return err
	}
	var n uint32
	for {
		if err := s.ping(ctx, n); err != nil {
			return err
		}
		s.permit.Signal()
		next, err := s.counters.Receive(ctx, rtos.Forever)
		if err != nil {
			return err
		}
		n = next
	}
}

func (s *Session) ping(ctx context.Context, n uint32) error {
	if err := s.lock.Acquire(ctx, rtos.Forever); err != nil {
		return err
	}
	defer s.lock.Release(ctx)
	s.board.Green.High()
	defer s.board.Green.Low()
	if err := s.send(ctx, wire.Ping(n)); err != nil {
		return err
	}
	glog.Infof("Sent PING %d", n)
	return nil
}

// receiveLoop reads one response per permit and hands the counter back.
func (s *Session) receiveLoop(ctx context.Context) error {
	var counter uint32
	buf := make([]byte, wire.FrameSize)
	for {
		if err := s.permit.Wait(ctx, rtos.Forever); err != nil {
			return err
		}
		n, err := s.pong(ctx, buf)
		if err != nil {
			return err
		}
		glog.Info(wire.Text(buf[:n]))
		counter++
		atomic.StoreUint32(&s.counter, counter)
		if counter >= s.cfg.RoundTrips {
			s.setState(Draining)
			s.done.Signal()
			return nil
		}
		s.notify(Exchanging)
		if err := fx.Delay(ctx, s.cfg.RoundTripDelay); err != nil {
			return err
		}
		if !s.counters.TrySend(counter) {
			return &rtos.SequenceError{Op: "receiver", Reason: fmt.Sprintf("counter channel full at %d", counter)}
		}
	}
}

func (s *Session) pong(ctx context.Context, buf []byte) (int, error) {
	if err := s.lock.Acquire(ctx, rtos.Forever); err != nil {
		return 0, err
	}
	defer s.lock.Release(ctx)
	for attempt := 1; ; attempt++ {
		n, err := s.receive(ctx, buf)
		if err != nil || n > 0 {
			return n, err
		}
		glog.Warningf("no response yet (attempt %d)", attempt)
		s.board.Red.High()
		if s.cfg.ReadRetries > 0 && attempt >= s.cfg.ReadRetries {
			return 0, ErrNoResponse
		}
		err = fx.Delay(ctx, s.cfg.ReadBackoff)
		s.board.Red.Low()
		if err != nil {
			return 0, err
		}
	}
}
