package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtos.go/pkg/conn"
	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
	"github.com/robotalks/rtos.go/pkg/rtos"
	"github.com/robotalks/rtos.go/pkg/wire"
)

// fakePeer answers every request with "PONG k" unless silent.
type fakePeer struct {
	lock    sync.Mutex
	events  []string
	pending [][]byte
	k       uint32
	silent  bool
	// lag is the number of empty reads before each response.
	lag     int
	empty   int
}

func (p *fakePeer) Send(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.events = append(p.events, "send "+wire.Text(b))
	if !p.silent {
		p.pending = append(p.pending, wire.Pong(p.k))
		p.k++
	}
	return len(b), nil
}

func (p *fakePeer) Receive(b []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if len(p.pending) == 0 {
		return 0, nil
	}
	if p.empty < p.lag {
		p.empty++
		return 0, nil
	}
	p.empty = 0
	n := copy(b, p.pending[0])
	p.pending = p.pending[1:]
	p.events = append(p.events, "recv "+wire.Text(b[:n]))
	return n, nil
}

func (p *fakePeer) Close() error {
	p.lock.Lock()
	p.events = append(p.events, "close")
	p.lock.Unlock()
	return nil
}

func (p *fakePeer) Events() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.events...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OpenBackoff = time.Millisecond
	cfg.ReadBackoff = time.Millisecond
	cfg.RoundTripDelay = 0
	cfg.Heartbeat = false
	return cfg
}

func dialPeer(p *fakePeer, failures int) (conn.Dialer, *int) {
	var attempts int
	return conn.DialFunc(func(context.Context, string) (conn.Conn, error) {
		attempts++
		if attempts <= failures {
			return nil, errors.New("connection refused")
		}
		return p, nil
	}), &attempts
}

func TestExchangeRoundTrips(t *testing.T) {
	peer := &fakePeer{}
	dialer, _ := dialPeer(peer, 0)
	rec := gpio.NewRecorder()
	cfg := testConfig()
	cfg.Heartbeat = true
	s, err := NewSession(cfg, dialer, rec.Board())
	require.NoError(t, err)
	var lock sync.Mutex
	var states []State
	s.OnState = func(st State, _ uint32) {
		lock.Lock()
		if len(states) == 0 || states[len(states)-1] != st {
			states = append(states, st)
		}
		lock.Unlock()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	var expected []string
	for i := 0; i < 10; i++ {
		expected = append(expected, fmt.Sprintf("send PING %d", i), fmt.Sprintf("recv PONG %d", i))
	}
	expected = append(expected, "close")
	require.Equal(t, expected, peer.Events())
	require.Equal(t, Stats{State: Closed, Counter: 10, Sent: 10, Received: 10}, s.Stats())
	require.Equal(t, 10, rec.Pulses("green"))
	require.False(t, rec.Level("green"))
	require.Equal(t, []State{AwaitConnection, Exchanging, Draining, Closed}, states)

	err = s.send(fx.WithTask(ctx, fx.NewTask("t", fx.PriorityExchange, nil)), wire.Ping(10))
	require.Equal(t, ErrClosed, err)
	require.True(t, rtos.IsFatal(err))

	err = s.Run(ctx)
	require.True(t, rtos.IsFatal(err))
}

func TestExchangeOpenRetries(t *testing.T) {
	testCases := []struct {
		name     string
		failures int
		retries  int
		err      error
		attempts int
	}{
		{"connects after failures", 2, 0, nil, 3},
		{"gives up at bound", 100, 3, ErrUnreachable, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			peer := &fakePeer{}
			dialer, attempts := dialPeer(peer, tc.failures)
			rec := gpio.NewRecorder()
			cfg := testConfig()
			cfg.OpenRetries = tc.retries
			cfg.RoundTrips = 1
			s, err := NewSession(cfg, dialer, rec.Board())
			require.NoError(t, err)
			err = s.Run(context.Background())
			require.Equal(t, tc.attempts, *attempts)
			if tc.err == nil {
				require.NoError(t, err)
				require.False(t, rec.Level("red"))
				return
			}
			require.True(t, errors.Is(err, tc.err))
			require.Equal(t, Failed, s.State())
			require.True(t, rec.Level("red"))
			require.Empty(t, peer.Events())
		})
	}
}

func TestExchangeNoResponseStopsAllTasks(t *testing.T) {
	peer := &fakePeer{silent: true}
	dialer, _ := dialPeer(peer, 0)
	rec := gpio.NewRecorder()
	cfg := testConfig()
	cfg.ReadRetries = 3
	cfg.Heartbeat = true
	s, err := NewSession(cfg, dialer, rec.Board())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()
	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, ErrNoResponse))
	case <-time.After(5 * time.Second):
		t.Fatal("exchange tasks left blocked")
	}
	require.Equal(t, Failed, s.State())
	require.True(t, rec.Level("red"))
	require.Equal(t, []string{"send PING 0", "close"}, peer.Events())
}

func TestEmptyReadsPulseRed(t *testing.T) {
	peer := &fakePeer{lag: 2}
	dialer, _ := dialPeer(peer, 0)
	rec := gpio.NewRecorder()
	cfg := testConfig()
	cfg.RoundTrips = 1
	s, err := NewSession(cfg, dialer, rec.Board())
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))
	require.Equal(t, 2, rec.Pulses("red"))
	require.False(t, rec.Level("red"))
	require.Equal(t, []string{"send PING 0", "recv PONG 0", "close"}, peer.Events())
}

func TestExchangeCancel(t *testing.T) {
	peer := &fakePeer{}
	dialer, _ := dialPeer(peer, 0)
	cfg := testConfig()
	cfg.RoundTripDelay = time.Hour
	s, err := NewSession(cfg, dialer, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, s.Run(ctx))
	require.NotEqual(t, Failed, s.State())
}

func TestReceiverFullChannelIsFatal(t *testing.T) {
	peer := &fakePeer{}
	cfg := testConfig()
	cfg.QueueSize = 1
	s, err := NewSession(cfg, nil, nil)
	require.NoError(t, err)
	require.True(t, s.counters.TrySend(99))

	ctx := fx.WithTask(context.Background(), fx.NewTask("receiver", fx.PriorityExchange, nil))
	s.conn = peer
	ping := wire.Ping(0)
	peer.Send(ping.Bytes())
	s.outstanding = true
	s.permit.Signal()

	err = s.receiveLoop(ctx)
	var seqErr *rtos.SequenceError
	require.True(t, errors.As(err, &seqErr))
	require.Equal(t, "receiver", seqErr.Op)
}

func TestConnectionUseChecks(t *testing.T) {
	peer := &fakePeer{}
	s, err := NewSession(testConfig(), nil, nil)
	require.NoError(t, err)
	s.conn = peer
	ctx := fx.WithTask(context.Background(), fx.NewTask("t", fx.PriorityExchange, nil))
	buf := make([]byte, wire.FrameSize)

	_, err = s.receive(ctx, buf)
	require.True(t, rtos.IsFatal(err), "use without lock")

	require.NoError(t, s.lock.Acquire(ctx, rtos.NoWait))
	defer s.lock.Release(ctx)
	_, err = s.receive(ctx, buf)
	require.True(t, rtos.IsFatal(err), "read before write")
	require.NoError(t, s.send(ctx, wire.Ping(0)))
	require.True(t, rtos.IsFatal(s.send(ctx, wire.Ping(1))), "second write without response")
	n, err := s.receive(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, "PONG 0", wire.Text(buf[:n]))
}

func TestNewSessionResources(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 0
	_, err := NewSession(cfg, nil, nil)
	require.True(t, errors.Is(err, rtos.ErrResource))

	cfg = testConfig()
	cfg.RoundTrips = 0
	_, err = NewSession(cfg, nil, nil)
	require.True(t, errors.Is(err, rtos.ErrResource))
}
