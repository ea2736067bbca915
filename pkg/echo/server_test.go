package echo

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/rtos.go/pkg/conn"
	"github.com/robotalks/rtos.go/pkg/exchange"
	"github.com/robotalks/rtos.go/pkg/wire"
)

func receive(t *testing.T, c conn.Conn) string {
	buf := make([]byte, BufferSize)
	for i := 0; i < 100; i++ {
		n, err := c.Receive(buf)
		require.NoError(t, err)
		if n > 0 {
			return string(buf[:n])
		}
	}
	t.Fatal("no response")
	return ""
}

func TestServeNumbersResponses(t *testing.T) {
	client, server := conn.NewPipe()
	s := &Server{}
	done := make(chan struct{})
	go func() {
		s.Serve(server)
		close(done)
	}()
	c := conn.NewStream(client, 10*time.Millisecond)
	for i := uint32(0); i < 3; i++ {
		f := wire.Ping(i + 7)
		_, err := c.Send(f.Bytes())
		require.NoError(t, err)
		require.Equal(t, string(wire.Pong(i)), receive(t, c))
	}
	require.NoError(t, c.Close())
	<-done
	require.Equal(t, uint32(1), s.Connections())
}

func TestWebSocketEcho(t *testing.T) {
	s := &Server{}
	hs := httptest.NewServer(s.WSHandler())
	defer hs.Close()

	d := &conn.WSDialer{DialTimeout: time.Second, PollTimeout: 10 * time.Millisecond}
	c, err := d.Open(context.Background(), "ws"+strings.TrimPrefix(hs.URL, "http"))
	require.NoError(t, err)
	defer c.Close()
	f := wire.Ping(0)
	_, err = c.Send(f.Bytes())
	require.NoError(t, err)
	require.Equal(t, "PONG 0", wire.Text([]byte(receive(t, c))))
}

func TestExchangeAgainstServer(t *testing.T) {
	pipes := &conn.Pipes{PollTimeout: 10 * time.Millisecond}
	s := &Server{Pipe: "peer", Pipes: pipes}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	cfg := exchange.DefaultConfig()
	cfg.Address = "peer"
	cfg.RoundTrips = 3
	cfg.RoundTripDelay = 0
	cfg.OpenBackoff = time.Millisecond
	cfg.Heartbeat = false
	sess, err := exchange.NewSession(cfg, pipes, nil)
	require.NoError(t, err)
	require.NoError(t, sess.Run(ctx))
	stats := sess.Stats()
	require.Equal(t, exchange.Closed, stats.State)
	require.Equal(t, uint32(3), stats.Received)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRunClosesListenersOnFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := &Server{TCPAddr: addr, WSAddr: "256.0.0.1:bad"}
	require.Error(t, s.Run(context.Background()))

	ln, err = net.Listen("tcp", addr)
	require.NoError(t, err, "tcp listener left open")
	ln.Close()
}
