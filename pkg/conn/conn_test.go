package conn

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeReceiveNoData(t *testing.T) {
	client, server := NewPipe()
	c := NewStream(client, 10*time.Millisecond)
	buf := make([]byte, 16)
	n, err := c.Receive(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = server.Write([]byte("PONG 0\x00"))
	require.NoError(t, err)
	n, err = c.Receive(buf)
	require.NoError(t, err)
	require.Equal(t, "PONG 0\x00", string(buf[:n]))

	require.NoError(t, c.Close())
	_, err = server.Read(buf)
	require.Equal(t, io.EOF, err)
	_, err = c.Send([]byte("x"))
	require.Error(t, err)
}

func TestPipesRegistry(t *testing.T) {
	pipes := &Pipes{PollTimeout: 10 * time.Millisecond}
	_, err := pipes.Open(context.Background(), "peer")
	require.Error(t, err)

	pipes.Listen("peer", func(rwc io.ReadWriteCloser) {
		io.Copy(rwc, rwc)
	})
	defer pipes.Unlisten("peer")

	m := &Mux{TCP: DialFunc(func(context.Context, string) (Conn, error) {
		t.Fatal("unexpected tcp dial")
		return nil, nil
	}), Pipe: pipes}
	c, err := m.Open(context.Background(), "pipe://peer")
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Send([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	var n int
	for i := 0; i < 100 && n == 0; i++ {
		n, err = c.Receive(buf)
		require.NoError(t, err)
	}
	require.Equal(t, "hello", string(buf[:n]))
}

func TestMuxSchemes(t *testing.T) {
	var got []string
	dialer := func(kind string) Dialer {
		return DialFunc(func(_ context.Context, addr string) (Conn, error) {
			got = append(got, kind+" "+addr)
			return nil, nil
		})
	}
	m := &Mux{TCP: dialer("tcp"), WS: dialer("ws"), Pipe: dialer("pipe")}
	ctx := context.Background()
	for _, addr := range []string{"10.0.0.1:8000", "tcp://10.0.0.1:8001", "ws://h:80/echo", "pipe://p"} {
		_, err := m.Open(ctx, addr)
		require.NoError(t, err)
	}
	_, err := m.Open(ctx, "udp://h:1")
	require.Error(t, err)
	require.Equal(t, []string{
		"tcp 10.0.0.1:8000",
		"tcp 10.0.0.1:8001",
		"ws ws://h:80/echo",
		"pipe p",
	}, got)
}

func TestTCPReceivePoll(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	d := &TCPDialer{DialTimeout: time.Second, PollTimeout: 10 * time.Millisecond}
	c, err := d.Open(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer c.Close()
	server := <-accepted
	defer server.Close()

	buf := make([]byte, 16)
	n, err := c.Receive(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = server.Write([]byte("PONG 3\x00"))
	require.NoError(t, err)
	var total int
	for i := 0; i < 100 && total == 0; i++ {
		total, err = c.Receive(buf)
		require.NoError(t, err)
	}
	require.Equal(t, "PONG 3\x00", string(buf[:total]))
}
