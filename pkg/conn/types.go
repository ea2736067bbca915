// Package conn provides byte-stream connections to the exchange peer.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Conn is an open byte-stream connection.
type Conn interface {
	// Send writes p and returns the number of bytes written.
	Send(p []byte) (int, error)
	// Receive reads into p. It returns 0 and nil error when no data
	// arrived within the poll timeout.
	Receive(p []byte) (int, error)
	// Close closes the connection.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Open(ctx context.Context, address string) (Conn, error)
}

// DialFunc is the func form of Dialer.
type DialFunc func(context.Context, string) (Conn, error)

// Open implements Dialer.
func (f DialFunc) Open(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}

// DefaultPollTimeout is how long Receive waits for data.
const DefaultPollTimeout = 100 * time.Millisecond

var (
	// ErrClosed indicates the connection is already closed.
	ErrClosed = errors.New("connection closed")
)

// Mux dispatches to a Dialer by URL scheme.
type Mux struct {
	TCP  Dialer
	WS   Dialer
	Pipe Dialer
}

// DefaultMux is used by Open.
var DefaultMux = &Mux{
	TCP:  &TCPDialer{},
	WS:   &WSDialer{},
	Pipe: DefaultPipes,
}

// Open opens a connection using DefaultMux.
func Open(ctx context.Context, address string) (Conn, error) {
	return DefaultMux.Open(ctx, address)
}

// Open implements Dialer.
// address is either host:port (TCP) or a URL with tcp, ws, wss or pipe scheme.
func (m *Mux) Open(ctx context.Context, address string) (Conn, error) {
	if !strings.Contains(address, "://") {
		return m.TCP.Open(ctx, address)
	}
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %v", address, err)
	}
	switch u.Scheme {
	case "tcp":
		return m.TCP.Open(ctx, u.Host)
	case "ws", "wss":
		return m.WS.Open(ctx, address)
	case "pipe":
		return m.Pipe.Open(ctx, u.Host)
	default:
		return nil, fmt.Errorf("unknown address scheme: %q", u.Scheme)
	}
}
