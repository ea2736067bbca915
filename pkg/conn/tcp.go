package conn

import (
	"context"
	"io"
	"net"
	"os"
	"time"
)

// TCPDialer opens TCP connections.
type TCPDialer struct {
	DialTimeout time.Duration
	PollTimeout time.Duration
}

// Open implements Dialer.
func (d *TCPDialer) Open(ctx context.Context, address string) (Conn, error) {
	dialer := &net.Dialer{Timeout: d.DialTimeout}
	c, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return NewStream(c, d.PollTimeout), nil
}

// Deadliner is implemented by streams supporting read deadlines.
type Deadliner interface {
	SetReadDeadline(time.Time) error
}

// Stream adapts a net.Conn like stream to Conn.
type Stream struct {
	RWC         io.ReadWriteCloser
	PollTimeout time.Duration
}

// NewStream wraps rwc. It must implement Deadliner for Receive to poll.
func NewStream(rwc io.ReadWriteCloser, pollTimeout time.Duration) *Stream {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Stream{RWC: rwc, PollTimeout: pollTimeout}
}

// Send implements Conn.
func (s *Stream) Send(p []byte) (int, error) {
	return s.RWC.Write(p)
}

// Receive implements Conn.
func (s *Stream) Receive(p []byte) (int, error) {
	if d, ok := s.RWC.(Deadliner); ok {
		if err := d.SetReadDeadline(time.Now().Add(s.PollTimeout)); err != nil {
			return 0, err
		}
	}
	n, err := s.RWC.Read(p)
	if err != nil && os.IsTimeout(err) {
		return n, nil
	}
	return n, err
}

// Close implements Conn.
func (s *Stream) Close() error {
	return s.RWC.Close()
}
