package conn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PipeHandler serves the server end of an in-process connection.
type PipeHandler func(io.ReadWriteCloser)

// Pipes is a registry of in-process listeners addressed as pipe://name.
type Pipes struct {
	PollTimeout time.Duration

	lock     sync.RWMutex
	handlers map[string]PipeHandler
}

// DefaultPipes is the process wide registry.
var DefaultPipes = &Pipes{}

// Listen registers the handler serving name.
func (p *Pipes) Listen(name string, handler PipeHandler) {
	p.lock.Lock()
	if p.handlers == nil {
		p.handlers = make(map[string]PipeHandler)
	}
	p.handlers[name] = handler
	p.lock.Unlock()
}

// Unlisten removes the handler serving name.
func (p *Pipes) Unlisten(name string) {
	p.lock.Lock()
	delete(p.handlers, name)
	p.lock.Unlock()
}

// Open implements Dialer.
func (p *Pipes) Open(ctx context.Context, name string) (Conn, error) {
	p.lock.RLock()
	handler := p.handlers[name]
	p.lock.RUnlock()
	if handler == nil {
		return nil, fmt.Errorf("pipe %q: connection refused", name)
	}
	client, server := NewPipe()
	go handler(server)
	return NewStream(client, p.PollTimeout), nil
}

// NewPipe creates both ends of a buffered, full duplex in-memory stream.
// Writes never block. Both ends support read deadlines.
func NewPipe() (*PipeEnd, *PipeEnd) {
	shared := &pipeState{}
	a := &PipeEnd{state: shared, in: newPipeBuffer()}
	b := &PipeEnd{state: shared, in: newPipeBuffer()}
	a.out, b.out = b.in, a.in
	return a, b
}

type pipeState struct {
	lock   sync.Mutex
	closed bool
}

type pipeBuffer struct {
	lock   sync.Mutex
	buf    bytes.Buffer
	notify chan struct{}
}

func newPipeBuffer() *pipeBuffer {
	return &pipeBuffer{notify: make(chan struct{}, 1)}
}

func (b *pipeBuffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// PipeEnd is one end of a pipe.
type PipeEnd struct {
	state    *pipeState
	in, out  *pipeBuffer
	deadline time.Time
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func (e *PipeEnd) isClosed() bool {
	e.state.lock.Lock()
	defer e.state.lock.Unlock()
	return e.state.closed
}

// SetReadDeadline implements Deadliner.
func (e *PipeEnd) SetReadDeadline(t time.Time) error {
	e.deadline = t
	return nil
}

// Read implements io.Reader.
func (e *PipeEnd) Read(p []byte) (int, error) {
	var expired <-chan time.Time
	if !e.deadline.IsZero() {
		timer := time.NewTimer(time.Until(e.deadline))
		defer timer.Stop()
		expired = timer.C
	}
	for {
		e.in.lock.Lock()
		if e.in.buf.Len() > 0 {
			n, err := e.in.buf.Read(p)
			e.in.lock.Unlock()
			return n, err
		}
		e.in.lock.Unlock()
		if e.isClosed() {
			return 0, io.EOF
		}
		select {
		case <-e.in.notify:
		case <-expired:
			return 0, timeoutError{}
		}
	}
}

// Write implements io.Writer.
func (e *PipeEnd) Write(p []byte) (int, error) {
	if e.isClosed() {
		return 0, io.ErrClosedPipe
	}
	e.out.lock.Lock()
	n, err := e.out.buf.Write(p)
	e.out.lock.Unlock()
	e.out.wake()
	return n, err
}

// Close implements io.Closer, closing both directions.
func (e *PipeEnd) Close() error {
	e.state.lock.Lock()
	e.state.closed = true
	e.state.lock.Unlock()
	e.in.wake()
	e.out.wake()
	return nil
}
