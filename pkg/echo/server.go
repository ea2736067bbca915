// Package echo implements the peer answering every request with
// "PONG <k>", k counting per connection.
package echo

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/rtos.go/pkg/conn"
	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/wire"
)

// BufferSize is the maximum bytes read at once.
const BufferSize = 256

// Server serves the echo protocol on any configured endpoint.
type Server struct {
	// TCPAddr is the TCP listen address, empty to disable.
	TCPAddr string
	// WSAddr is the HTTP listen address for WebSocket, empty to disable.
	WSAddr string
	// WSPath is the WebSocket endpoint path.
	WSPath string
	// Pipe is the in-process pipe name, empty to disable.
	Pipe string
	// Pipes is the registry for Pipe, conn.DefaultPipes if nil.
	Pipes *conn.Pipes

	conns uint32
}

// Connections returns the number of accepted connections.
func (s *Server) Connections() uint32 {
	return atomic.LoadUint32(&s.conns)
}

// Serve answers requests on rwc until EOF.
func (s *Server) Serve(rwc io.ReadWriteCloser) {
	defer rwc.Close()
	id := atomic.AddUint32(&s.conns, 1)
	glog.Infof("connection %d accepted", id)
	buf := make([]byte, BufferSize)
	for k := uint32(0); ; k++ {
		n, err := rwc.Read(buf)
		if n == 0 || err != nil {
			if err != nil && err != io.EOF {
				glog.Warningf("connection %d: %v", id, err)
			}
			break
		}
		glog.Infof("received data: %s", wire.Text(buf[:n]))
		reply := wire.Pong(k)
		if _, err := rwc.Write(reply); err != nil {
			glog.Warningf("connection %d: %v", id, err)
			break
		}
		glog.Infof("echoed message: %s", wire.Text(reply))
	}
	glog.Infof("connection %d closed", id)
}

// Run implements framework.Runnable. All listeners are opened before any
// is served, so a failure leaves nothing listening.
func (s *Server) Run(ctx context.Context) error {
	var tcpLn, wsLn net.Listener
	if s.TCPAddr != "" {
		ln, err := net.Listen("tcp", s.TCPAddr)
		if err != nil {
			return err
		}
		tcpLn = ln
	}
	if s.WSAddr != "" {
		ln, err := net.Listen("tcp", s.WSAddr)
		if err != nil {
			if tcpLn != nil {
				tcpLn.Close()
			}
			return err
		}
		wsLn = ln
	}

	runner := fx.NewRunnerWith(ctx)
	if tcpLn != nil {
		glog.Infof("echo on tcp %s", tcpLn.Addr())
		runner.Go(fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, tcpLn, func() error { return s.accept(tcpLn) })
		}))
	}
	if wsLn != nil {
		path := s.WSPath
		if path == "" {
			path = "/"
		}
		mux := http.NewServeMux()
		mux.Handle(path, s.WSHandler())
		server := &http.Server{Handler: mux}
		glog.Infof("echo on ws %s%s", wsLn.Addr(), path)
		runner.Go(fx.RunFunc(func(ctx context.Context) error {
			return fx.RunWithContextCloser(ctx, server, func() error { return server.Serve(wsLn) })
		}))
	}
	if s.Pipe != "" {
		pipes := s.Pipes
		if pipes == nil {
			pipes = conn.DefaultPipes
		}
		pipes.Listen(s.Pipe, func(rwc io.ReadWriteCloser) { s.Serve(rwc) })
		runner.Go(fx.RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			pipes.Unlisten(s.Pipe)
			return ctx.Err()
		}))
	}
	return runner.Wait()
}

// WSHandler serves the protocol over WebSocket binary frames.
func (s *Server) WSHandler() websocket.Handler {
	return func(ws *websocket.Conn) {
		ws.PayloadType = websocket.BinaryFrame
		s.Serve(ws)
	}
}

func (s *Server) accept(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.Serve(c)
	}
}

// AddToScheduler implements framework.TaskAdder.
func (s *Server) AddToScheduler(sched *fx.Scheduler) {
	sched.Spawn("echo", fx.PriorityExchange, s)
}
