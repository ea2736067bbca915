package conn

import (
	"context"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/websocket"
)

// WSDialer opens WebSocket connections, each message is a binary frame.
type WSDialer struct {
	Origin      string
	DialTimeout time.Duration
	PollTimeout time.Duration
}

// Open implements Dialer.
func (d *WSDialer) Open(ctx context.Context, address string) (Conn, error) {
	origin := d.Origin
	if origin == "" {
		u, err := url.Parse(address)
		if err != nil {
			return nil, err
		}
		origin = "http://" + u.Host
	}
	config, err := websocket.NewConfig(address, origin)
	if err != nil {
		return nil, err
	}
	config.Dialer = &net.Dialer{Timeout: d.DialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		config.Dialer.Deadline = deadline
	}
	ws, err := websocket.DialConfig(config)
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return NewStream(ws, d.PollTimeout), nil
}
