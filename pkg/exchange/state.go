package exchange

import (
	"errors"
	"time"

	"github.com/robotalks/rtos.go/pkg/rtos"
)

// State is the protocol state of a Session.
type State int32

// States.
const (
	AwaitConnection State = iota
	Exchanging
	Draining
	Closed
	Failed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case AwaitConnection:
		return "await-connection"
	case Exchanging:
		return "exchanging"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	// ErrClosed is returned when the connection is used after the
	// protocol is closed.
	ErrClosed = &rtos.SequenceError{Op: "session", Reason: "connection used after close"}
	// ErrUnreachable indicates the connection could not be opened within
	// the retry bound.
	ErrUnreachable = errors.New("peer unreachable")
	// ErrNoResponse indicates no response arrived within the read retries.
	ErrNoResponse = errors.New("no response from peer")
)

// Config defines the parameters of the exchange.
type Config struct {
	// Address of the peer, see conn.Mux for supported forms.
	Address string
	// RoundTrips is the number of request/response pairs before closing.
	RoundTrips uint32
	// QueueSize is the capacity of the counter channel.
	QueueSize int
	// OpenRetries bounds the connection attempts, 0 for unlimited.
	OpenRetries int
	// OpenBackoff is the delay between connection attempts.
	OpenBackoff time.Duration
	// ReadRetries bounds the empty reads while awaiting a response.
	ReadRetries int
	// ReadBackoff is the delay between empty reads.
	ReadBackoff time.Duration
	// RoundTripDelay paces consecutive round trips.
	RoundTripDelay time.Duration
	// Heartbeat runs the background blink task on the red output.
	Heartbeat bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Address:        "127.0.0.1:5005",
		RoundTrips:     10,
		QueueSize:      5,
		OpenBackoff:    time.Second,
		ReadRetries:    50,
		ReadBackoff:    10 * time.Millisecond,
		RoundTripDelay: time.Second,
		Heartbeat:      true,
	}
}
