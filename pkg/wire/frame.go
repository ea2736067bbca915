// Package wire encodes the ASCII frames exchanged over the connection.
package wire

import (
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
)

// FrameSize is the fixed size of a request frame.
const FrameSize = 16

// Verbs.
const (
	VerbPing = "PING"
	VerbPong = "PONG"
)

// ErrMalformed indicates the payload is not "<verb> <n>".
var ErrMalformed = errors.New("malformed frame")

// Frame is a NUL padded text buffer.
type Frame [FrameSize]byte

// NewFrame creates a frame from text, truncated to FrameSize.
func NewFrame(text string) (f Frame) {
	copy(f[:], text)
	return
}

// Ping creates the request frame for counter n.
func Ping(n uint32) Frame {
	return NewFrame(VerbPing + " " + strconv.FormatUint(uint64(n), 10))
}

// Pong creates the NUL terminated response for counter k.
func Pong(k uint32) []byte {
	return append([]byte(VerbPong+" "+strconv.FormatUint(uint64(k), 10)), 0)
}

// Bytes returns the whole buffer for sending.
func (f *Frame) Bytes() []byte {
	return f[:]
}

// Text returns the text before the first NUL.
func (f *Frame) Text() string {
	return Text(f[:])
}

// WriteTo writes the whole buffer.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f[:])
	return int64(n), err
}

// Text returns the text in b before the first NUL.
func Text(b []byte) string {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b)
}

// Parse splits "<verb> <n>" and returns both parts.
func Parse(b []byte) (verb string, n uint32, err error) {
	fields := strings.Fields(Text(b))
	if len(fields) != 2 {
		return "", 0, ErrMalformed
	}
	v, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return "", 0, ErrMalformed
	}
	return fields[0], uint32(v), nil
}
