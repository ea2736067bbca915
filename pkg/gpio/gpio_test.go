package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	board := rec.Board()
	board.Red.High()
	board.Red.Low()
	board.Green.High()
	require.Equal(t, 1, rec.Pulses("red"))
	require.False(t, rec.Level("red"))
	require.True(t, rec.Level("green"))
	require.Len(t, rec.Transitions(), 3)
	require.Len(t, rec.Of("green"), 1)
}

func TestMulti(t *testing.T) {
	rec := NewRecorder()
	m := Multi{rec.Pin("a"), rec.Pin("b"), Nop{}}
	m.High()
	require.True(t, rec.Level("a"))
	require.True(t, rec.Level("b"))
	m.Low()
	require.False(t, rec.Level("a"))
	require.Equal(t, 1, rec.Pulses("b"))
}
