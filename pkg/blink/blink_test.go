package blink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
)

func TestBlinkerCount(t *testing.T) {
	for _, busy := range []bool{false, true} {
		rec := gpio.NewRecorder()
		b := &Blinker{Pin: rec.Pin("red"), On: time.Millisecond, Off: time.Millisecond, Busy: busy, Count: 3}
		require.NoError(t, b.Run(context.Background()))
		require.Equal(t, 3, rec.Pulses("red"))
		require.False(t, rec.Level("red"))
	}
}

func TestBlinkerCancelLeavesPinLow(t *testing.T) {
	rec := gpio.NewRecorder()
	b := &Blinker{Pin: rec.Pin("red"), On: time.Hour, Off: time.Hour}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Equal(t, context.DeadlineExceeded, b.Run(ctx))
	require.False(t, rec.Level("red"))
	require.Equal(t, 1, rec.Pulses("red"))
}

func TestDualPriorities(t *testing.T) {
	rec := gpio.NewRecorder()
	s := fx.NewScheduler().Add(Dual(rec.Board()))
	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	require.Equal(t, "red", tasks[0].Name())
	require.Equal(t, fx.PriorityExchange, tasks[0].Priority())
	require.Equal(t, fx.PriorityBackground, tasks[1].Priority())
}
