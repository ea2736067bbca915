package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/rtos.go/pkg/framework"
	"github.com/robotalks/rtos.go/pkg/gpio"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func start(t *testing.T, e *Exercise) func() {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- fx.NewScheduler().Add(e).Run(ctx) }()
	return func() {
		cancel()
		require.NoError(t, <-errCh)
	}
}

func TestToggled(t *testing.T) {
	c := Initial.Toggled()
	require.Equal(t, Command{Selector: SelectGreen, Duration: 500 * time.Millisecond, Pending: true, Seq: 1}, c)
	c = c.Toggled()
	require.Equal(t, Command{Selector: SelectRed, Duration: 100 * time.Millisecond, Pending: true, Seq: 2}, c)
}

func TestInitialCommandExecutesOnce(t *testing.T) {
	rec := gpio.NewRecorder()
	e := New(DefaultConfig(), rec.Board())
	stop := start(t, e)
	waitUntil(t, "initial command", func() bool { return len(e.Executed()) == 1 })
	time.Sleep(50 * time.Millisecond)
	stop()
	require.Len(t, e.Executed(), 1)
	require.Equal(t, SelectRed, e.Executed()[0].Selector)
	require.Equal(t, 1, rec.Pulses("red"))
	require.Equal(t, 0, rec.Pulses("green"))
}

func TestPressTogglesCommand(t *testing.T) {
	rec := gpio.NewRecorder()
	e := New(DefaultConfig(), rec.Board())
	stop := start(t, e)
	defer stop()
	waitUntil(t, "initial command", func() bool { return len(e.Executed()) == 1 })

	waitUntil(t, "sender waiting", func() bool { return e.Button.Waiting() == 1 })
	e.Press()
	waitUntil(t, "green command", func() bool { return len(e.Executed()) == 2 })
	require.Equal(t, SelectGreen, e.Executed()[1].Selector)
	require.Equal(t, 500*time.Millisecond, e.Executed()[1].Duration)
	require.Equal(t, 1, rec.Pulses("green"))
	require.Equal(t, uint64(1), e.Line.Stats().Yields)
	require.False(t, e.Line.Pending())
}

func TestNoDoubleExecution(t *testing.T) {
	e := New(Config{MaxExpectedInterval: 20 * time.Millisecond, PollInterval: time.Millisecond}, nil)
	stop := start(t, e)
	for i := 0; i < 20; i++ {
		e.Press()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(700 * time.Millisecond)
	stop()

	executed := e.Executed()
	require.NotEmpty(t, executed)
	for i := 1; i < len(executed); i++ {
		require.True(t, executed[i].Seq > executed[i-1].Seq, "command %s executed after %s", executed[i], executed[i-1])
	}
}

func TestRacingReceiversExecuteOnce(t *testing.T) {
	e := New(Config{MaxExpectedInterval: 20 * time.Millisecond, PollInterval: time.Millisecond}, nil)
	s := fx.NewScheduler()
	s.Spawn("receiver-a", fx.PriorityExchange, fx.RunFunc(e.receive))
	s.Spawn("receiver-b", fx.PriorityExchange, fx.RunFunc(e.receive))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	waitUntil(t, "pending command", func() bool { return len(e.Executed()) == 1 })
	time.Sleep(200 * time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	require.Len(t, e.Executed(), 1)
	require.False(t, e.Shared.Command.Pending)
}
