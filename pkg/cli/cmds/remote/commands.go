// Package remote adds shell commands using the status bus.
package remote

import (
	"fmt"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/rtos.go/pkg/cli/sh"
	"github.com/robotalks/rtos.go/pkg/status"
)

// MustHaveBus wraps command func requires the status bus.
func MustHaveBus(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if sh.ShellFrom(c).Env.Bus == nil {
			c.Err(fmt.Errorf("status bus not configured, use -mqtt"))
			return
		}
		fn(c)
	}
}

var (
	// RemotePressCmd presses the button of a device over the bus.
	RemotePressCmd = ishell.Cmd{
		Name:    "remote.press",
		Aliases: []string{"rp"},
		Help:    "[DEVICE]",
		Func: MustHaveBus(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			device := s.Env.Config.Device
			if len(c.Args) > 0 {
				device = c.Args[0]
			}
			if err := status.NewPublisher(s.Env.Bus, device).Press(); err != nil {
				c.Err(err)
			}
		}),
	}

	// RemoteWatchCmd prints events of a device.
	RemoteWatchCmd = ishell.Cmd{
		Name:    "remote.watch",
		Aliases: []string{"rw"},
		Help:    "[DEVICE] [DURATION]",
		Func: MustHaveBus(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			device := s.Env.Config.Device
			if len(c.Args) > 0 {
				device = c.Args[0]
			}
			d := 10 * time.Second
			if len(c.Args) > 1 {
				var err error
				if d, err = time.ParseDuration(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
			}
			sub, err := s.Env.Bus.Subscribe(device+"/#", func(topic string, payload []byte) {
				msg, err := status.Decode(topic, payload)
				switch {
				case err != nil:
					c.Printf("%s: %v\n", topic, err)
				case msg == nil:
					c.Printf("%s\n", topic)
				default:
					c.Printf("%s: %s\n", topic, msg.String())
				}
			})
			if err != nil {
				c.Err(err)
				return
			}
			time.Sleep(d)
			sub.Close()
		}),
	}
)

func init() {
	sh.AddCmds(&RemotePressCmd, &RemoteWatchCmd)
}
