// Package env provides the common configuration of the exercise binaries.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/rtos.go/pkg/command"
	"github.com/robotalks/rtos.go/pkg/exchange"
	"github.com/robotalks/rtos.go/pkg/gpio"
	"github.com/robotalks/rtos.go/pkg/status"
)

// AppID salts the machine ID so the device name is not the raw ID.
const AppID = "tasklab"

// Config provides common options of the exercises.
type Config struct {
	// Device names this instance on the status bus.
	Device string
	// MQTTURL specifies the MQTT broker for status, empty to disable.
	// e.g. mqtt://host:port/topic-prefix/
	MQTTURL string
	// ConnectTimeout bounds connecting to the broker.
	ConnectTimeout time.Duration

	Exchange exchange.Config
	Command  command.Config
}

var defaultConfig = Config{
	ConnectTimeout: 5 * time.Second,
	Exchange:       exchange.DefaultConfig(),
	Command:        command.DefaultConfig(),
}

func init() {
	if val := os.Getenv("TASKLAB_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("TASKLAB_SERVER"); val != "" {
		defaultConfig.Exchange.Address = val
	}
	if val := os.Getenv("TASKLAB_DEVICE"); val != "" {
		defaultConfig.Device = val
	} else {
		defaultConfig.Device = DeviceID()
	}
}

// DeviceID derives a short stable name from the machine ID.
func DeviceID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "local"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	c := &defaultConfig
	flag.StringVar(&c.Device, "device", c.Device, "Device name on the status bus.")
	flag.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL for status, empty to disable.")
	flag.StringVar(&c.Exchange.Address, "server", c.Exchange.Address, "Echo server address: host:port, ws://host:port/path or pipe://name.")
	flag.Var(uint32Value{&c.Exchange.RoundTrips}, "pings", "Number of round trips.")
	flag.IntVar(&c.Exchange.OpenRetries, "open-retries", c.Exchange.OpenRetries, "Connection attempts, 0 for unlimited.")
	flag.DurationVar(&c.Exchange.OpenBackoff, "open-backoff", c.Exchange.OpenBackoff, "Delay between connection attempts.")
	flag.IntVar(&c.Exchange.ReadRetries, "read-retries", c.Exchange.ReadRetries, "Empty reads before giving up.")
	flag.DurationVar(&c.Exchange.RoundTripDelay, "pace", c.Exchange.RoundTripDelay, "Delay between round trips.")
	flag.DurationVar(&c.Command.MaxExpectedInterval, "button-wait", c.Command.MaxExpectedInterval, "Max wait for a button press.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Env is the runtime environment built from Config.
type Env struct {
	Config *Config
	Board  *gpio.Board
	// Bus is nil when status publishing is disabled.
	Bus       *status.Bus
	Publisher *status.Publisher
}

// NewEnv connects the status bus if configured and creates the board.
func (c *Config) NewEnv() (*Env, error) {
	e := &Env{
		Config: c,
		Board:  &gpio.Board{Red: &gpio.LogPin{PinName: "red"}, Green: &gpio.LogPin{PinName: "green"}},
	}
	if c.MQTTURL == "" {
		return e, nil
	}
	bus, err := status.NewBus(c.MQTTURL, AppID+":"+c.Device)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %v", err)
	}
	if err := bus.Connect(c.ConnectTimeout); err != nil {
		return nil, fmt.Errorf("connect MQTT broker: %v", err)
	}
	e.Bus = bus
	e.Publisher = status.NewPublisher(bus, c.Device)
	e.Board = e.Publisher.Board(e.Board)
	return e, nil
}

// MustNewEnv creates Env or fails.
func (c *Config) MustNewEnv() *Env {
	e, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return e
}

// PublishState publishes an exercise state if status is enabled.
func (e *Env) PublishState(exercise, state string, counter uint32) {
	if e.Publisher != nil {
		e.Publisher.State(exercise, state, counter)
	}
}

// Close releases the bus.
func (e *Env) Close() error {
	if e.Bus != nil {
		return e.Bus.Close()
	}
	return nil
}

type uint32Value struct {
	p *uint32
}

func (v uint32Value) String() string {
	if v.p == nil {
		return "0"
	}
	return fmt.Sprint(*v.p)
}

func (v uint32Value) Set(s string) error {
	var n uint32
	if _, err := fmt.Sscan(s, &n); err != nil {
		return err
	}
	*v.p = n
	return nil
}
