package status

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rtos.go/pkg/gpio"
)

// Publisher publishes events of one device.
type Publisher struct {
	PubSub PubSub
	Device string
}

// NewPublisher creates a Publisher.
func NewPublisher(ps PubSub, device string) *Publisher {
	return &Publisher{PubSub: ps, Device: device}
}

func (p *Publisher) publish(topic string, msg proto.Message) {
	payload, err := proto.Marshal(msg)
	if err != nil {
		glog.Errorf("encode %s: %v", topic, err)
		return
	}
	p.PubSub.Publish(topic, payload)
}

// State publishes a StateEvent.
func (p *Publisher) State(exercise, state string, counter uint32) {
	p.publish(StateTopic(p.Device), &StateEvent{Exercise: exercise, State: state, Counter: counter})
}

// Press publishes a button press.
func (p *Publisher) Press() error {
	token := p.PubSub.Publish(ButtonTopic(p.Device), nil)
	token.Wait()
	return token.Error()
}

// Pin creates a NamedPin publishing its transitions and driving local.
func (p *Publisher) Pin(name string, local gpio.Pin) gpio.NamedPin {
	return &Pin{publisher: p, name: name, local: local}
}

// Board wraps both outputs of board.
func (p *Publisher) Board(board *gpio.Board) *gpio.Board {
	return &gpio.Board{Red: p.Pin("red", board.Red), Green: p.Pin("green", board.Green)}
}

// Pin is an output mirrored to the bus.
type Pin struct {
	publisher *Publisher
	name      string
	local     gpio.Pin
}

// Name implements gpio.NamedPin.
func (p *Pin) Name() string { return p.name }

// High implements gpio.Pin.
func (p *Pin) High() { p.set(true) }

// Low implements gpio.Pin.
func (p *Pin) Low() { p.set(false) }

func (p *Pin) set(high bool) {
	if p.local != nil {
		if high {
			p.local.High()
		} else {
			p.local.Low()
		}
	}
	p.publisher.publish(PinTopic(p.publisher.Device, p.name),
		&PinEvent{Name: p.name, High: high, UnixNano: time.Now().UnixNano()})
}

// Trigger is the interrupt source raised by a press.
type Trigger interface {
	Trigger()
}

// Button triggers an interrupt line for every press received on the bus.
type Button struct {
	PubSub PubSub
	Device string
	Line   Trigger
}

// Run implements framework.Runnable.
func (b *Button) Run(ctx context.Context) error {
	sub, err := b.subscribe()
	if err != nil {
		return err
	}
	defer sub.Close()
	<-ctx.Done()
	return ctx.Err()
}

func (b *Button) subscribe() (io.Closer, error) {
	return b.PubSub.Subscribe(ButtonTopic(b.Device), func(topic string, _ []byte) {
		glog.V(1).Infof("button pressed via %s", topic)
		b.Line.Trigger()
	})
}
