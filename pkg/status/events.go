package status

import (
	"fmt"
	"strings"

	"github.com/golang/protobuf/proto"
)

// PinEvent reports a transition of a status output.
type PinEvent struct {
	Name     string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	High     bool   `protobuf:"varint,2,opt,name=high,proto3" json:"high,omitempty"`
	UnixNano int64  `protobuf:"varint,3,opt,name=unix_nano,proto3" json:"unix_nano,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *PinEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PinEvent) Reset() { *m = PinEvent{} }

// String implements proto.Message.
func (m *PinEvent) String() string { return proto.CompactTextString(m) }

// StateEvent reports the progress of an exercise.
type StateEvent struct {
	Exercise string `protobuf:"bytes,1,opt,name=exercise,proto3" json:"exercise,omitempty"`
	State    string `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
	Counter  uint32 `protobuf:"varint,3,opt,name=counter,proto3" json:"counter,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *StateEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StateEvent) Reset() { *m = StateEvent{} }

// String implements proto.Message.
func (m *StateEvent) String() string { return proto.CompactTextString(m) }

// Topic names relative to the device.
const (
	TopicPin    = "pin"
	TopicState  = "state"
	TopicButton = "button"
)

// PinTopic returns the topic of pin events.
func PinTopic(device, name string) string {
	return device + "/" + TopicPin + "/" + name
}

// StateTopic returns the topic of state events.
func StateTopic(device string) string {
	return device + "/" + TopicState
}

// ButtonTopic returns the topic of button presses.
func ButtonTopic(device string) string {
	return device + "/" + TopicButton
}

// Decode decodes the payload according to topic. It returns nil message
// for button presses which have no payload.
func Decode(topic string, payload []byte) (proto.Message, error) {
	items := strings.Split(topic, "/")
	var msg proto.Message
	switch {
	case len(items) >= 3 && items[len(items)-2] == TopicPin:
		msg = &PinEvent{}
	case len(items) >= 2 && items[len(items)-1] == TopicState:
		msg = &StateEvent{}
	case len(items) >= 2 && items[len(items)-1] == TopicButton:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	if err := proto.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("decode %q: %v", topic, err)
	}
	return msg, nil
}
