// Package gpio defines digital outputs used as status indicators.
package gpio

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Pin is a digital output. Operations are fire-and-forget.
type Pin interface {
	High()
	Low()
}

// NamedPin is a Pin with a name.
type NamedPin interface {
	Pin
	Name() string
}

// Board provides the status outputs used by the exercises.
type Board struct {
	Red   Pin
	Green Pin
}

// Nop is a Pin doing nothing.
type Nop struct{}

// High implements Pin.
func (Nop) High() {}

// Low implements Pin.
func (Nop) Low() {}

// Multi drives several pins together.
type Multi []Pin

// High implements Pin.
func (m Multi) High() {
	for _, p := range m {
		p.High()
	}
}

// Low implements Pin.
func (m Multi) Low() {
	for _, p := range m {
		p.Low()
	}
}

// LogPin writes a log line per transition.
type LogPin struct {
	PinName string
}

// Name implements NamedPin.
func (p *LogPin) Name() string { return p.PinName }

// High implements Pin.
func (p *LogPin) High() { glog.V(1).Infof("pin %s high", p.PinName) }

// Low implements Pin.
func (p *LogPin) Low() { glog.V(1).Infof("pin %s low", p.PinName) }

// Transition is a recorded pin change.
type Transition struct {
	Pin  string
	High bool
	Time time.Time
}

// Recorder records transitions of all pins created from it.
type Recorder struct {
	lock        sync.Mutex
	transitions []Transition
	levels      map[string]bool
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{levels: make(map[string]bool)}
}

// Pin creates a NamedPin backed by the recorder.
func (r *Recorder) Pin(name string) NamedPin {
	return &recordedPin{name: name, rec: r}
}

// Board creates a Board with recorded "red" and "green" pins.
func (r *Recorder) Board() *Board {
	return &Board{Red: r.Pin("red"), Green: r.Pin("green")}
}

// Transitions returns a copy of all transitions.
func (r *Recorder) Transitions() []Transition {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Transition(nil), r.transitions...)
}

// Of returns transitions of a single pin.
func (r *Recorder) Of(name string) []Transition {
	var res []Transition
	for _, t := range r.Transitions() {
		if t.Pin == name {
			res = append(res, t)
		}
	}
	return res
}

// Level returns the current level of a pin.
func (r *Recorder) Level(name string) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.levels[name]
}

// Pulses counts low-to-high transitions of a pin.
func (r *Recorder) Pulses(name string) int {
	var n int
	for _, t := range r.Of(name) {
		if t.High {
			n++
		}
	}
	return n
}

func (r *Recorder) set(name string, high bool) {
	r.lock.Lock()
	r.transitions = append(r.transitions, Transition{Pin: name, High: high, Time: time.Now()})
	r.levels[name] = high
	r.lock.Unlock()
}

type recordedPin struct {
	name string
	rec  *Recorder
}

func (p *recordedPin) Name() string { return p.name }
func (p *recordedPin) High()        { p.rec.set(p.name, true) }
func (p *recordedPin) Low()         { p.rec.set(p.name, false) }
