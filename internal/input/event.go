// Package input defines controller input events, the button classifier and the
// Source contract implemented by concrete input transports.
package input

import (
	"context"
	"errors"
	"fmt"
)

// Button is a digital button id as reported by the controller.
type Button uint8

// Standard game-controller button ids.
const (
	ButtonA Button = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonBack
	ButtonGuide
	ButtonStart
	ButtonLeftStick
	ButtonRightStick
	ButtonLeftShoulder
	ButtonRightShoulder
	ButtonDPadUp
	ButtonDPadDown
	ButtonDPadLeft
	ButtonDPadRight
)

var buttonNames = map[Button]string{
	ButtonA:             "a",
	ButtonB:             "b",
	ButtonX:             "x",
	ButtonY:             "y",
	ButtonBack:          "back",
	ButtonGuide:         "guide",
	ButtonStart:         "start",
	ButtonLeftStick:     "left_stick",
	ButtonRightStick:    "right_stick",
	ButtonLeftShoulder:  "left_shoulder",
	ButtonRightShoulder: "right_shoulder",
	ButtonDPadUp:        "dpad_up",
	ButtonDPadDown:      "dpad_down",
	ButtonDPadLeft:      "dpad_left",
	ButtonDPadRight:     "dpad_right",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("button_%d", uint8(b))
}

// ButtonNames returns the known button names keyed by name.
func ButtonNames() map[string]Button {
	out := make(map[string]Button, len(buttonNames))
	for b, name := range buttonNames {
		out[name] = b
	}
	return out
}

// Axis is an analog axis id.
type Axis uint8

// Trigger axes. Other axes, including motion sensors, share the same event kind.
const (
	AxisLeftTrigger  Axis = 4
	AxisRightTrigger Axis = 5
)

// Event is one input occurrence. The concrete types are ButtonDown, ButtonUp,
// AxisMotion and Quit.
type Event interface {
	Kind() string
	isEvent()
}

// ButtonDown is a digital button press.
type ButtonDown struct{ Button Button }

// ButtonUp is a digital button release.
type ButtonUp struct{ Button Button }

// AxisMotion is an analog axis change. Only the sign of Value matters here.
type AxisMotion struct {
	Axis  Axis
	Value int16
}

// Quit asks the event loop to stop.
type Quit struct{}

func (ButtonDown) Kind() string { return "button_down" }
func (ButtonUp) Kind() string   { return "button_up" }
func (AxisMotion) Kind() string { return "axis_motion" }
func (Quit) Kind() string       { return "quit" }

func (ButtonDown) isEvent() {}
func (ButtonUp) isEvent()   {}
func (AxisMotion) isEvent() {}
func (Quit) isEvent()       {}

// ErrUnavailable means no compatible input device could be found or opened.
var ErrUnavailable = errors.New("input device unavailable")

// Source yields input events. Next blocks until an event is available, the
// context ends or the source fails. A source that reaches its end returns Quit.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Name() string
	Close() error
}
