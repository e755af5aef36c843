// Package engine turns classified input events into lighting broadcasts.
package engine

import (
	"github.com/dokzlo13/taikolights/internal/input"
	"github.com/dokzlo13/taikolights/internal/lighting"
)

// PressState is the single global press latch. AnyPressed is true while at least
// one tracked input is considered held. It is shared across categories: a blue press
// while a red one is held counts as a concurrent press, and releasing any tracked
// input clears it even if another is still physically held. Ignored buttons and
// axes never set it.
type PressState struct {
	AnyPressed bool
}

// Intensity is the output level of an emission.
type Intensity int

const (
	IntensityOff Intensity = iota
	IntensityNormal
	IntensityIntense
)

// String returns a human-readable name for the intensity.
func (i Intensity) String() string {
	switch i {
	case IntensityNormal:
		return "normal"
	case IntensityIntense:
		return "intense"
	default:
		return "off"
	}
}

// Emission is the output of one transition. Emit is false when the event does not
// change the lights.
type Emission struct {
	Emit      bool
	Category  input.Category
	Intensity Intensity
	Color     lighting.Color
}

// Transition is the kind of state change an event requests.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionPress
	TransitionRelease
)

// String returns a human-readable name for the transition.
func (t Transition) String() string {
	switch t {
	case TransitionPress:
		return "press"
	case TransitionRelease:
		return "release"
	default:
		return "none"
	}
}

// Interpret classifies ev and decides which transition it requests.
// Trigger axes press on a positive value and release otherwise.
func Interpret(ev input.Event) (input.Category, Transition) {
	cat := input.Classify(ev)
	if cat == input.Ignored {
		return cat, TransitionNone
	}

	switch e := ev.(type) {
	case input.ButtonDown:
		return cat, TransitionPress
	case input.ButtonUp:
		return cat, TransitionRelease
	case input.AxisMotion:
		if e.Value > 0 {
			return cat, TransitionPress
		}
		return cat, TransitionRelease
	}

	return input.Ignored, TransitionNone
}

// Step applies ev to state. A press resolves its color from the state before the
// event and then latches; a release always emits Off and clears the latch.
func Step(state PressState, ev input.Event) (PressState, Emission) {
	cat, tr := Interpret(ev)

	switch tr {
	case TransitionPress:
		return PressState{AnyPressed: true}, press(state, cat)
	case TransitionRelease:
		return PressState{AnyPressed: false}, Emission{
			Emit:      true,
			Category:  cat,
			Intensity: IntensityOff,
			Color:     lighting.Off,
		}
	}

	return state, Emission{}
}

func press(state PressState, cat input.Category) Emission {
	intensity := IntensityNormal
	if state.AnyPressed {
		intensity = IntensityIntense
	}
	return Emission{
		Emit:      true,
		Category:  cat,
		Intensity: intensity,
		Color:     lighting.Resolve(cat.Group(), intensity == IntensityIntense),
	}
}
