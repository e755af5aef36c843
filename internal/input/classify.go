package input

import "github.com/dokzlo13/taikolights/internal/lighting"

// Category is the semantic group of an input.
type Category int

const (
	Ignored Category = iota
	RedGroup
	BlueGroup
)

// String returns a human-readable name for the category.
func (c Category) String() string {
	switch c {
	case RedGroup:
		return "red"
	case BlueGroup:
		return "blue"
	default:
		return "ignored"
	}
}

// Group maps the category to its color family.
func (c Category) Group() lighting.Group {
	switch c {
	case RedGroup:
		return lighting.GroupRed
	case BlueGroup:
		return lighting.GroupBlue
	default:
		return lighting.GroupNone
	}
}

// Drum face: face buttons and d-pad. Drum rim: shoulders and triggers.
var (
	redButtons = map[Button]struct{}{
		ButtonA:         {},
		ButtonB:         {},
		ButtonX:         {},
		ButtonY:         {},
		ButtonDPadUp:    {},
		ButtonDPadDown:  {},
		ButtonDPadLeft:  {},
		ButtonDPadRight: {},
	}
	blueButtons = map[Button]struct{}{
		ButtonLeftShoulder:  {},
		ButtonRightShoulder: {},
	}
	triggerAxes = map[Axis]struct{}{
		AxisLeftTrigger:  {},
		AxisRightTrigger: {},
	}
)

// ClassifyButton returns the category of a digital button.
func ClassifyButton(b Button) Category {
	if _, ok := redButtons[b]; ok {
		return RedGroup
	}
	if _, ok := blueButtons[b]; ok {
		return BlueGroup
	}
	return Ignored
}

// IsTriggerAxis reports whether the axis is one of the two meaningful trigger axes.
func IsTriggerAxis(a Axis) bool {
	_, ok := triggerAxes[a]
	return ok
}

// Classify returns the category of an event. Trigger axes are BlueGroup regardless
// of direction; unknown buttons and axes are Ignored.
func Classify(ev Event) Category {
	switch e := ev.(type) {
	case ButtonDown:
		return ClassifyButton(e.Button)
	case ButtonUp:
		return ClassifyButton(e.Button)
	case AxisMotion:
		if IsTriggerAxis(e.Axis) {
			return BlueGroup
		}
	}
	return Ignored
}
