package lighting

import "fmt"

// Color is an 8-bit RGB triple. It is always applied with full intensity.
type Color struct {
	R, G, B uint8
}

// Fixed palette.
var (
	Off         = Color{0, 0, 0}
	RedNormal   = Color{255, 20, 20}
	RedIntense  = Color{255, 0, 0}
	BlueNormal  = Color{104, 192, 192}
	BlueIntense = Color{0, 0, 255}
)

// FullIntensity is the alpha channel value used for every LED write.
const FullIntensity uint8 = 255

// String returns the palette name when the color is one of the fixed constants,
// otherwise its hex form.
func (c Color) String() string {
	switch c {
	case Off:
		return "off"
	case RedNormal:
		return "red"
	case RedIntense:
		return "red_intense"
	case BlueNormal:
		return "blue"
	case BlueIntense:
		return "blue_intense"
	}
	return c.Hex()
}

// Hex returns the color as #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// IsOff reports whether every channel is zero.
func (c Color) IsOff() bool {
	return c == Off
}

// Group selects which color family a resolved color belongs to.
type Group int

const (
	GroupNone Group = iota
	GroupRed
	GroupBlue
)

// String returns a human-readable name for the group.
func (g Group) String() string {
	switch g {
	case GroupRed:
		return "red"
	case GroupBlue:
		return "blue"
	default:
		return "none"
	}
}

var palette = map[Group][2]Color{
	GroupRed:  {RedNormal, RedIntense},
	GroupBlue: {BlueNormal, BlueIntense},
}

// Resolve maps a group and intensity to its palette color. Unknown groups resolve
// to Off; releasing does not go through here.
func Resolve(group Group, intense bool) Color {
	pair, ok := palette[group]
	if !ok {
		return Off
	}
	if intense {
		return pair[1]
	}
	return pair[0]
}
