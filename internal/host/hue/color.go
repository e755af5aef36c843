package hue

import (
	"math"

	"github.com/amimof/huego"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// transitionTime is in deciseconds. huego tags the field omitempty, so 0 is never
// sent and the bridge would apply its 400ms default; 1 is the fastest fade a request
// can carry.
const transitionTime = 1

// StateFor converts an LED color into a light state. Black turns the light off.
func StateFor(lc lighting.LedColor) huego.State {
	c := lighting.Color{R: scale(lc.R, lc.A), G: scale(lc.G, lc.A), B: scale(lc.B, lc.A)}
	if c.IsOff() {
		return huego.State{On: false, TransitionTime: transitionTime}
	}
	x, y, bri := RGBToXY(c)
	return huego.State{
		On:             true,
		Bri:            bri,
		Xy:             []float32{x, y},
		TransitionTime: transitionTime,
	}
}

func scale(v, a uint8) uint8 {
	return uint8(uint16(v) * uint16(a) / 255)
}

// RGBToXY converts sRGB to CIE 1931 xy and a bridge brightness in 1..254,
// using the wide gamut D65 matrix.
func RGBToXY(c lighting.Color) (x, y float32, bri uint8) {
	r := linearize(c.R)
	g := linearize(c.G)
	b := linearize(c.B)

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		return 0, 0, 1
	}

	level := math.Round(Y * 254)
	level = math.Max(1, math.Min(254, level))
	return float32(X / sum), float32(Y / sum), uint8(level)
}

func linearize(v uint8) float64 {
	f := float64(v) / 255
	if f > 0.04045 {
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	return f / 12.92
}
