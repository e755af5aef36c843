package engine

import (
	"testing"

	"github.com/dokzlo13/taikolights/internal/input"
	"github.com/dokzlo13/taikolights/internal/lighting"
)

var (
	idle    = PressState{AnyPressed: false}
	engaged = PressState{AnyPressed: true}
)

func TestStep(t *testing.T) {
	tests := []struct {
		name      string
		state     PressState
		event     input.Event
		wantState PressState
		wantEmit  bool
		wantColor lighting.Color
	}{
		// === Idle ===
		{
			name:      "idle/red_down",
			state:     idle,
			event:     input.ButtonDown{Button: input.ButtonA},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.RedNormal,
		},
		{
			name:      "idle/blue_down",
			state:     idle,
			event:     input.ButtonDown{Button: input.ButtonLeftShoulder},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.BlueNormal,
		},
		{
			name:      "idle/red_up",
			state:     idle,
			event:     input.ButtonUp{Button: input.ButtonDPadUp},
			wantState: idle,
			wantEmit:  true,
			wantColor: lighting.Off,
		},
		{
			name:      "idle/trigger_positive",
			state:     idle,
			event:     input.AxisMotion{Axis: input.AxisLeftTrigger, Value: 32767},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.BlueNormal,
		},
		{
			name:      "idle/trigger_zero",
			state:     idle,
			event:     input.AxisMotion{Axis: input.AxisRightTrigger, Value: 0},
			wantState: idle,
			wantEmit:  true,
			wantColor: lighting.Off,
		},
		{
			name:      "idle/trigger_negative",
			state:     idle,
			event:     input.AxisMotion{Axis: input.AxisRightTrigger, Value: -32768},
			wantState: idle,
			wantEmit:  true,
			wantColor: lighting.Off,
		},
		{
			name:      "idle/ignored_button",
			state:     idle,
			event:     input.ButtonDown{Button: input.ButtonStart},
			wantState: idle,
		},
		{
			name:      "idle/gyro_axis",
			state:     idle,
			event:     input.AxisMotion{Axis: 6, Value: 1234},
			wantState: idle,
		},
		{
			name:      "idle/quit",
			state:     idle,
			event:     input.Quit{},
			wantState: idle,
		},

		// === Engaged ===
		{
			name:      "engaged/red_down",
			state:     engaged,
			event:     input.ButtonDown{Button: input.ButtonB},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.RedIntense,
		},
		{
			name:      "engaged/blue_down",
			state:     engaged,
			event:     input.ButtonDown{Button: input.ButtonRightShoulder},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.BlueIntense,
		},
		{
			name:      "engaged/trigger_positive",
			state:     engaged,
			event:     input.AxisMotion{Axis: input.AxisRightTrigger, Value: 1},
			wantState: engaged,
			wantEmit:  true,
			wantColor: lighting.BlueIntense,
		},
		{
			name:      "engaged/blue_up_clears_latch",
			state:     engaged,
			event:     input.ButtonUp{Button: input.ButtonLeftShoulder},
			wantState: idle,
			wantEmit:  true,
			wantColor: lighting.Off,
		},
		{
			name:      "engaged/ignored_up",
			state:     engaged,
			event:     input.ButtonUp{Button: input.ButtonGuide},
			wantState: engaged,
		},
		{
			name:      "engaged/gyro_axis",
			state:     engaged,
			event:     input.AxisMotion{Axis: 7, Value: -5},
			wantState: engaged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotState, em := Step(tt.state, tt.event)
			if gotState != tt.wantState {
				t.Errorf("Step() state = %+v, want %+v", gotState, tt.wantState)
			}
			if em.Emit != tt.wantEmit {
				t.Fatalf("Step() emit = %v, want %v", em.Emit, tt.wantEmit)
			}
			if em.Emit && em.Color != tt.wantColor {
				t.Errorf("Step() color = %s, want %s", em.Color, tt.wantColor)
			}
		})
	}
}

func TestStep_RepeatedReleaseIsIdempotent(t *testing.T) {
	state := idle
	for i := 0; i < 3; i++ {
		var em Emission
		state, em = Step(state, input.ButtonUp{Button: input.ButtonA})
		if !em.Emit || em.Color != lighting.Off {
			t.Fatalf("release %d: emission = %+v, want Off", i, em)
		}
		if state.AnyPressed {
			t.Fatalf("release %d: latch still set", i)
		}
	}
}

func TestInterpret(t *testing.T) {
	tests := []struct {
		event input.Event
		cat   input.Category
		tr    Transition
	}{
		{input.ButtonDown{Button: input.ButtonX}, input.RedGroup, TransitionPress},
		{input.ButtonUp{Button: input.ButtonX}, input.RedGroup, TransitionRelease},
		{input.AxisMotion{Axis: input.AxisLeftTrigger, Value: 10}, input.BlueGroup, TransitionPress},
		{input.AxisMotion{Axis: input.AxisLeftTrigger, Value: 0}, input.BlueGroup, TransitionRelease},
		{input.AxisMotion{Axis: 2, Value: 10}, input.Ignored, TransitionNone},
		{input.ButtonDown{Button: 99}, input.Ignored, TransitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.event.Kind()+"/"+tt.tr.String(), func(t *testing.T) {
			cat, tr := Interpret(tt.event)
			if cat != tt.cat || tr != tt.tr {
				t.Errorf("Interpret(%+v) = (%s, %s), want (%s, %s)", tt.event, cat, tr, tt.cat, tt.tr)
			}
		})
	}
}

func TestStep_IntensityField(t *testing.T) {
	_, em := Step(idle, input.ButtonDown{Button: input.ButtonA})
	if em.Intensity != IntensityNormal {
		t.Errorf("first press intensity = %s, want normal", em.Intensity)
	}
	_, em = Step(engaged, input.ButtonDown{Button: input.ButtonA})
	if em.Intensity != IntensityIntense {
		t.Errorf("second press intensity = %s, want intense", em.Intensity)
	}
	_, em = Step(engaged, input.ButtonUp{Button: input.ButtonA})
	if em.Intensity != IntensityOff {
		t.Errorf("release intensity = %s, want off", em.Intensity)
	}
}

func TestStep_IgnoredInputDoesNotLatch(t *testing.T) {
	tests := []struct {
		name   string
		before []input.Event
		want   lighting.Color
	}{
		{"start then red", []input.Event{input.ButtonDown{Button: input.ButtonStart}}, lighting.RedNormal},
		{"guide then red", []input.Event{input.ButtonDown{Button: input.ButtonGuide}}, lighting.RedNormal},
		{"unknown then red", []input.Event{input.ButtonDown{Button: 99}}, lighting.RedNormal},
		{"gyro then red", []input.Event{input.AxisMotion{Axis: 6, Value: 500}}, lighting.RedNormal},
		{"blue then red", []input.Event{input.ButtonDown{Button: input.ButtonLeftShoulder}}, lighting.RedIntense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := idle
			for _, ev := range tt.before {
				state, _ = Step(state, ev)
			}
			_, em := Step(state, input.ButtonDown{Button: input.ButtonA})
			if em.Color != tt.want {
				t.Errorf("color = %s, want %s", em.Color, tt.want)
			}
		})
	}
}
