package input

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		expected Category
	}{
		{"down/a", ButtonDown{ButtonA}, RedGroup},
		{"down/b", ButtonDown{ButtonB}, RedGroup},
		{"down/x", ButtonDown{ButtonX}, RedGroup},
		{"down/y", ButtonDown{ButtonY}, RedGroup},
		{"down/dpad_up", ButtonDown{ButtonDPadUp}, RedGroup},
		{"down/dpad_down", ButtonDown{ButtonDPadDown}, RedGroup},
		{"down/dpad_left", ButtonDown{ButtonDPadLeft}, RedGroup},
		{"down/dpad_right", ButtonDown{ButtonDPadRight}, RedGroup},
		{"up/a", ButtonUp{ButtonA}, RedGroup},
		{"down/left_shoulder", ButtonDown{ButtonLeftShoulder}, BlueGroup},
		{"up/right_shoulder", ButtonUp{ButtonRightShoulder}, BlueGroup},
		{"down/start", ButtonDown{ButtonStart}, Ignored},
		{"down/guide", ButtonDown{ButtonGuide}, Ignored},
		{"down/back", ButtonDown{ButtonBack}, Ignored},
		{"down/left_stick", ButtonDown{ButtonLeftStick}, Ignored},
		{"down/unknown", ButtonDown{Button(200)}, Ignored},
		{"up/unknown", ButtonUp{Button(255)}, Ignored},
		{"axis/left_trigger_positive", AxisMotion{AxisLeftTrigger, 1200}, BlueGroup},
		{"axis/right_trigger_negative", AxisMotion{AxisRightTrigger, -32768}, BlueGroup},
		{"axis/stick_x", AxisMotion{0, 32767}, Ignored},
		{"axis/gyro", AxisMotion{6, 500}, Ignored},
		{"axis/unknown", AxisMotion{250, 1}, Ignored},
		{"quit", Quit{}, Ignored},
		{"nil", nil, Ignored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.event))
		})
	}
}

func TestClassifyButton_AllIdsAreSafe(t *testing.T) {
	red, blue := 0, 0
	for i := 0; i <= 255; i++ {
		switch ClassifyButton(Button(i)) {
		case RedGroup:
			red++
		case BlueGroup:
			blue++
		}
	}
	assert.Equal(t, 8, red)
	assert.Equal(t, 2, blue)
}

func TestCategoryGroup(t *testing.T) {
	assert.Equal(t, lighting.GroupRed, RedGroup.Group())
	assert.Equal(t, lighting.GroupBlue, BlueGroup.Group())
	assert.Equal(t, lighting.GroupNone, Ignored.Group())
}

func TestButtonNames(t *testing.T) {
	names := ButtonNames()
	assert.Equal(t, ButtonLeftShoulder, names["left_shoulder"])
	assert.Equal(t, "dpad_left", ButtonDPadLeft.String())
	assert.Equal(t, "button_99", Button(99).String())
}
