package wled

import (
	"encoding/json"
	"fmt"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

type message struct {
	Topic   string
	Payload []byte
}

type segment struct {
	ID int      `json:"id"`
	I  []string `json:"i"`
}

type stateUpdate struct {
	On  bool      `json:"on"`
	Seg []segment `json:"seg"`
}

// encode builds the MQTT message for a frame.
func encode(topic string, frame []lighting.Color) message {
	if c, ok := uniform(frame); ok {
		return message{Topic: topic + "/col", Payload: []byte(c.Hex())}
	}

	colors := make([]string, len(frame))
	for i, c := range frame {
		colors[i] = fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
	}
	payload, _ := json.Marshal(stateUpdate{On: true, Seg: []segment{{ID: 0, I: colors}}})
	return message{Topic: topic + "/api", Payload: payload}
}

func uniform(frame []lighting.Color) (lighting.Color, bool) {
	if len(frame) == 0 {
		return lighting.Off, true
	}
	for _, c := range frame[1:] {
		if c != frame[0] {
			return lighting.Color{}, false
		}
	}
	return frame[0], true
}
