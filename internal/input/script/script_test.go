package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/taikolights/internal/input"
)

func collect(t *testing.T, s *Script) []input.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out []input.Event
	for {
		ev, err := s.Next(ctx)
		require.NoError(t, err)
		out = append(out, ev)
		if _, ok := ev.(input.Quit); ok {
			return out
		}
	}
}

func TestScript_EmitsEvents(t *testing.T) {
	s, err := Compile("test.lua", `
local pad = require("pad")
local log = require("log")

log.info("drumming", {hits = 2})
pad.down(pad.A)
pad.up("a")
pad.axis(pad.ZR, 32767)
pad.axis(pad.ZR, 0)
pad.press(pad.LEFT_SHOULDER, 0)
`)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []input.Event{
		input.ButtonDown{Button: input.ButtonA},
		input.ButtonUp{Button: input.ButtonA},
		input.AxisMotion{Axis: input.AxisRightTrigger, Value: 32767},
		input.AxisMotion{Axis: input.AxisRightTrigger, Value: 0},
		input.ButtonDown{Button: input.ButtonLeftShoulder},
		input.ButtonUp{Button: input.ButtonLeftShoulder},
		input.Quit{},
	}, collect(t, s))
}

func TestScript_Quit(t *testing.T) {
	s, err := Compile("quit.lua", `
local pad = require("pad")
pad.down(pad.B)
pad.quit()
pad.down(pad.X)
`)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []input.Event{
		input.ButtonDown{Button: input.ButtonB},
		input.Quit{},
	}, collect(t, s))
}

func TestScript_RuntimeErrorEndsSession(t *testing.T) {
	s, err := Compile("bad.lua", `
local pad = require("pad")
pad.down(pad.Y)
pad.down("not_a_button")
`)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []input.Event{
		input.ButtonDown{Button: input.ButtonY},
		input.Quit{},
	}, collect(t, s))
}

func TestScript_CompileErrorIsUnavailable(t *testing.T) {
	_, err := Compile("broken.lua", "pad.down(")
	assert.ErrorIs(t, err, input.ErrUnavailable)
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.lua"))
	assert.ErrorIs(t, err, input.ErrUnavailable)

	path := filepath.Join(t.TempDir(), "pad.lua")
	require.NoError(t, os.WriteFile(path, []byte(`require("pad").down(11)`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.Name())
	assert.Equal(t, []input.Event{input.ButtonDown{Button: input.ButtonDPadUp}, input.Quit{}}, collect(t, s))
}

func TestScript_CloseStopsSleepingScript(t *testing.T) {
	s, err := Compile("sleepy.lua", `
local pad = require("pad")
pad.down(pad.A)
pad.sleep(60000)
pad.up(pad.A)
`)
	require.NoError(t, err)

	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, input.ButtonDown{Button: input.ButtonA}, ev)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the script")
	}
}

func TestScript_CloseBeforeStart(t *testing.T) {
	s, err := Compile("idle.lua", `require("pad").down(0)`)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
