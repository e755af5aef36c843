package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, HostOpenRGB, cfg.Host.Kind)
	assert.Equal(t, "127.0.0.1:6742", cfg.Host.OpenRGB.Address)
	assert.Equal(t, InputJoystick, cfg.Input.Kind)
	assert.Equal(t, 10*time.Millisecond, cfg.Discovery.MinBackoff.Duration())
	assert.Equal(t, 500*time.Millisecond, cfg.Discovery.MaxBackoff.Duration())
	assert.Equal(t, 2.0, cfg.Discovery.Multiplier)
	assert.Equal(t, 200, cfg.Discovery.Attempts())
	assert.Equal(t, 64, cfg.Discovery.MaxDevices)
	assert.Equal(t, 512, cfg.Discovery.MaxLeds)
	assert.False(t, cfg.Ledger.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("TAIKO_BRIDGE", "10.0.0.5")

	path := writeConfig(t, `
host:
  kind: hue
  hue:
    bridge: ${TAIKO_BRIDGE}
    token: ${TAIKO_TOKEN:secret}
discovery:
  max_attempts: 0
  max_backoff: 1s
input:
  kind: script
  script: demo.lua
log:
  level: DEBUG
  json: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Host.Hue.Bridge)
	assert.Equal(t, "secret", cfg.Host.Hue.Token)
	assert.Equal(t, 0, cfg.Discovery.Attempts(), "explicit zero means unlimited")
	assert.Equal(t, time.Second, cfg.Discovery.MaxBackoff.Duration())
	assert.Equal(t, 10*time.Millisecond, cfg.Discovery.MinBackoff.Duration())
	assert.Equal(t, "demo.lua", cfg.Input.Script)
	assert.Equal(t, "debug", cfg.Log.GetLevel())
	assert.True(t, cfg.Log.UseJSON)
}

func TestLoad_WLEDStrips(t *testing.T) {
	path := writeConfig(t, `
host:
  kind: wled
  wled:
    broker: mqtt://broker:1883
    strips:
      - name: desk
        topic: wled/desk
        leds: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Host.WLED.Strips, 1)
	assert.Equal(t, WLEDStrip{Name: "desk", Topic: "wled/desk", Leds: 60}, cfg.Host.WLED.Strips[0])
	assert.Equal(t, 20, cfg.Host.WLED.KeepAlive)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown host", "host:\n  kind: dmx\n"},
		{"hue without bridge", "host:\n  kind: hue\n"},
		{"unknown input", "input:\n  kind: keyboard\n"},
		{"negative attempts", "discovery:\n  max_attempts: -1\n"},
		{"bad duration", "discovery:\n  min_backoff: soon\n"},
		{"bad qos", "host:\n  wled:\n    qos: 3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, Default(), cfg)

	cfg, found, err = LoadOrDefault(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TAIKO_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"${TAIKO_SET}", "value"},
		{"${TAIKO_UNSET}", ""},
		{"${TAIKO_UNSET:fallback}", "fallback"},
		{"a ${TAIKO_SET:x} b", "a value b"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.in), tt.in)
	}
}
