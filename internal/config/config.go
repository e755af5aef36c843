package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Host            HostConfig        `yaml:"host"`
	Discovery       DiscoveryConfig   `yaml:"discovery"`
	Input           InputConfig       `yaml:"input"`
	Log             LogConfig         `yaml:"log"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// Host kinds
const (
	HostOpenRGB = "openrgb"
	HostHue     = "hue"
	HostWLED    = "wled"
)

// HostConfig selects and configures the lighting host
type HostConfig struct {
	Kind    string        `yaml:"kind"` // openrgb (default), hue, wled
	OpenRGB OpenRGBConfig `yaml:"openrgb"`
	Hue     HueConfig     `yaml:"hue"`
	WLED    WLEDConfig    `yaml:"wled"`
}

// OpenRGBConfig contains OpenRGB SDK server settings
type OpenRGBConfig struct {
	Address        string   `yaml:"address"`
	ClientName     string   `yaml:"client_name"`
	DialTimeout    Duration `yaml:"dial_timeout"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge       string   `yaml:"bridge"`
	Token        string   `yaml:"token"`
	Timeout      Duration `yaml:"timeout"`        // HTTP timeout for Hue API requests
	RateLimitRPS float64  `yaml:"rate_limit_rps"` // Bridge request pacing (default: 10)
}

// WLEDConfig contains MQTT settings for WLED strips
type WLEDConfig struct {
	Broker    string      `yaml:"broker"` // e.g. mqtt://localhost:1883
	ClientID  string      `yaml:"client_id"`
	KeepAlive int         `yaml:"keep_alive"` // seconds
	QoS       int         `yaml:"qos"`
	Timeout   Duration    `yaml:"timeout"`
	Strips    []WLEDStrip `yaml:"strips"`
}

// WLEDStrip is one WLED device reachable under Topic
type WLEDStrip struct {
	Name  string `yaml:"name"`
	Topic string `yaml:"topic"`
	Leds  int    `yaml:"leds"`
}

// DiscoveryConfig controls the wait for the host session before enumerating devices
type DiscoveryConfig struct {
	MinBackoff  Duration `yaml:"min_backoff"`  // default: 10ms
	MaxBackoff  Duration `yaml:"max_backoff"`  // default: 500ms
	Multiplier  float64  `yaml:"multiplier"`   // default: 2.0
	MaxAttempts *int     `yaml:"max_attempts"` // default: 200, 0 = retry forever
	MaxDevices  int      `yaml:"max_devices"`  // default: 64
	MaxLeds     int      `yaml:"max_leds"`     // per device, default: 512
}

// Attempts returns the attempt limit, 0 meaning unlimited
func (c *DiscoveryConfig) Attempts() int {
	if c.MaxAttempts == nil {
		return 200
	}
	return *c.MaxAttempts
}

// Input source kinds
const (
	InputJoystick = "joystick"
	InputScript   = "script"
)

// InputConfig selects the input source
type InputConfig struct {
	Kind        string   `yaml:"kind"`         // joystick (default) or script
	Device      string   `yaml:"device"`       // joystick device path
	WaitTimeout Duration `yaml:"wait_timeout"` // how long to wait for the joystick to appear
	Script      string   `yaml:"script"`       // Lua script path for kind=script
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains event ledger settings
type LedgerConfig struct {
	Enabled       bool `yaml:"enabled"` // default: false
	RetentionDays int  `yaml:"retention_days"`
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./taikolights.sqlite"
	}

	// Host defaults
	if cfg.Host.Kind == "" {
		cfg.Host.Kind = HostOpenRGB
	}
	if cfg.Host.OpenRGB.Address == "" {
		cfg.Host.OpenRGB.Address = "127.0.0.1:6742"
	}
	if cfg.Host.OpenRGB.ClientName == "" {
		cfg.Host.OpenRGB.ClientName = "taikolights"
	}
	if cfg.Host.OpenRGB.DialTimeout == 0 {
		cfg.Host.OpenRGB.DialTimeout = Duration(5 * time.Second)
	}
	if cfg.Host.OpenRGB.RequestTimeout == 0 {
		cfg.Host.OpenRGB.RequestTimeout = Duration(2 * time.Second)
	}
	if cfg.Host.Hue.Timeout == 0 {
		cfg.Host.Hue.Timeout = Duration(5 * time.Second)
	}
	if cfg.Host.Hue.RateLimitRPS == 0 {
		cfg.Host.Hue.RateLimitRPS = 10.0 // 10 requests per second
	}
	if cfg.Host.WLED.Broker == "" {
		cfg.Host.WLED.Broker = "mqtt://127.0.0.1:1883"
	}
	if cfg.Host.WLED.ClientID == "" {
		cfg.Host.WLED.ClientID = "taikolights"
	}
	if cfg.Host.WLED.KeepAlive == 0 {
		cfg.Host.WLED.KeepAlive = 20
	}
	if cfg.Host.WLED.Timeout == 0 {
		cfg.Host.WLED.Timeout = Duration(2 * time.Second)
	}

	// Discovery defaults
	if cfg.Discovery.MinBackoff == 0 {
		cfg.Discovery.MinBackoff = Duration(10 * time.Millisecond)
	}
	if cfg.Discovery.MaxBackoff == 0 {
		cfg.Discovery.MaxBackoff = Duration(500 * time.Millisecond)
	}
	if cfg.Discovery.Multiplier == 0 {
		cfg.Discovery.Multiplier = 2.0
	}
	if cfg.Discovery.MaxDevices == 0 {
		cfg.Discovery.MaxDevices = 64
	}
	if cfg.Discovery.MaxLeds == 0 {
		cfg.Discovery.MaxLeds = 512
	}

	// Input defaults
	if cfg.Input.Kind == "" {
		cfg.Input.Kind = InputJoystick
	}
	if cfg.Input.Device == "" {
		cfg.Input.Device = "/dev/input/js0"
	}
	if cfg.Input.WaitTimeout == 0 {
		cfg.Input.WaitTimeout = Duration(30 * time.Second)
	}
	if cfg.Input.Script == "" {
		cfg.Input.Script = "pad.lua"
	}

	// Ledger defaults
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Healthcheck defaults
	if cfg.Healthcheck.Port == 0 {
		cfg.Healthcheck.Port = 9090
	}
	if cfg.Healthcheck.Host == "" {
		cfg.Healthcheck.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch c.Host.Kind {
	case HostOpenRGB, HostWLED:
	case HostHue:
		if c.Host.Hue.Bridge == "" {
			return errors.New("host.hue.bridge is required for the hue host")
		}
	default:
		return fmt.Errorf("unknown host kind %q", c.Host.Kind)
	}

	switch c.Input.Kind {
	case InputJoystick, InputScript:
	default:
		return fmt.Errorf("unknown input kind %q", c.Input.Kind)
	}

	if c.Discovery.Attempts() < 0 {
		return errors.New("discovery.max_attempts must not be negative")
	}
	if c.Discovery.Multiplier < 1 {
		return errors.New("discovery.multiplier must be at least 1")
	}
	if c.Host.WLED.QoS < 0 || c.Host.WLED.QoS > 2 {
		return fmt.Errorf("host.wled.qos must be 0, 1 or 2, got %d", c.Host.WLED.QoS)
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
