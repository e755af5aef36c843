// Package hue implements lighting.Host for a Philips Hue bridge. Every color-capable
// light is one device with a single LED.
package hue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// ClientAPIVersion is the bridge API revision this client was written against.
var ClientAPIVersion = lighting.Version{Major: 1, Minor: 16}

// bridge is the subset of *huego.Bridge used here.
type bridge interface {
	GetConfigContext(ctx context.Context) (*huego.Config, error)
	GetLightsContext(ctx context.Context) ([]huego.Light, error)
	SetLightStateContext(ctx context.Context, id int, state huego.State) (*huego.Response, error)
}

// Config configures the Hue host.
type Config struct {
	Bridge       string
	Token        string
	Timeout      time.Duration
	RateLimitRPS float64
}

// Client drives Hue lights through the bridge's v1 REST API.
type Client struct {
	cfg     Config
	bridge  bridge
	limiter *rate.Limiter

	mu        sync.Mutex
	connected bool
	closed    bool
	onState   lighting.SessionHandler
	lights    map[lighting.DeviceID]int
	staged    map[lighting.DeviceID]lighting.LedColor
	queue     *lighting.FlushQueue[pending]

	cancel context.CancelFunc
	ctx    context.Context
}

var _ lighting.Host = (*Client)(nil)

// New creates a Hue host for the bridge at cfg.Bridge.
func New(cfg Config) *Client {
	return newWithBridge(cfg, huego.New(cfg.Bridge, cfg.Token))
}

func newWithBridge(cfg Config, b bridge) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 10.0
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		cfg:     cfg,
		bridge:  b,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(1, int(cfg.RateLimitRPS))),
		lights:  make(map[lighting.DeviceID]int),
		staged:  make(map[lighting.DeviceID]lighting.LedColor),
		ctx:     ctx,
		cancel:  cancel,
	}
	c.queue = lighting.NewFlushQueue(c.flush)
	return c
}

// Connect verifies the bridge in the background; Devices fails with
// CodeNotConnected until it answers.
func (c *Client) Connect(ctx context.Context, onState lighting.SessionHandler) error {
	if c.cfg.Bridge == "" {
		return errors.New("hue: bridge address is required")
	}

	c.mu.Lock()
	c.onState = onState
	c.mu.Unlock()

	c.notify(lighting.SessionStateChanged{State: lighting.SessionConnecting})
	go c.establish(ctx)
	return nil
}

func (c *Client) notify(ev lighting.SessionStateChanged) {
	c.mu.Lock()
	h := c.onState
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (c *Client) establish(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	conf, err := c.bridge.GetConfigContext(ctx)
	if err != nil {
		c.notify(lighting.SessionStateChanged{State: lighting.FailureState(err), Err: err})
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.connected = true
	c.mu.Unlock()

	log.Debug().
		Str("component", "hue").
		Str("bridge", conf.Name).
		Str("api_version", conf.APIVersion).
		Msg("Bridge answered")

	c.notify(lighting.SessionStateChanged{
		State:  lighting.SessionConnected,
		Server: lighting.ParseVersion(conf.APIVersion),
		Client: ClientAPIVersion,
	})
}

// Devices lists the color-capable lights, ordered by light id.
func (c *Client) Devices(ctx context.Context, max int) ([]lighting.DeviceInfo, error) {
	c.mu.Lock()
	ok := c.connected
	c.mu.Unlock()
	if !ok {
		return nil, lighting.NewTransportError("devices", lighting.CodeNotConnected, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	all, err := c.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, lighting.NewTransportError("devices", lighting.CodeUnknown, err)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	lights := make(map[lighting.DeviceID]int)
	devices := make([]lighting.DeviceInfo, 0, len(all))
	for _, l := range all {
		if !colorCapable(l) {
			log.Debug().Str("component", "hue").Int("light", l.ID).Str("type", l.Type).Msg("Skipping light without color")
			continue
		}
		if max > 0 && len(devices) >= max {
			break
		}
		id := lighting.DeviceID("hue:" + strconv.Itoa(l.ID))
		lights[id] = l.ID
		devices = append(devices, lighting.DeviceInfo{ID: id, Model: l.Name, Kind: l.Type})
	}

	c.mu.Lock()
	c.lights = lights
	c.mu.Unlock()

	return devices, nil
}

func colorCapable(l huego.Light) bool {
	if l.State != nil && len(l.State.Xy) == 2 {
		return true
	}
	return strings.Contains(strings.ToLower(l.Type), "color")
}

// LedPositions returns the single LED of a light.
func (c *Client) LedPositions(_ context.Context, device lighting.DeviceID, _ int) ([]lighting.LedID, error) {
	c.mu.Lock()
	_, ok := c.lights[device]
	c.mu.Unlock()
	if !ok {
		return nil, &lighting.TransportError{Op: "led_positions", Device: device, Code: lighting.CodeInvalidArguments}
	}
	return []lighting.LedID{0}, nil
}

// SetLedColors stages the color of a light. Only LED 0 exists.
func (c *Client) SetLedColors(device lighting.DeviceID, colors []lighting.LedColor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeNotConnected}
	}
	if _, ok := c.lights[device]; !ok {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeInvalidArguments}
	}
	for _, lc := range colors {
		if lc.ID != 0 {
			return &lighting.TransportError{
				Op:     "set_led_colors",
				Device: device,
				Code:   lighting.CodeInvalidArguments,
				Err:    fmt.Errorf("led %d out of range", lc.ID),
			}
		}
		c.staged[device] = lc
	}
	return nil
}

type pending struct {
	device lighting.DeviceID
	light  int
	state  huego.State
}

// FlushAsync hands staged colors to the flush worker and returns at once. Requests
// are paced by the bridge rate limit, so a light still waiting from an earlier call
// only receives its newest state.
func (c *Client) FlushAsync(done func(error)) {
	c.mu.Lock()
	batch := make(map[lighting.DeviceID]pending, len(c.staged))
	for dev, lc := range c.staged {
		if light, ok := c.lights[dev]; ok {
			batch[dev] = pending{device: dev, light: light, state: StateFor(lc)}
		}
	}
	c.staged = make(map[lighting.DeviceID]lighting.LedColor)
	c.mu.Unlock()

	c.queue.Submit(batch, done)
}

// flush runs on the worker goroutine.
func (c *Client) flush(batch map[lighting.DeviceID]pending) error {
	items := make([]pending, 0, len(batch))
	for _, it := range batch {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].light < items[j].light })

	var errs []error
	for _, it := range items {
		if err := c.limiter.Wait(c.ctx); err != nil {
			errs = append(errs, err)
			break
		}
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.Timeout)
		_, err := c.bridge.SetLightStateContext(ctx, it.light, it.state)
		cancel()
		if err != nil {
			errs = append(errs, &lighting.TransportError{Op: "flush", Device: it.device, Code: lighting.CodeUnknown, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close stops pending flushes.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	c.cancel()
	c.queue.Close()
	c.notify(lighting.SessionStateChanged{State: lighting.SessionClosed})
	return nil
}
