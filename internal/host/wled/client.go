// Package wled implements lighting.Host for WLED strips reachable over MQTT.
//
// Each configured strip is one device. A flush publishes "#RRGGBB" to <topic>/col when
// every LED has the same color, and a JSON segment update to <topic>/api otherwise.
package wled

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// MQTTVersion is the protocol revision paho speaks.
var MQTTVersion = lighting.Version{Major: 5}

// Strip is one configured WLED device.
type Strip struct {
	Name  string
	Topic string
	Leds  int
}

// Config configures the WLED host.
type Config struct {
	Broker    string
	ClientID  string
	KeepAlive uint16
	QoS       byte
	Timeout   time.Duration
	Strips    []Strip
}

type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

type strip struct {
	Strip
	id lighting.DeviceID
	// next is the last frame handed to the flush worker; staging starts from it.
	next []lighting.Color
}

// Client publishes LED frames to WLED strips.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      *autopaho.ConnectionManager
	pub       publisher
	connected bool
	closed    bool
	onState   lighting.SessionHandler
	strips    map[lighting.DeviceID]*strip
	order     []lighting.DeviceID
	staged    map[lighting.DeviceID][]lighting.Color
	queue     *lighting.FlushQueue[[]lighting.Color]

	cancel context.CancelFunc
}

var _ lighting.Host = (*Client)(nil)

// New creates a WLED host. Strips with an empty name or topic, or without LEDs, are
// skipped.
func New(cfg Config) *Client {
	if cfg.ClientID == "" {
		cfg.ClientID = "taikolights"
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 20
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}

	c := &Client{
		cfg:    cfg,
		strips: make(map[lighting.DeviceID]*strip),
		staged: make(map[lighting.DeviceID][]lighting.Color),
	}
	c.queue = lighting.NewFlushQueue(c.flush)
	for _, s := range cfg.Strips {
		if s.Name == "" || s.Topic == "" || s.Leds <= 0 {
			log.Warn().Str("component", "wled").Str("strip", s.Name).Msg("Ignoring incomplete strip definition")
			continue
		}
		id := lighting.DeviceID("wled:" + s.Name)
		if _, dup := c.strips[id]; dup {
			continue
		}
		c.strips[id] = &strip{Strip: s, id: id, next: make([]lighting.Color, s.Leds)}
		c.order = append(c.order, id)
	}
	return c
}

// Connect starts the MQTT connection manager. The session becomes Connected on the
// first CONNACK.
func (c *Client) Connect(ctx context.Context, onState lighting.SessionHandler) error {
	broker, err := url.Parse(c.cfg.Broker)
	if err != nil || broker.Host == "" {
		return fmt.Errorf("wled: invalid broker url %q", c.cfg.Broker)
	}

	c.mu.Lock()
	c.onState = onState
	c.mu.Unlock()

	c.notify(lighting.SessionStateChanged{State: lighting.SessionConnecting})

	ctx, cancel := context.WithCancel(ctx)
	conn, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:            []*url.URL{broker},
		KeepAlive:             c.cfg.KeepAlive,
		SessionExpiryInterval: 60,
		ConnectTimeout:        c.cfg.Timeout,
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			c.connectionUp()
		},
		OnConnectError: func(err error) {
			c.notify(lighting.SessionStateChanged{State: lighting.FailureState(err), Err: err})
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				c.connectionLost(err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				c.connectionLost(fmt.Errorf("server disconnect, reason %d", d.ReasonCode))
			},
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("wled: start mqtt connection: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.pub = conn
	c.cancel = cancel
	c.mu.Unlock()

	log.Info().Str("component", "wled").Str("broker", broker.Redacted()).Msg("Connecting to MQTT broker")
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

func (c *Client) connectionUp() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.notify(lighting.SessionStateChanged{
		State:  lighting.SessionConnected,
		Server: MQTTVersion,
		Client: MQTTVersion,
	})
}

func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	was := c.connected && !c.closed
	c.connected = false
	c.mu.Unlock()
	if was {
		c.notify(lighting.SessionStateChanged{State: lighting.SessionConnectionLost, Err: err})
	}
}

// Devices returns the configured strips once the broker connection is up.
func (c *Client) Devices(_ context.Context, max int) ([]lighting.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, lighting.NewTransportError("devices", lighting.CodeNotConnected, nil)
	}
	devices := make([]lighting.DeviceInfo, 0, len(c.order))
	for _, id := range c.order {
		if max > 0 && len(devices) >= max {
			break
		}
		s := c.strips[id]
		devices = append(devices, lighting.DeviceInfo{ID: id, Model: s.Name, Kind: "ledstrip"})
	}
	return devices, nil
}

// LedPositions returns indexes 0..n-1 of a strip.
func (c *Client) LedPositions(_ context.Context, device lighting.DeviceID, max int) ([]lighting.LedID, error) {
	c.mu.Lock()
	s, ok := c.strips[device]
	c.mu.Unlock()
	if !ok {
		return nil, &lighting.TransportError{Op: "led_positions", Device: device, Code: lighting.CodeInvalidArguments}
	}
	n := s.Leds
	if max > 0 && n > max {
		n = max
	}
	ids := make([]lighting.LedID, n)
	for i := range ids {
		ids[i] = lighting.LedID(i)
	}
	return ids, nil
}

// SetLedColors stages colors on top of the strip's last flushed frame.
func (c *Client) SetLedColors(device lighting.DeviceID, colors []lighting.LedColor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeNotConnected}
	}
	s, ok := c.strips[device]
	if !ok {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeInvalidArguments}
	}

	frame, ok := c.staged[device]
	if !ok {
		frame = append([]lighting.Color(nil), s.next...)
	}
	for _, lc := range colors {
		if int(lc.ID) >= len(frame) {
			return &lighting.TransportError{
				Op:     "set_led_colors",
				Device: device,
				Code:   lighting.CodeInvalidArguments,
				Err:    fmt.Errorf("led %d out of range", lc.ID),
			}
		}
		frame[lc.ID] = applyAlpha(lc)
	}
	c.staged[device] = frame
	return nil
}

func applyAlpha(lc lighting.LedColor) lighting.Color {
	scale := func(v uint8) uint8 { return uint8(uint16(v) * uint16(lc.A) / 255) }
	return lighting.Color{R: scale(lc.R), G: scale(lc.G), B: scale(lc.B)}
}

// FlushAsync hands every staged frame to the flush worker and returns at once.
// Frames reach the broker in FlushAsync order; a strip still waiting from an earlier
// call is overwritten by the newer frame.
func (c *Client) FlushAsync(done func(error)) {
	c.mu.Lock()
	batch := make(map[lighting.DeviceID][]lighting.Color, len(c.staged))
	for id, frame := range c.staged {
		c.strips[id].next = frame
		batch[id] = frame
	}
	c.staged = make(map[lighting.DeviceID][]lighting.Color)
	c.mu.Unlock()

	c.queue.Submit(batch, done)
}

// flush runs on the worker goroutine.
func (c *Client) flush(batch map[lighting.DeviceID][]lighting.Color) error {
	if len(batch) == 0 {
		return nil
	}

	c.mu.Lock()
	pub := c.pub
	c.mu.Unlock()
	if pub == nil {
		return lighting.NewTransportError("flush", lighting.CodeNotConnected, nil)
	}

	var errs []error
	for _, id := range c.order {
		frame, ok := batch[id]
		if !ok {
			continue
		}
		msg := encode(c.strips[id].Topic, frame)
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		_, err := pub.Publish(ctx, &paho.Publish{
			QoS:     c.cfg.QoS,
			Topic:   msg.Topic,
			Payload: msg.Payload,
		})
		cancel()
		if err != nil {
			errs = append(errs, &lighting.TransportError{Op: "flush", Device: id, Code: lighting.CodeUnknown, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close disconnects from the broker.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	c.queue.Close()

	var err error
	if conn != nil {
		ctx, done := context.WithTimeout(context.Background(), c.cfg.Timeout)
		err = conn.Disconnect(ctx)
		done()
	}
	if cancel != nil {
		cancel()
	}
	c.notify(lighting.SessionStateChanged{State: lighting.SessionClosed})
	return err
}
