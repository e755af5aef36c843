// Package openrgb implements lighting.Host on top of the OpenRGB SDK server protocol.
package openrgb

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// DefaultAddress is where the OpenRGB SDK server listens by default.
const DefaultAddress = "127.0.0.1:6742"

// Config configures the OpenRGB client.
type Config struct {
	Address        string
	ClientName     string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

type controllerState struct {
	index  uint32
	info   *Controller
	frame  []rgb // last colors handed to the flush worker, one per LED
	custom bool  // switched into direct mode
}

// Client is an OpenRGB SDK client. Connect is asynchronous: until the handshake
// finishes, Devices reports lighting.CodeNotConnected.
type Client struct {
	cfg Config

	mu          sync.Mutex
	conn        net.Conn
	connected   bool
	closing     bool
	proto       uint32
	onState     lighting.SessionHandler
	controllers map[lighting.DeviceID]*controllerState
	staged      map[lighting.DeviceID][]rgb
	queue       *lighting.FlushQueue[flushItem]

	writeMu   sync.Mutex
	requestMu sync.Mutex
	replies   chan packet
	done      chan struct{}
}

var _ lighting.Host = (*Client)(nil)

// New creates a client. Zero fields in cfg take defaults.
func New(cfg Config) *Client {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.ClientName == "" {
		cfg.ClientName = "taikolights"
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Second
	}
	c := &Client{
		cfg:         cfg,
		controllers: make(map[lighting.DeviceID]*controllerState),
		staged:      make(map[lighting.DeviceID][]rgb),
	}
	c.queue = lighting.NewFlushQueue(c.flush)
	return c
}

// Connect starts the session in the background and returns immediately.
func (c *Client) Connect(ctx context.Context, onState lighting.SessionHandler) error {
	c.mu.Lock()
	if c.conn != nil || c.connected {
		c.mu.Unlock()
		return nil
	}
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
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		c.notify(lighting.SessionStateChanged{State: lighting.FailureState(err), Err: err})
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.replies = make(chan packet, 1)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(conn, c.replies, c.done)

	if err := c.send(0, packetSetClientName, append([]byte(c.cfg.ClientName), 0)); err != nil {
		c.fail(err)
		return
	}

	// Servers older than protocol 1 never answer the version request.
	server := uint32(0)
	reply, err := c.request(ctx, 0, packetRequestProtocolVersion, uint32Payload(ClientProtocolVersion))
	switch {
	case err == nil && len(reply) >= 4:
		server = binary.LittleEndian.Uint32(reply)
	case err != nil && !errors.Is(err, errRequestTimeout):
		c.fail(err)
		return
	}

	proto := min(server, ClientProtocolVersion)

	c.mu.Lock()
	c.proto = proto
	c.connected = true
	c.mu.Unlock()

	log.Debug().
		Str("component", "openrgb").
		Uint32("server_protocol", server).
		Uint32("protocol", proto).
		Msg("Protocol negotiated")

	c.notify(lighting.SessionStateChanged{
		State:  lighting.SessionConnected,
		Server: lighting.Version{Major: int(server)},
		Client: lighting.Version{Major: int(ClientProtocolVersion)},
	})
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	wasClosing := c.closing
	conn := c.conn
	c.connected = false
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !wasClosing {
		c.notify(lighting.SessionStateChanged{State: lighting.SessionConnectionLost, Err: err})
	}
}

func (c *Client) readLoop(conn net.Conn, replies chan<- packet, done chan struct{}) {
	defer close(done)
	for {
		p, err := readPacket(conn)
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if current {
				c.fail(err)
			}
			return
		}

		if p.ID == packetDeviceListUpdated {
			log.Info().Str("component", "openrgb").Msg("Server reports device list changed; restart to pick up new devices")
			continue
		}

		select {
		case replies <- p:
		default:
			log.Warn().Str("component", "openrgb").Uint32("packet", p.ID).Msg("Dropping unexpected packet")
		}
	}
}

func (c *Client) send(device, id uint32, data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return lighting.NewTransportError("send", lighting.CodeNotConnected, nil)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := conn.Write(encodePacket(device, id, data))
	return err
}

var errRequestTimeout = errors.New("openrgb: request timed out")

// request sends a packet and waits for the reply with the same id.
// Requests are serialized; the server answers in order.
func (c *Client) request(ctx context.Context, device, id uint32, data []byte) ([]byte, error) {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	c.mu.Lock()
	replies, done := c.replies, c.done
	c.mu.Unlock()
	if replies == nil {
		return nil, lighting.NewTransportError("request", lighting.CodeNotConnected, nil)
	}

	// Drop a late reply left over from a timed-out request.
	select {
	case <-replies:
	default:
	}

	if err := c.send(device, id, data); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	for {
		select {
		case p := <-replies:
			if p.ID != id {
				continue
			}
			return p.Data, nil
		case <-done:
			return nil, lighting.NewTransportError("request", lighting.CodeNotConnected, errors.New("connection closed"))
		case <-timer.C:
			return nil, errRequestTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) ready() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proto, c.connected
}

// Devices enumerates controllers. It fails with CodeNotConnected until the session
// handshake completes.
func (c *Client) Devices(ctx context.Context, max int) ([]lighting.DeviceInfo, error) {
	proto, ok := c.ready()
	if !ok {
		return nil, lighting.NewTransportError("devices", lighting.CodeNotConnected, nil)
	}

	reply, err := c.request(ctx, 0, packetRequestControllerCount, nil)
	if err != nil {
		return nil, wrapTransport("devices", err)
	}
	if len(reply) < 4 {
		return nil, lighting.NewTransportError("devices", lighting.CodeIncompatibleProtocol, errTruncated)
	}
	count := int(binary.LittleEndian.Uint32(reply))
	if max > 0 && count > max {
		count = max
	}

	var payload []byte
	if proto >= 1 {
		payload = uint32Payload(proto)
	}

	devices := make([]lighting.DeviceInfo, 0, count)
	states := make(map[lighting.DeviceID]*controllerState, count)
	for i := 0; i < count; i++ {
		data, err := c.request(ctx, uint32(i), packetRequestControllerData, payload)
		if err != nil {
			return nil, wrapTransport("devices", err)
		}
		ctrl, err := parseController(data, proto)
		if err != nil {
			return nil, lighting.NewTransportError("devices", lighting.CodeIncompatibleProtocol, err)
		}

		id := deviceID(uint32(i), ctrl)
		frame := make([]rgb, len(ctrl.Leds))
		copy(frame, ctrl.Colors)
		states[id] = &controllerState{index: uint32(i), info: ctrl, frame: frame}

		devices = append(devices, lighting.DeviceInfo{
			ID:    id,
			Model: ctrl.Name,
			Kind:  ctrl.Type.String(),
		})
	}

	c.mu.Lock()
	c.controllers = states
	c.mu.Unlock()

	return devices, nil
}

func deviceID(index uint32, ctrl *Controller) lighting.DeviceID {
	if ctrl.Serial != "" {
		return lighting.DeviceID(fmt.Sprintf("openrgb:%d:%s", index, ctrl.Serial))
	}
	return lighting.DeviceID(fmt.Sprintf("openrgb:%d", index))
}

func wrapTransport(op string, err error) error {
	var te *lighting.TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return lighting.NewTransportError(op, lighting.CodeUnknown, err)
}

// LedPositions returns LED indexes 0..n-1 of a controller.
func (c *Client) LedPositions(_ context.Context, device lighting.DeviceID, max int) ([]lighting.LedID, error) {
	c.mu.Lock()
	st, ok := c.controllers[device]
	c.mu.Unlock()
	if !ok {
		return nil, &lighting.TransportError{Op: "led_positions", Device: device, Code: lighting.CodeInvalidArguments}
	}

	n := len(st.info.Leds)
	if max > 0 && n > max {
		n = max
	}
	ids := make([]lighting.LedID, n)
	for i := range ids {
		ids[i] = lighting.LedID(i)
	}
	return ids, nil
}

// SetLedColors stages colors for a controller on top of its last frame.
func (c *Client) SetLedColors(device lighting.DeviceID, colors []lighting.LedColor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeNotConnected}
	}
	st, ok := c.controllers[device]
	if !ok {
		return &lighting.TransportError{Op: "set_led_colors", Device: device, Code: lighting.CodeInvalidArguments}
	}

	frame, ok := c.staged[device]
	if !ok {
		frame = make([]rgb, len(st.frame))
		copy(frame, st.frame)
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
		frame[lc.ID] = rgb{R: scale(lc.R, lc.A), G: scale(lc.G, lc.A), B: scale(lc.B, lc.A)}
	}
	c.staged[device] = frame
	return nil
}

// scale applies the intensity channel; OpenRGB colors carry no alpha.
func scale(v, a uint8) uint8 {
	return uint8(uint16(v) * uint16(a) / 255)
}

type flushItem struct {
	device lighting.DeviceID
	state  *controllerState
	frame  []rgb
}

// FlushAsync hands every staged frame to the flush worker and returns at once.
// Controllers are updated in FlushAsync order; a frame still waiting from an earlier
// call is replaced by the newer one.
func (c *Client) FlushAsync(done func(error)) {
	c.mu.Lock()
	batch := make(map[lighting.DeviceID]flushItem, len(c.staged))
	for id, frame := range c.staged {
		if st, ok := c.controllers[id]; ok {
			st.frame = frame
			batch[id] = flushItem{device: id, state: st, frame: frame}
		}
	}
	c.staged = make(map[lighting.DeviceID][]rgb)
	c.mu.Unlock()

	c.queue.Submit(batch, done)
}

// flush runs on the worker goroutine, one controller at a time in index order.
func (c *Client) flush(batch map[lighting.DeviceID]flushItem) error {
	items := make([]flushItem, 0, len(batch))
	for _, it := range batch {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].state.index < items[j].state.index })

	var errs []error
	for _, it := range items {
		c.mu.Lock()
		needMode := !it.state.custom
		c.mu.Unlock()

		if needMode {
			if err := c.send(it.state.index, packetSetCustomMode, nil); err != nil {
				errs = append(errs, &lighting.TransportError{Op: "flush", Device: it.device, Code: lighting.CodeNoControl, Err: err})
				continue
			}
			c.mu.Lock()
			it.state.custom = true
			c.mu.Unlock()
		}

		if err := c.send(it.state.index, packetUpdateLEDs, encodeUpdateLEDs(it.frame)); err != nil {
			errs = append(errs, wrapTransport("flush", err))
		}
	}
	return errors.Join(errs...)
}

// Close ends the session.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	done := c.done
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
		<-done
	}
	c.queue.Close()
	c.notify(lighting.SessionStateChanged{State: lighting.SessionClosed})
	return err
}
