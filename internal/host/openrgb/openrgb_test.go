package openrgb

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// controllerBlock encodes controller data the way an OpenRGB server does.
type controllerBlock struct {
	buf bytes.Buffer
}

func (b *controllerBlock) u16(v uint16) { _ = binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *controllerBlock) u32(v uint32) { _ = binary.Write(&b.buf, binary.LittleEndian, v) }
func (b *controllerBlock) str(s string) {
	b.u16(uint16(len(s) + 1))
	b.buf.WriteString(s)
	b.buf.WriteByte(0)
}

func encodeController(proto uint32, typ DeviceType, name, serial string, leds int) []byte {
	b := &controllerBlock{}
	b.u32(uint32(typ))
	b.str(name)
	if proto >= 1 {
		b.str("Vendor")
	}
	b.str("desc")
	b.str("1.0")
	b.str(serial)
	b.str("HID: /dev/hidraw0")

	// one mode
	b.u16(1)
	b.u32(0) // active mode
	b.str("Direct")
	b.u32(0)                      // value
	b.u32(ModeFlagHasPerLEDColor) // flags
	b.u32(0)                      // speed min
	b.u32(0)                      // speed max
	if proto >= 3 {
		b.u32(0) // brightness min
		b.u32(100)
	}
	b.u32(0) // colors min
	b.u32(0) // colors max
	b.u32(0) // speed
	if proto >= 3 {
		b.u32(100)
	}
	b.u32(0) // direction
	b.u32(1) // color mode
	b.u16(1) // one mode color
	b.u32(0x00FF00)

	// one zone with a 1x2 matrix
	b.u16(1)
	b.str("Main")
	b.u32(1)
	b.u32(uint32(leds))
	b.u32(uint32(leds))
	b.u32(uint32(leds))
	b.u16(16)
	b.u32(1)
	b.u32(2)
	b.u32(0)
	b.u32(1)

	b.u16(uint16(leds))
	for i := 0; i < leds; i++ {
		b.str("Key")
		b.u32(uint32(i))
	}

	b.u16(uint16(leds))
	for i := 0; i < leds; i++ {
		b.buf.Write([]byte{1, 2, 3, 0})
	}

	body := b.buf.Bytes()
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(out)))
	copy(out[4:], body)
	return out
}

func TestPacketRoundTrip(t *testing.T) {
	raw := encodePacket(7, packetUpdateLEDs, []byte{1, 2, 3})

	p, err := readPacket(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(7), p.Device)
	assert.Equal(t, packetUpdateLEDs, p.ID)
	assert.Equal(t, []byte{1, 2, 3}, p.Data)

	raw[0] = 'X'
	_, err = readPacket(bytes.NewReader(raw))
	assert.ErrorIs(t, err, errBadMagic)
}

func TestEncodeUpdateLEDs(t *testing.T) {
	got := encodeUpdateLEDs([]rgb{{255, 0, 0}, {0, 0, 255}})

	assert.Equal(t, uint32(14), binary.LittleEndian.Uint32(got[0:4]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(got[4:6]))
	assert.Equal(t, []byte{255, 0, 0, 0, 0, 0, 255, 0}, got[6:])
}

func TestParseController(t *testing.T) {
	for _, proto := range []uint32{0, 1, 3} {
		data := encodeController(proto, 5, "K70", "SN123", 4)

		c, err := parseController(data, proto)
		require.NoError(t, err, "proto %d", proto)
		assert.Equal(t, "K70", c.Name)
		assert.Equal(t, "keyboard", c.Type.String())
		assert.Equal(t, "SN123", c.Serial)
		require.Len(t, c.Modes, 1)
		assert.Equal(t, "Direct", c.Modes[0].Name)
		require.Len(t, c.Zones, 1)
		assert.Equal(t, uint32(4), c.Zones[0].LedsCount)
		assert.Len(t, c.Leds, 4)
		assert.Len(t, c.Colors, 4)
		assert.Equal(t, rgb{1, 2, 3}, c.Colors[0])
	}
}

func TestParseController_Truncated(t *testing.T) {
	data := encodeController(3, 5, "K70", "SN", 4)

	_, err := parseController(data[:len(data)-3], 3)
	assert.ErrorIs(t, err, errTruncated)
}

func TestDeviceTypeString(t *testing.T) {
	assert.Equal(t, "ledstrip", DeviceType(4).String())
	assert.Equal(t, "unknown", DeviceType(99).String())
	assert.Equal(t, "unknown", DeviceType(-1).String())
}

// fakeServer is a minimal OpenRGB SDK server.
type fakeServer struct {
	t        *testing.T
	ln       net.Listener
	proto    uint32
	leds     []int
	mu       sync.Mutex
	received []packet
	name     string
}

func newFakeServer(t *testing.T, proto uint32, leds ...int) *fakeServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeServer{t: t, ln: ln, proto: proto, leds: leds}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		p, err := readPacket(conn)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.received = append(s.received, p)
		s.mu.Unlock()

		switch p.ID {
		case packetSetClientName:
			s.mu.Lock()
			s.name = string(bytes.TrimRight(p.Data, "\x00"))
			s.mu.Unlock()
		case packetRequestProtocolVersion:
			conn.Write(encodePacket(0, p.ID, uint32Payload(s.proto)))
		case packetRequestControllerCount:
			conn.Write(encodePacket(0, p.ID, uint32Payload(uint32(len(s.leds)))))
		case packetRequestControllerData:
			proto := min(s.proto, ClientProtocolVersion)
			data := encodeController(proto, 6, "Mouse", "", s.leds[p.Device])
			conn.Write(encodePacket(p.Device, p.ID, data))
		}
	}
}

func (s *fakeServer) packets(id uint32) []packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []packet
	for _, p := range s.received {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

func connect(t *testing.T, addr string) (*Client, <-chan lighting.SessionStateChanged) {
	t.Helper()
	states := make(chan lighting.SessionStateChanged, 16)
	c := New(Config{Address: addr, RequestTimeout: time.Second})
	require.NoError(t, c.Connect(context.Background(), func(ev lighting.SessionStateChanged) { states <- ev }))
	t.Cleanup(func() { c.Close() })
	return c, states
}

func waitState(t *testing.T, states <-chan lighting.SessionStateChanged, want lighting.SessionState) lighting.SessionStateChanged {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-states:
			if ev.State == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for session state %s", want)
		}
	}
}

func TestClient_DiscoverSetFlush(t *testing.T) {
	srv := newFakeServer(t, 4, 3, 0)
	c, states := connect(t, srv.ln.Addr().String())

	ev := waitState(t, states, lighting.SessionConnected)
	assert.Equal(t, 4, ev.Server.Major)
	assert.Equal(t, int(ClientProtocolVersion), ev.Client.Major)

	devices, err := c.Devices(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Mouse", devices[0].Model)
	assert.Equal(t, "mouse", devices[0].Kind)

	ids, err := c.LedPositions(context.Background(), devices[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []lighting.LedID{0, 1, 2}, ids)

	empty, err := c.LedPositions(context.Background(), devices[1].ID, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, c.SetLedColors(devices[0].ID, []lighting.LedColor{
		{ID: 0, R: 255, A: 255},
		{ID: 2, B: 255, A: 255},
	}))

	flushed := make(chan error, 1)
	c.FlushAsync(func(err error) { flushed <- err })
	select {
	case err := <-flushed:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("flush did not complete")
	}

	require.Eventually(t, func() bool { return len(srv.packets(packetUpdateLEDs)) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, srv.packets(packetSetCustomMode), 1)

	upd := srv.packets(packetUpdateLEDs)[0]
	assert.Equal(t, uint32(0), upd.Device)
	assert.Equal(t, []byte{255, 0, 0, 0, 1, 2, 3, 0, 0, 0, 255, 0}, upd.Data[6:])

	srv.mu.Lock()
	assert.Equal(t, "taikolights", srv.name)
	srv.mu.Unlock()
}

func TestClient_ReleaseAfterPressEndsOff(t *testing.T) {
	tests := []struct {
		name   string
		press  lighting.Color
		rounds int
	}{
		{"red", lighting.RedNormal, 20},
		{"blue intense", lighting.BlueIntense, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < tt.rounds; i++ {
				srv := newFakeServer(t, 4, 3, 2)
				c, states := connect(t, srv.ln.Addr().String())
				waitState(t, states, lighting.SessionConnected)

				devices, err := c.Devices(context.Background(), 0)
				require.NoError(t, err)
				cache := lighting.BuildCache(context.Background(), c, devices, 0)

				var wg sync.WaitGroup
				wg.Add(2)
				b := lighting.NewBroadcaster(c)
				b.OnFlush = func(err error) {
					assert.NoError(t, err)
					wg.Done()
				}
				b.Apply(cache, devices, tt.press)
				b.Apply(cache, devices, lighting.Off)
				wg.Wait()

				// The server handles packets in order, so a reply means every
				// earlier update has been recorded.
				_, err = c.Devices(context.Background(), 0)
				require.NoError(t, err)

				last := map[uint32][]byte{}
				for _, p := range srv.packets(packetUpdateLEDs) {
					last[p.Device] = p.Data[6:]
				}
				require.Len(t, last, 2, "round %d", i)
				assert.Equal(t, make([]byte, 4*3), last[0], "round %d", i)
				assert.Equal(t, make([]byte, 4*2), last[1], "round %d", i)
			}
		})
	}
}

func TestClient_NotConnectedBeforeHandshake(t *testing.T) {
	c := New(Config{})

	_, err := c.Devices(context.Background(), 0)
	assert.True(t, lighting.IsNotConnected(err))

	err = c.SetLedColors("openrgb:0", nil)
	assert.True(t, lighting.IsNotConnected(err))
}

func TestClient_RejectsUnknownDeviceAndLed(t *testing.T) {
	srv := newFakeServer(t, 3, 2)
	c, states := connect(t, srv.ln.Addr().String())
	waitState(t, states, lighting.SessionConnected)

	devices, err := c.Devices(context.Background(), 0)
	require.NoError(t, err)

	_, err = c.LedPositions(context.Background(), "nope", 0)
	assert.Equal(t, lighting.CodeInvalidArguments, lighting.Code(err))

	err = c.SetLedColors(devices[0].ID, []lighting.LedColor{{ID: 9}})
	assert.Equal(t, lighting.CodeInvalidArguments, lighting.Code(err))
}

func TestClient_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, states := connect(t, addr)

	ev := waitState(t, states, lighting.SessionConnectionRefused)
	assert.Error(t, ev.Err)
}

func TestScale(t *testing.T) {
	assert.Equal(t, uint8(255), scale(255, 255))
	assert.Equal(t, uint8(0), scale(255, 0))
	assert.Equal(t, uint8(128), scale(255, 128))
	assert.Equal(t, uint8(50), scale(100, 128))
}
