package openrgb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Packet ids of the OpenRGB SDK protocol.
const (
	packetRequestControllerCount uint32 = 0
	packetRequestControllerData  uint32 = 1
	packetRequestProtocolVersion uint32 = 40
	packetSetClientName          uint32 = 50
	packetDeviceListUpdated      uint32 = 100
	packetUpdateLEDs             uint32 = 1050
	packetSetCustomMode          uint32 = 1100
)

// ClientProtocolVersion is the highest protocol revision this client parses.
const ClientProtocolVersion uint32 = 3

const headerSize = 16

var magic = [4]byte{'O', 'R', 'G', 'B'}

var (
	errBadMagic  = errors.New("openrgb: bad packet magic")
	errTruncated = errors.New("openrgb: truncated packet")
)

type header struct {
	Device uint32
	ID     uint32
	Size   uint32
}

type packet struct {
	header
	Data []byte
}

func encodePacket(device, id uint32, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], device)
	binary.LittleEndian.PutUint32(buf[8:12], id)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(data)))
	copy(buf[headerSize:], data)
	return buf
}

// maxPacketSize bounds a single reply; controller blocks are a few KiB.
const maxPacketSize = 16 << 20

func readPacket(r io.Reader) (packet, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return packet{}, err
	}
	if [4]byte(hdr[0:4]) != magic {
		return packet{}, errBadMagic
	}

	p := packet{header: header{
		Device: binary.LittleEndian.Uint32(hdr[4:8]),
		ID:     binary.LittleEndian.Uint32(hdr[8:12]),
		Size:   binary.LittleEndian.Uint32(hdr[12:16]),
	}}
	if p.Size > maxPacketSize {
		return packet{}, fmt.Errorf("openrgb: packet of %d bytes exceeds limit", p.Size)
	}
	if p.Size > 0 {
		p.Data = make([]byte, p.Size)
		if _, err := io.ReadFull(r, p.Data); err != nil {
			return packet{}, err
		}
	}
	return p, nil
}

func uint32Payload(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// rgb is one OpenRGB color (red, green, blue, padding).
type rgb struct {
	R, G, B uint8
}

// encodeUpdateLEDs builds the UPDATELEDS payload: total size, count, colors.
func encodeUpdateLEDs(colors []rgb) []byte {
	size := 4 + 2 + 4*len(colors)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(size))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(colors)))
	off := 6
	for _, c := range colors {
		buf[off] = c.R
		buf[off+1] = c.G
		buf[off+2] = c.B
		buf[off+3] = 0
		off += 4
	}
	return buf
}

// Controller is the subset of controller data this client keeps.
type Controller struct {
	Type        DeviceType
	Name        string
	Vendor      string
	Description string
	Version     string
	Serial      string
	Location    string
	ActiveMode  int32
	Modes       []Mode
	Zones       []Zone
	Leds        []Led
	Colors      []rgb
}

// Mode is a controller lighting mode.
type Mode struct {
	Name  string
	Value int32
	Flags uint32
}

// ModeFlagHasPerLEDColor marks modes that accept per-LED colors.
const ModeFlagHasPerLEDColor uint32 = 1 << 5

// Zone is a named LED range.
type Zone struct {
	Name      string
	Type      int32
	LedsCount uint32
}

// Led is one LED entry of a controller.
type Led struct {
	Name  string
	Value uint32
}

// DeviceType is the OpenRGB controller type.
type DeviceType int32

var deviceTypeNames = []string{
	"motherboard", "dram", "gpu", "cooler", "ledstrip", "keyboard", "mouse", "mousemat",
	"headset", "headset_stand", "gamepad", "light", "speaker", "virtual", "storage", "case",
	"microphone", "accessory", "keypad",
}

func (t DeviceType) String() string {
	if t >= 0 && int(t) < len(deviceTypeNames) {
		return deviceTypeNames[t]
	}
	return "unknown"
}

// reader walks a little-endian payload and remembers the first error.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = errTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

func (r *reader) str() string {
	n := int(r.u16())
	b := r.take(n)
	if len(b) == 0 {
		return ""
	}
	if b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

func (r *reader) colors() []rgb {
	n := int(r.u16())
	out := make([]rgb, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		b := r.take(4)
		if b == nil {
			break
		}
		out = append(out, rgb{b[0], b[1], b[2]})
	}
	return out
}

// parseController decodes a REQUEST_CONTROLLER_DATA reply for protocol version proto.
func parseController(data []byte, proto uint32) (*Controller, error) {
	r := &reader{buf: data}
	r.u32() // block size

	c := &Controller{}
	c.Type = DeviceType(r.i32())
	c.Name = r.str()
	if proto >= 1 {
		c.Vendor = r.str()
	}
	c.Description = r.str()
	c.Version = r.str()
	c.Serial = r.str()
	c.Location = r.str()

	numModes := int(r.u16())
	c.ActiveMode = r.i32()
	for i := 0; i < numModes && r.err == nil; i++ {
		m := Mode{Name: r.str(), Value: r.i32(), Flags: r.u32()}
		r.u32() // speed min
		r.u32() // speed max
		if proto >= 3 {
			r.u32() // brightness min
			r.u32() // brightness max
		}
		r.u32() // colors min
		r.u32() // colors max
		r.u32() // speed
		if proto >= 3 {
			r.u32() // brightness
		}
		r.u32() // direction
		r.u32() // color mode
		r.colors()
		c.Modes = append(c.Modes, m)
	}

	numZones := int(r.u16())
	for i := 0; i < numZones && r.err == nil; i++ {
		z := Zone{Name: r.str(), Type: r.i32()}
		r.u32() // leds min
		r.u32() // leds max
		z.LedsCount = r.u32()
		if matrixLen := int(r.u16()); matrixLen > 0 {
			r.take(matrixLen)
		}
		if proto >= 4 {
			numSegments := int(r.u16())
			for s := 0; s < numSegments && r.err == nil; s++ {
				r.str()
				r.i32()
				r.u32()
				r.u32()
			}
		}
		if proto >= 5 {
			r.u32() // zone flags
		}
		c.Zones = append(c.Zones, z)
	}

	numLeds := int(r.u16())
	for i := 0; i < numLeds && r.err == nil; i++ {
		c.Leds = append(c.Leds, Led{Name: r.str(), Value: r.u32()})
	}

	c.Colors = r.colors()

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}
