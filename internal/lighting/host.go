// Package lighting holds the LED addressing and broadcast layer: the host contract,
// the fixed color palette, the per-device LED address cache and the broadcaster.
package lighting

import "context"

// DeviceID identifies a lighting-capable device for the lifetime of the process.
type DeviceID string

// LedID identifies one addressable LED. It is only meaningful for its own device.
type LedID uint32

// DeviceInfo is what discovery returns for a device.
type DeviceInfo struct {
	ID    DeviceID
	Model string
	Kind  string
}

// LedColor is one entry of a color buffer.
type LedColor struct {
	ID      LedID
	R, G, B uint8
	A       uint8
}

// Host is a lighting-control service.
//
// SetLedColors stages colors for a device; nothing reaches hardware until FlushAsync,
// which submits everything staged since the previous flush and returns immediately.
// done is called from another goroutine once the host has processed the flush.
// Flushes take effect in call order: after the last done returns, every device
// shows the frame of the last flush that staged it.
type Host interface {
	Connect(ctx context.Context, onState SessionHandler) error
	Devices(ctx context.Context, max int) ([]DeviceInfo, error)
	LedPositions(ctx context.Context, device DeviceID, max int) ([]LedID, error)
	SetLedColors(device DeviceID, colors []LedColor) error
	FlushAsync(done func(error))
	Close() error
}

// Defaults mirroring the limits of common lighting SDKs.
const (
	DefaultMaxDevices       = 64
	DefaultMaxLedsPerDevice = 512
)
