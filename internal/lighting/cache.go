package lighting

import (
	"context"

	"github.com/rs/zerolog/log"
)

// AddressCache maps every discovered device to its LEDs in discovery order.
// It is built once by BuildCache and never mutated afterwards, so it is safe to
// read from any goroutine.
type AddressCache struct {
	leds  map[DeviceID][]LedID
	order []DeviceID
	total int
}

// BuildCache queries the LED layout of every device. A device whose query fails is
// logged and recorded with zero LEDs so later broadcasts skip it.
func BuildCache(ctx context.Context, host Host, devices []DeviceInfo, maxLeds int) *AddressCache {
	if maxLeds <= 0 {
		maxLeds = DefaultMaxLedsPerDevice
	}

	c := &AddressCache{
		leds: make(map[DeviceID][]LedID, len(devices)),
	}

	for _, dev := range devices {
		if _, seen := c.leds[dev.ID]; seen {
			continue
		}

		ids, err := host.LedPositions(ctx, dev.ID, maxLeds)
		if err != nil {
			log.Error().
				Str("component", "lighting").
				Err(err).
				Str("device", string(dev.ID)).
				Msg("Failed to get LED positions for device")
			ids = nil
		}
		if len(ids) > maxLeds {
			ids = ids[:maxLeds]
		}

		own := make([]LedID, len(ids))
		copy(own, ids)

		c.leds[dev.ID] = own
		c.order = append(c.order, dev.ID)
		c.total += len(own)

		log.Debug().
			Str("component", "lighting").
			Str("device", string(dev.ID)).
			Int("leds", len(own)).
			Msg("Cached LED layout")
	}

	return c
}

// NewAddressCache builds a cache from an explicit layout. Map iteration order is not
// stable, so devices are ordered by the order slice when given.
func NewAddressCache(layout map[DeviceID][]LedID, order []DeviceID) *AddressCache {
	c := &AddressCache{leds: make(map[DeviceID][]LedID, len(layout))}
	if order == nil {
		for id := range layout {
			order = append(order, id)
		}
	}
	for _, id := range order {
		ids := layout[id]
		own := make([]LedID, len(ids))
		copy(own, ids)
		c.leds[id] = own
		c.order = append(c.order, id)
		c.total += len(own)
	}
	return c
}

// Leds returns the LEDs of a device. Unknown devices have none. Callers must not
// modify the returned slice.
func (c *AddressCache) Leds(id DeviceID) []LedID {
	if c == nil {
		return nil
	}
	return c.leds[id]
}

// Count returns the number of LEDs on a device.
func (c *AddressCache) Count(id DeviceID) int {
	return len(c.Leds(id))
}

// Has reports whether the device was present at build time.
func (c *AddressCache) Has(id DeviceID) bool {
	if c == nil {
		return false
	}
	_, ok := c.leds[id]
	return ok
}

// Devices returns cached device ids in discovery order.
func (c *AddressCache) Devices() []DeviceID {
	if c == nil {
		return nil
	}
	out := make([]DeviceID, len(c.order))
	copy(out, c.order)
	return out
}

// Total returns the number of LEDs across all devices.
func (c *AddressCache) Total() int {
	if c == nil {
		return 0
	}
	return c.total
}
