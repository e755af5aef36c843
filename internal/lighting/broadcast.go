package lighting

import (
	"github.com/rs/zerolog/log"
)

// Summary describes one Apply call.
type Summary struct {
	Color   Color
	Devices int // devices a set call was issued for
	Leds    int // LED entries written across those devices
	Failed  int // devices whose set call failed
	Skipped int // devices with no LEDs
}

// Broadcaster writes one flat color to every LED of every device and flushes.
type Broadcaster struct {
	host Host

	// OnFlush is called when the host finishes a flush. It runs on the host's
	// goroutine and must not block. Nil uses a hook that only logs failures.
	OnFlush func(error)
}

// NewBroadcaster creates a broadcaster for host.
func NewBroadcaster(host Host) *Broadcaster {
	return &Broadcaster{host: host}
}

// Apply sets color on every LED of every device in devices, then submits a single
// asynchronous flush. A failing device is logged and does not stop the others or the
// flush. Apply does not wait for the flush.
func (b *Broadcaster) Apply(cache *AddressCache, devices []DeviceInfo, color Color) Summary {
	sum := Summary{Color: color}

	for _, dev := range devices {
		leds := cache.Leds(dev.ID)
		if len(leds) == 0 {
			sum.Skipped++
			continue
		}

		buf := make([]LedColor, len(leds))
		for i, id := range leds {
			buf[i] = LedColor{ID: id, R: color.R, G: color.G, B: color.B, A: FullIntensity}
		}

		if err := b.host.SetLedColors(dev.ID, buf); err != nil {
			log.Error().
				Str("component", "lighting").
				Err(err).
				Str("device", string(dev.ID)).
				Msg("Failed to set LED colors for device")
			sum.Failed++
			continue
		}

		sum.Devices++
		sum.Leds += len(buf)
	}

	b.host.FlushAsync(b.flushHook())
	return sum
}

func (b *Broadcaster) flushHook() func(error) {
	if b.OnFlush != nil {
		return b.OnFlush
	}
	return func(err error) {
		if err != nil {
			log.Warn().Str("component", "lighting").Err(err).Msg("LED flush failed")
		}
	}
}
