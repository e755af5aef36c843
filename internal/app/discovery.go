package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// ErrDiscoveryTimeout is returned when the host is still not connected after the
// maximum number of discovery attempts.
var ErrDiscoveryTimeout = errors.New("lighting host did not become ready for discovery")

// DiscoveryConfig configures the wait for a connected host.
type DiscoveryConfig struct {
	MinBackoff  time.Duration // Delay after the first not-connected answer
	MaxBackoff  time.Duration // Upper bound for the delay
	Multiplier  float64       // Backoff multiplier
	MaxAttempts int           // Max Devices calls, 0 = infinite
	MaxDevices  int
}

// DiscoverDevices enumerates devices, retrying with backoff while the host reports
// not connected. Any other enumeration error is logged and yields no devices.
// It returns the devices and the number of Devices calls made.
func DiscoverDevices(ctx context.Context, host lighting.Host, cfg DiscoveryConfig) ([]lighting.DeviceInfo, int, error) {
	attempts := 0
	currentBackoff := cfg.MinBackoff

	for {
		if err := ctx.Err(); err != nil {
			return nil, attempts, err
		}

		attempts++
		devices, err := host.Devices(ctx, cfg.MaxDevices)
		if err == nil {
			return devices, attempts, nil
		}

		if !lighting.IsNotConnected(err) {
			log.Error().
				Str("component", "app").
				Err(err).
				Int("attempt", attempts).
				Msg("Device enumeration failed, continuing without devices")
			return nil, attempts, nil
		}

		if cfg.MaxAttempts > 0 && attempts >= cfg.MaxAttempts {
			log.Error().
				Str("component", "app").
				Int("max_attempts", cfg.MaxAttempts).
				Msg("Lighting host still not connected, giving up")
			return nil, attempts, ErrDiscoveryTimeout
		}

		log.Debug().
			Str("component", "app").
			Dur("backoff", currentBackoff).
			Int("attempt", attempts).
			Msg("Lighting host not connected yet, retrying discovery")

		select {
		case <-ctx.Done():
			return nil, attempts, ctx.Err()
		case <-time.After(currentBackoff):
		}

		// Calculate next backoff with multiplier, capped at max
		nextBackoff := time.Duration(float64(currentBackoff) * cfg.Multiplier)
		if nextBackoff > cfg.MaxBackoff {
			nextBackoff = cfg.MaxBackoff
		}
		currentBackoff = nextBackoff
	}
}
