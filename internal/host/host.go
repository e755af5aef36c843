// Package host builds the configured lighting host.
package host

import (
	"fmt"

	"github.com/dokzlo13/taikolights/internal/config"
	"github.com/dokzlo13/taikolights/internal/host/hue"
	"github.com/dokzlo13/taikolights/internal/host/openrgb"
	"github.com/dokzlo13/taikolights/internal/host/wled"
	"github.com/dokzlo13/taikolights/internal/lighting"
)

// New returns the lighting host selected by cfg.Kind.
func New(cfg config.HostConfig) (lighting.Host, error) {
	switch cfg.Kind {
	case config.HostOpenRGB, "":
		return openrgb.New(openrgb.Config{
			Address:        cfg.OpenRGB.Address,
			ClientName:     cfg.OpenRGB.ClientName,
			DialTimeout:    cfg.OpenRGB.DialTimeout.Duration(),
			RequestTimeout: cfg.OpenRGB.RequestTimeout.Duration(),
		}), nil

	case config.HostHue:
		return hue.New(hue.Config{
			Bridge:       cfg.Hue.Bridge,
			Token:        cfg.Hue.Token,
			Timeout:      cfg.Hue.Timeout.Duration(),
			RateLimitRPS: cfg.Hue.RateLimitRPS,
		}), nil

	case config.HostWLED:
		strips := make([]wled.Strip, 0, len(cfg.WLED.Strips))
		for _, s := range cfg.WLED.Strips {
			strips = append(strips, wled.Strip{Name: s.Name, Topic: s.Topic, Leds: s.Leds})
		}
		return wled.New(wled.Config{
			Broker:    cfg.WLED.Broker,
			ClientID:  cfg.WLED.ClientID,
			KeepAlive: uint16(cfg.WLED.KeepAlive),
			QoS:       byte(cfg.WLED.QoS),
			Timeout:   cfg.WLED.Timeout.Duration(),
			Strips:    strips,
		}), nil

	default:
		return nil, fmt.Errorf("unknown host kind %q", cfg.Kind)
	}
}
