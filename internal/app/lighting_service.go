package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/config"
	"github.com/dokzlo13/taikolights/internal/eventbus"
	"github.com/dokzlo13/taikolights/internal/host"
	"github.com/dokzlo13/taikolights/internal/lighting"
	"github.com/dokzlo13/taikolights/internal/metrics"
)

var sessionStates = func() []string {
	var names []string
	for s := lighting.SessionInvalid; s <= lighting.SessionConnectionRefused; s++ {
		names = append(names, s.String())
	}
	return names
}()

// LightingService owns the lighting host: the session, device discovery, the LED
// address cache and the broadcaster built on top of them.
type LightingService struct {
	cfg       *config.Config
	discovery DiscoveryConfig

	Host        lighting.Host
	Bus         *eventbus.Bus
	Broadcaster *lighting.Broadcaster

	// Set by Discover
	Devices []lighting.DeviceInfo
	Cache   *lighting.AddressCache

	ready atomic.Bool
}

// NewLightingService creates the host selected by cfg.Host.Kind. Nothing connects yet.
func NewLightingService(cfg *config.Config, bus *eventbus.Bus) (*LightingService, error) {
	h, err := host.New(cfg.Host)
	if err != nil {
		return nil, err
	}
	return NewLightingServiceWithHost(cfg, bus, h), nil
}

// NewLightingServiceWithHost wraps an already constructed host.
func NewLightingServiceWithHost(cfg *config.Config, bus *eventbus.Bus, h lighting.Host) *LightingService {
	s := &LightingService{
		cfg: cfg,
		discovery: DiscoveryConfig{
			MinBackoff:  cfg.Discovery.MinBackoff.Duration(),
			MaxBackoff:  cfg.Discovery.MaxBackoff.Duration(),
			Multiplier:  cfg.Discovery.Multiplier,
			MaxAttempts: cfg.Discovery.Attempts(),
			MaxDevices:  cfg.Discovery.MaxDevices,
		},
		Host: h,
		Bus:  bus,
	}
	s.Broadcaster = lighting.NewBroadcaster(h)
	s.Broadcaster.OnFlush = s.onFlush
	return s
}

// Start opens the host session. A refused connect is logged and leaves the service
// without devices; the session handler keeps reporting whatever the host does next.
func (s *LightingService) Start(ctx context.Context) error {
	if err := s.Host.Connect(ctx, s.onSessionState); err != nil {
		log.Error().Str("component", "app").Err(err).Msg("Failed to connect to lighting host")
		return err
	}
	return nil
}

// Discover waits for the host, enumerates devices and builds the address cache.
// It returns ErrDiscoveryTimeout when the host never becomes ready.
func (s *LightingService) Discover(ctx context.Context) error {
	devices, attempts, err := DiscoverDevices(ctx, s.Host, s.discovery)
	metrics.SetDiscoveryAttempts(attempts)
	if err != nil {
		if errors.Is(err, ErrDiscoveryTimeout) {
			return fmt.Errorf("%w after %d attempts", err, attempts)
		}
		return err
	}

	s.useDevices(ctx, devices)
	log.Info().
		Str("component", "app").
		Int("devices", len(s.Devices)).
		Int("leds", s.Cache.Total()).
		Int("attempts", attempts).
		Msg("Device discovery finished")
	return nil
}

// SkipDiscovery leaves the service with no devices, used when the host could not be
// reached at all.
func (s *LightingService) SkipDiscovery() {
	s.useDevices(context.Background(), nil)
}

func (s *LightingService) useDevices(ctx context.Context, devices []lighting.DeviceInfo) {
	s.Devices = devices
	s.Cache = lighting.BuildCache(ctx, s.Host, devices, s.cfg.Discovery.MaxLeds)

	for _, d := range devices {
		log.Info().
			Str("component", "app").
			Str("device", string(d.ID)).
			Int("leds", s.Cache.Count(d.ID)).
			Msgf("%s %s", d.Model, d.ID)
	}

	metrics.SetTopology(len(devices), s.Cache.Total())
	s.Bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeDiscovery,
		Data: map[string]interface{}{
			"host":    s.cfg.Host.Kind,
			"devices": len(devices),
			"leds":    s.Cache.Total(),
		},
	})
	s.ready.Store(true)
}

// Ready reports whether discovery has finished.
func (s *LightingService) Ready() bool {
	return s.ready.Load()
}

func (s *LightingService) onSessionState(ev lighting.SessionStateChanged) {
	e := log.Info()
	switch ev.State {
	case lighting.SessionConnectionLost, lighting.SessionTimeout, lighting.SessionConnectionRefused, lighting.SessionInvalid:
		e = log.Warn()
	}
	e.Str("component", "app").
		Str("state", ev.State.String()).
		AnErr("cause", ev.Err).
		Msg(ev.Message())

	metrics.SetSessionState(ev.State.String(), sessionStates)

	data := map[string]interface{}{
		"state":   ev.State.String(),
		"message": ev.Message(),
	}
	if ev.State == lighting.SessionConnected {
		data["server_version"] = ev.Server.String()
		data["client_version"] = ev.Client.String()
	}
	if ev.Err != nil {
		data["error"] = ev.Err.Error()
	}
	s.Bus.Publish(eventbus.Event{Type: eventbus.EventTypeSession, Data: data})
}

func (s *LightingService) onFlush(err error) {
	metrics.RecordFlush(err)
	if err == nil {
		return
	}
	log.Warn().Str("component", "lighting").Err(err).Msg("LED flush failed")
	s.Bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeFlushFailed,
		Data: map[string]interface{}{"error": err.Error()},
	})
}

// Close ends the host session.
func (s *LightingService) Close() {
	if err := s.Host.Close(); err != nil {
		log.Warn().Str("component", "app").Err(err).Msg("Error closing lighting host")
	}
}
