package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/config"
	"github.com/dokzlo13/taikolights/internal/db"
	"github.com/dokzlo13/taikolights/internal/engine"
	"github.com/dokzlo13/taikolights/internal/eventbus"
	"github.com/dokzlo13/taikolights/internal/input"
	"github.com/dokzlo13/taikolights/internal/ledger"
	"github.com/dokzlo13/taikolights/internal/lighting"
	"github.com/dokzlo13/taikolights/internal/metrics"
)

// SourceOpener opens the input source.
type SourceOpener func(ctx context.Context, cfg config.InputConfig) (input.Source, error)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// High-level services
	Lighting *LightingService
	Health   *HealthService

	// Set by Start
	Input  input.Source
	Engine *engine.Engine

	openSource SourceOpener
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := newServices(cfg)

	lightingService, err := NewLightingService(cfg, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Lighting = lightingService

	if err := s.openLedger(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// NewServicesWithHost is NewServices with a given lighting host and input opener.
func NewServicesWithHost(cfg *config.Config, h lighting.Host, open SourceOpener) (*Services, error) {
	s := newServices(cfg)
	s.Lighting = NewLightingServiceWithHost(cfg, s.Bus, h)
	s.openSource = open

	if err := s.openLedger(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newServices(cfg *config.Config) *Services {
	s := &Services{
		cfg:        cfg,
		Bus:        eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize()),
		openSource: OpenSource,
	}
	s.Health = NewHealthService(cfg, func() bool {
		return s.Lighting != nil && s.Lighting.Ready()
	})
	s.Health.Watch(s.Bus)
	return s
}

func (s *Services) openLedger() error {
	if !s.cfg.Ledger.Enabled {
		return nil
	}

	database, err := db.Open(s.cfg.Database.Path)
	if err != nil {
		return err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)

	PruneLedger(s.Ledger, s.cfg.Ledger.RetentionDays)
	logPreviousRun(s.Ledger)
	RecordToLedger(s.Bus, s.Ledger, s.cfg.Host.Kind)

	log.Info().
		Str("component", "app").
		Str("path", s.cfg.Database.Path).
		Str("session_id", s.Ledger.SessionID()).
		Msg("Event ledger enabled")
	return nil
}

// Start connects the lighting host, discovers devices, opens the input source and
// builds the engine. Input unavailability and discovery timeout are returned; a host
// that cannot be connected at all leaves the engine running without devices.
func (s *Services) Start(ctx context.Context) error {
	s.Health.Start(ctx)

	if err := s.Lighting.Start(ctx); err != nil {
		s.Lighting.SkipDiscovery()
	} else if err := s.Lighting.Discover(ctx); err != nil {
		return err
	}

	src, err := s.openSource(ctx, s.cfg.Input)
	if err != nil {
		return err
	}
	s.Input = src
	log.Info().Str("component", "input").Str("source", src.Name()).Msg("Using input source")

	s.Engine = engine.New(s.Lighting.Cache, s.Lighting.Devices, s.Lighting.Broadcaster)
	s.Engine.OnInput = func(ev input.Event, cat input.Category) {
		metrics.RecordInput(ev.Kind(), cat.String())
	}
	s.Engine.OnBroadcast = s.onBroadcast
	return nil
}

func (s *Services) onBroadcast(em engine.Emission, sum lighting.Summary) {
	metrics.RecordBroadcast(em.Color.String(), sum.Failed)
	s.Bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeBroadcast,
		Data: map[string]interface{}{
			"color":     em.Color.String(),
			"category":  em.Category.String(),
			"intensity": em.Intensity.String(),
			"devices":   sum.Devices,
			"leds":      sum.Leds,
			"failed":    sum.Failed,
			"skipped":   sum.Skipped,
		},
	})
}

// Run drives the engine until Quit or ctx is cancelled.
func (s *Services) Run(ctx context.Context) error {
	if s.Engine == nil || s.Input == nil {
		return errors.New("services not started")
	}
	return s.Engine.Run(ctx, s.Input)
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources: the input first, then the lighting host. The ledger
// summary is logged once the bus has drained.
func (s *Services) Close() {
	if s.Input != nil {
		if err := s.Input.Close(); err != nil {
			log.Warn().Str("component", "input").Err(err).Msg("Error closing input source")
		}
	}
	if s.Lighting != nil {
		s.Lighting.Close()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Ledger != nil {
		logRunSummary(s.Ledger)
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
