package engine

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/input"
	"github.com/dokzlo13/taikolights/internal/lighting"
)

// Engine owns the press latch and drives broadcasts from input events.
// It is not safe for concurrent use: Run and Handle must be called from one goroutine.
type Engine struct {
	cache       *lighting.AddressCache
	devices     []lighting.DeviceInfo
	broadcaster *lighting.Broadcaster

	state PressState

	// OnInput is called for every event before it is applied.
	OnInput func(ev input.Event, cat input.Category)
	// OnBroadcast is called after every emitted broadcast.
	OnBroadcast func(em Emission, sum lighting.Summary)
}

// New creates an engine for a fixed device set and its address cache.
func New(cache *lighting.AddressCache, devices []lighting.DeviceInfo, broadcaster *lighting.Broadcaster) *Engine {
	return &Engine{
		cache:       cache,
		devices:     devices,
		broadcaster: broadcaster,
	}
}

// State returns the current press latch.
func (e *Engine) State() PressState {
	return e.state
}

// Handle applies one event. It returns false when the event is Quit.
func (e *Engine) Handle(ev input.Event) bool {
	if _, ok := ev.(input.Quit); ok {
		return false
	}

	if e.OnInput != nil {
		e.OnInput(ev, input.Classify(ev))
	}

	next, em := Step(e.state, ev)
	e.state = next
	if !em.Emit {
		return true
	}

	log.Debug().
		Str("component", "engine").
		Str("event", ev.Kind()).
		Str("category", em.Category.String()).
		Str("intensity", em.Intensity.String()).
		Str("color", em.Color.String()).
		Bool("pressed", next.AnyPressed).
		Msg("Broadcasting color")

	sum := e.broadcaster.Apply(e.cache, e.devices, em.Color)
	if e.OnBroadcast != nil {
		e.OnBroadcast(em, sum)
	}
	return true
}

// Run pulls events from src until Quit, context cancellation or a source error.
// A cancelled context is not an error.
func (e *Engine) Run(ctx context.Context, src input.Source) error {
	log.Info().Str("component", "engine").Str("source", src.Name()).Msg("Event loop started")

	for {
		ev, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info().Str("component", "engine").Msg("Event loop stopped")
				return nil
			}
			return err
		}

		if !e.Handle(ev) {
			log.Info().Str("component", "engine").Msg("Quit received, stopping event loop")
			return nil
		}
	}
}
