package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/config"
	"github.com/dokzlo13/taikolights/internal/input"
	"github.com/dokzlo13/taikolights/internal/input/joystick"
	"github.com/dokzlo13/taikolights/internal/input/script"
)

// OpenSource opens the input source selected by cfg.Kind. Failures wrap
// input.ErrUnavailable.
func OpenSource(ctx context.Context, cfg config.InputConfig) (input.Source, error) {
	switch cfg.Kind {
	case config.InputJoystick:
		js, err := joystick.Open(ctx, cfg.Device, cfg.WaitTimeout.Duration())
		if err != nil {
			return nil, err
		}
		return js, nil
	case config.InputScript:
		src, err := script.Load(cfg.Script)
		if err != nil {
			return nil, err
		}
		log.Info().Str("component", "input").Str("script", cfg.Script).Msg("Using scripted pad")
		return src, nil
	default:
		return nil, fmt.Errorf("%w: unknown input kind %q", input.ErrUnavailable, cfg.Kind)
	}
}
