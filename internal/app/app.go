package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/config"
)

// App is the main application container that manages all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithServices(cfg, services), nil
}

// NewWithServices creates an App around prepared services.
func NewWithServices(cfg *config.Config, services *Services) *App {
	return &App{
		cfg:      cfg,
		services: services,
	}
}

// Services returns the service container.
func (a *App) Services() *Services {
	return a.services
}

// Start connects the lighting host, discovers devices and opens the input.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.services.Start(a.ctx); err != nil {
		return err
	}

	notify(daemon.SdNotifyReady)
	log.Info().Str("component", "app").Msg("TaikoLights started")
	return nil
}

// Run processes input until Quit or cancellation.
func (a *App) Run() error {
	return a.services.Run(a.ctx)
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Str("component", "app").Msg("Shutting down...")
	notify(daemon.SdNotifyStopping)

	if a.cancel != nil {
		a.cancel()
	}

	if a.services != nil {
		return a.services.Stop()
	}

	return nil
}

// notify reports state to systemd; it does nothing outside a systemd unit.
func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debug().Str("component", "app").Err(err).Str("state", state).Msg("sd_notify failed")
	}
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
