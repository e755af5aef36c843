package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/config"
	"github.com/dokzlo13/taikolights/internal/eventbus"
	"github.com/dokzlo13/taikolights/internal/metrics"
)

// topology is what discovery reported.
type topology struct {
	Host    string `json:"host,omitempty"`
	Devices int    `json:"devices"`
	Leds    int    `json:"leds"`
}

// HealthService provides HTTP health check and metrics endpoints.
type HealthService struct {
	cfg    *config.Config
	ready  func() bool
	server *http.Server

	mu       sync.Mutex
	topology topology
	dropped  func() int64
}

// NewHealthService creates a new HealthService. ready gates /ready.
func NewHealthService(cfg *config.Config, ready func() bool) *HealthService {
	return &HealthService{
		cfg:   cfg,
		ready: ready,
	}
}

// Watch reports discovery results from bus on /ready and exports the bus drop
// count on every /metrics scrape.
func (s *HealthService) Watch(bus *eventbus.Bus) {
	s.mu.Lock()
	s.dropped = bus.Dropped
	s.mu.Unlock()

	bus.Subscribe(eventbus.EventTypeDiscovery, func(e eventbus.Event) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.topology = topology{
			Host:    e.String("host"),
			Devices: e.Int("devices"),
			Leds:    e.Int("leds"),
		}
	})
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

// Handler returns the health mux.
func (s *HealthService) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready once devices are discovered
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.ready != nil && !s.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"discovering"}`))
			return
		}

		s.mu.Lock()
		body := struct {
			Status string `json:"status"`
			topology
		}{Status: "ready", topology: s.topology}
		s.mu.Unlock()

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(body)
	})

	promHandler := metrics.HTTPHandler()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		dropped := s.dropped
		s.mu.Unlock()
		if dropped != nil {
			metrics.SetEventsDropped(dropped())
		}
		promHandler.ServeHTTP(w, r)
	})
	return mux
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	log.Info().Str("component", "app").Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Str("component", "app").Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Str("component", "app").Err(err).Msg("Health check server error")
	}
}
