package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	HTTPHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	return w.Body.String()
}

func TestHTTPHandler(t *testing.T) {
	RecordInput("button_down", "red")
	RecordBroadcast("red", 2)
	RecordFlush(nil)
	RecordFlush(errors.New("boom"))
	SetTopology(3, 120)
	SetDiscoveryAttempts(4)
	SetSessionState("connected", []string{"connecting", "connected"})
	SetEventsDropped(7)

	body := scrape(t)

	for _, want := range []string{
		`taikolights_input_events_total{category="red",kind="button_down"}`,
		`taikolights_lighting_broadcasts_total{color="red"}`,
		`taikolights_lighting_set_failures_total`,
		`taikolights_lighting_flushes_total{result="error"}`,
		`taikolights_lighting_flushes_total{result="ok"}`,
		`taikolights_lighting_devices 3`,
		`taikolights_lighting_leds 120`,
		`taikolights_host_discovery_attempts 4`,
		`taikolights_host_session_state{state="connected"} 1`,
		`taikolights_host_session_state{state="connecting"} 0`,
		`taikolights_eventbus_dropped_events 7`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
