// Package lightingtest provides an in-memory lighting.Host for tests.
package lightingtest

import (
	"context"
	"sync"

	"github.com/dokzlo13/taikolights/internal/lighting"
)

// SetCall records one SetLedColors call.
type SetCall struct {
	Device lighting.DeviceID
	Colors []lighting.LedColor
}

// Host is a scripted lighting.Host. Flushes complete synchronously on the caller's
// goroutine unless Async is set.
type Host struct {
	mu sync.Mutex

	DeviceList []lighting.DeviceInfo
	Layout     map[lighting.DeviceID][]lighting.LedID

	// NotConnectedFor makes the first N Devices calls fail with CodeNotConnected.
	NotConnectedFor int
	DevicesErr      error
	ConnectErr      error
	LedErr          map[lighting.DeviceID]error
	SetErr          map[lighting.DeviceID]error
	FlushErr        error
	Async           bool

	ConnectStates []lighting.SessionStateChanged

	DeviceCalls int
	LedCalls    []lighting.DeviceID
	Sets        []SetCall
	Flushes     int
	Closed      bool
}

var _ lighting.Host = (*Host)(nil)

// Connect reports ConnectStates (or a single Connected) to onState.
func (h *Host) Connect(_ context.Context, onState lighting.SessionHandler) error {
	if h.ConnectErr != nil {
		return h.ConnectErr
	}
	states := h.ConnectStates
	if states == nil {
		states = []lighting.SessionStateChanged{{State: lighting.SessionConnected}}
	}
	if onState != nil {
		for _, s := range states {
			onState(s)
		}
	}
	return nil
}

// Devices returns DeviceList, after NotConnectedFor not-connected failures.
func (h *Host) Devices(_ context.Context, max int) ([]lighting.DeviceInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.DeviceCalls++
	if h.DeviceCalls <= h.NotConnectedFor {
		return nil, lighting.NewTransportError("devices", lighting.CodeNotConnected, nil)
	}
	if h.DevicesErr != nil {
		return nil, h.DevicesErr
	}
	out := h.DeviceList
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// LedPositions returns the configured layout for device.
func (h *Host) LedPositions(_ context.Context, device lighting.DeviceID, max int) ([]lighting.LedID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LedCalls = append(h.LedCalls, device)
	if err := h.LedErr[device]; err != nil {
		return nil, err
	}
	ids := h.Layout[device]
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

// SetLedColors records the call.
func (h *Host) SetLedColors(device lighting.DeviceID, colors []lighting.LedColor) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.SetErr[device]; err != nil {
		return err
	}
	cp := make([]lighting.LedColor, len(colors))
	copy(cp, colors)
	h.Sets = append(h.Sets, SetCall{Device: device, Colors: cp})
	return nil
}

// FlushAsync counts the flush and reports FlushErr to done.
func (h *Host) FlushAsync(done func(error)) {
	h.mu.Lock()
	h.Flushes++
	err := h.FlushErr
	async := h.Async
	h.mu.Unlock()

	if done == nil {
		return
	}
	if async {
		go done(err)
		return
	}
	done(err)
}

// Close marks the host closed.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Closed = true
	return nil
}

// SetCount returns the number of recorded set calls.
func (h *Host) SetCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Sets)
}

// FlushCount returns the number of flushes.
func (h *Host) FlushCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Flushes
}

// LastColor returns the color of the most recent set call and whether one exists.
func (h *Host) LastColor() (lighting.Color, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.Sets) == 0 || len(h.Sets[len(h.Sets)-1].Colors) == 0 {
		return lighting.Color{}, false
	}
	c := h.Sets[len(h.Sets)-1].Colors[0]
	return lighting.Color{R: c.R, G: c.G, B: c.B}, true
}

// Reset clears recorded calls.
func (h *Host) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Sets = nil
	h.Flushes = 0
	h.LedCalls = nil
	h.DeviceCalls = 0
}
