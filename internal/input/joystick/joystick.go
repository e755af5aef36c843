// Package joystick reads a Linux joystick device (/dev/input/jsN).
//
// Button and axis numbers are forwarded as reported by the kernel driver.
package joystick

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/taikolights/internal/input"
)

// js_event layout: time u32, value i16, type u8, number u8.
const eventSize = 8

const (
	typeButton = 0x01
	typeAxis   = 0x02
	typeInit   = 0x80
)

// pollInterval is how often Open retries while waiting for the device.
const pollInterval = 250 * time.Millisecond

type result struct {
	ev  input.Event
	err error
}

// Joystick is an input.Source backed by a joystick device.
type Joystick struct {
	name string
	r    io.ReadCloser

	events chan result
	once   sync.Once
	closed chan struct{}
}

var _ input.Source = (*Joystick)(nil)

// Open opens path, retrying until wait has elapsed. A zero wait tries once. When
// the device never appears the error wraps input.ErrUnavailable.
func Open(ctx context.Context, path string, wait time.Duration) (*Joystick, error) {
	deadline := time.Now().Add(wait)
	logged := false

	for {
		f, err := os.Open(path)
		if err == nil {
			log.Info().Str("component", "input").Str("device", path).Msg("Joystick opened")
			return New(path, f), nil
		}

		if !logged {
			log.Info().Str("component", "input").Str("device", path).Dur("wait", wait).Msg("Waiting for joystick")
			logged = true
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("open %s: %w: %w", path, input.ErrUnavailable, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("open %s: %w: %w", path, input.ErrUnavailable, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// New wraps an open joystick stream.
func New(name string, r io.ReadCloser) *Joystick {
	j := &Joystick{
		name:   name,
		r:      r,
		events: make(chan result, 16),
		closed: make(chan struct{}),
	}
	go j.readLoop()
	return j
}

func (j *Joystick) readLoop() {
	defer close(j.events)

	var buf [eventSize]byte
	for {
		if _, err := io.ReadFull(j.r, buf[:]); err != nil {
			select {
			case j.events <- result{err: err}:
			case <-j.closed:
			}
			return
		}

		ev, ok := Decode(buf)
		if !ok {
			continue
		}
		select {
		case j.events <- result{ev: ev}:
		case <-j.closed:
			return
		}
	}
}

// Decode turns one js_event record into an input event. Synthetic init events and
// unknown types are dropped.
func Decode(rec [eventSize]byte) (input.Event, bool) {
	value := int16(binary.LittleEndian.Uint16(rec[4:6]))
	typ := rec[6]
	number := rec[7]

	if typ&typeInit != 0 {
		return nil, false
	}

	switch typ {
	case typeButton:
		if value != 0 {
			return input.ButtonDown{Button: input.Button(number)}, true
		}
		return input.ButtonUp{Button: input.Button(number)}, true
	case typeAxis:
		return input.AxisMotion{Axis: input.Axis(number), Value: value}, true
	}
	return nil, false
}

// Next returns the next event. A read failure after the device was opened (for
// example the controller being unplugged) ends the session with Quit.
func (j *Joystick) Next(ctx context.Context) (input.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res, ok := <-j.events:
		if !ok {
			return input.Quit{}, nil
		}
		if res.err != nil {
			if !errors.Is(res.err, io.EOF) && !errors.Is(res.err, os.ErrClosed) {
				log.Warn().Str("component", "input").Err(res.err).Str("device", j.name).Msg("Joystick read failed")
			}
			return input.Quit{}, nil
		}
		return res.ev, nil
	}
}

// Name returns the device path.
func (j *Joystick) Name() string {
	return j.name
}

// Close releases the device.
func (j *Joystick) Close() error {
	var err error
	j.once.Do(func() {
		close(j.closed)
		err = j.r.Close()
	})
	return err
}
