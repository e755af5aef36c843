// Package script is an input source driven by a Lua script. It stands in for a
// controller in demos and tests.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/taikolights/internal/input"
)

var errQuit = errors.New("pad.quit")

// Script runs a Lua file on its own goroutine and yields the events it emits.
type Script struct {
	name string
	L    *lua.LState
	fn   *lua.LFunction

	events chan input.Event
	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	started   bool
	closeOnce sync.Once
	done      chan struct{}
}

var _ input.Source = (*Script)(nil)

// Load compiles the script at path. Errors wrap input.ErrUnavailable.
func Load(path string) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w: %w", path, input.ErrUnavailable, err)
	}
	return Compile(path, string(src))
}

// Compile builds a source from Lua code; name is used in logs.
func Compile(name, code string) (*Script, error) {
	L := lua.NewState()

	fn, err := L.LoadString(code)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("compile script %s: %w: %w", name, input.ErrUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Script{
		name:   name,
		L:      L,
		fn:     fn,
		events: make(chan input.Event),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	pad := &padModule{emit: s.emit}
	L.PreloadModule("pad", pad.Loader)
	L.PreloadModule("log", NewLogModule(name).Loader)
	L.SetContext(ctx)

	return s, nil
}

// emit hands an event to Next. It blocks until the event is taken or the source
// is closed; this is the only goroutine touching the Lua state.
func (s *Script) emit(L *lua.LState, ev input.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
		L.RaiseError("%s", s.ctx.Err().Error())
	}
}

func (s *Script) run() {
	defer close(s.done)
	defer close(s.events)

	s.L.Push(s.fn)
	err := s.L.PCall(0, lua.MultRet, nil)
	switch {
	case err == nil:
		log.Debug().Str("component", "input").Str("script", s.name).Msg("Script finished")
	case strings.Contains(err.Error(), errQuit.Error()), s.ctx.Err() != nil:
	default:
		log.Error().Str("component", "input").Err(err).Str("script", s.name).Msg("Script failed")
	}
}

// Next returns the next event emitted by the script. The script is started on the
// first call. When the script returns or fails, Next reports Quit.
func (s *Script) Next(ctx context.Context) (input.Event, error) {
	s.startOnce.Do(func() {
		s.started = true
		go s.run()
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return input.Quit{}, nil
		}
		return ev, nil
	}
}

// Name returns the script path.
func (s *Script) Name() string {
	return s.name
}

// Close stops the script and releases the Lua state.
func (s *Script) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		// Prevent a later Next from starting the script.
		s.startOnce.Do(func() {})
		if s.started {
			<-s.done
		}
		s.L.Close()
	})
	return nil
}
