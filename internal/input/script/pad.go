package script

import (
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/taikolights/internal/input"
)

// padModule exposes a virtual controller to Lua:
//
//	local pad = require("pad")
//	pad.down(pad.A)        -- or pad.down("a")
//	pad.sleep(50)          -- milliseconds
//	pad.up(pad.A)
//	pad.axis(pad.ZL, 32767)
//	pad.quit()
type padModule struct {
	emit func(L *lua.LState, ev input.Event)
}

func (m *padModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "down", L.NewFunction(m.down))
	L.SetField(mod, "up", L.NewFunction(m.up))
	L.SetField(mod, "press", L.NewFunction(m.press))
	L.SetField(mod, "axis", L.NewFunction(m.axis))
	L.SetField(mod, "sleep", L.NewFunction(m.sleep))
	L.SetField(mod, "quit", L.NewFunction(m.quit))

	for name, b := range input.ButtonNames() {
		L.SetField(mod, strings.ToUpper(name), lua.LNumber(b))
	}
	L.SetField(mod, "ZL", lua.LNumber(input.AxisLeftTrigger))
	L.SetField(mod, "ZR", lua.LNumber(input.AxisRightTrigger))

	L.Push(mod)
	return 1
}

// checkButton accepts a button id or a name such as "dpad_up".
func checkButton(L *lua.LState, n int) input.Button {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		if v < 0 || v > 255 {
			L.ArgError(n, "button id out of range")
		}
		return input.Button(v)
	case lua.LString:
		b, ok := input.ButtonNames()[strings.ToLower(string(v))]
		if !ok {
			L.ArgError(n, "unknown button "+string(v))
		}
		return b
	default:
		L.ArgError(n, "button id or name expected")
	}
	return 0
}

func (m *padModule) down(L *lua.LState) int {
	m.emit(L, input.ButtonDown{Button: checkButton(L, 1)})
	return 0
}

func (m *padModule) up(L *lua.LState) int {
	m.emit(L, input.ButtonUp{Button: checkButton(L, 1)})
	return 0
}

// press emits down, waits hold milliseconds (default 30) and emits up.
func (m *padModule) press(L *lua.LState) int {
	b := checkButton(L, 1)
	hold := L.OptInt(2, 30)
	m.emit(L, input.ButtonDown{Button: b})
	sleep(L, time.Duration(hold)*time.Millisecond)
	m.emit(L, input.ButtonUp{Button: b})
	return 0
}

func (m *padModule) axis(L *lua.LState) int {
	a := L.CheckInt(1)
	v := L.CheckInt(2)
	if a < 0 || a > 255 {
		L.ArgError(1, "axis id out of range")
	}
	if v < -32768 || v > 32767 {
		L.ArgError(2, "axis value out of range")
	}
	m.emit(L, input.AxisMotion{Axis: input.Axis(a), Value: int16(v)})
	return 0
}

func (m *padModule) sleep(L *lua.LState) int {
	sleep(L, time.Duration(L.CheckInt(1))*time.Millisecond)
	return 0
}

func (m *padModule) quit(L *lua.LState) int {
	m.emit(L, input.Quit{})
	L.RaiseError("%s", errQuit.Error())
	return 0
}

func sleep(L *lua.LState, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-L.Context().Done():
		L.RaiseError("%s", L.Context().Err().Error())
	}
}
