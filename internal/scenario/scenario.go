// Package scenario drives the rig from a Lua script. The script defines a global function
// input(t) returning a table such as {forward=1, turn=0.2, jump=false, camera={x=0,y=0,z=1}}.
package scenario

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	lua "github.com/yuin/gopher-lua"

	"github.com/Versifine/strider/internal/input"
)

const entryPoint = "input"

type Script struct {
	mu   sync.Mutex
	l    *lua.LState
	fn   lua.LValue
	name string
	err  error
}

func Load(path string) (*Script, error) {
	return newScript(path, func(l *lua.LState) error { return l.DoFile(path) })
}

func LoadString(name, src string) (*Script, error) {
	return newScript(name, func(l *lua.LState) error { return l.DoString(src) })
}

func newScript(name string, run func(*lua.LState) error) (*Script, error) {
	l := lua.NewState()
	registerHelpers(l, name)
	if err := run(l); err != nil {
		l.Close()
		return nil, fmt.Errorf("load scenario %s: %w", name, err)
	}
	fn := l.GetGlobal(entryPoint)
	if fn.Type() != lua.LTFunction {
		l.Close()
		return nil, fmt.Errorf("scenario %s does not define %s(t)", name, entryPoint)
	}
	return &Script{l: l, fn: fn, name: name}, nil
}

func luaRegister(l *lua.LState, name string, f func(*lua.LState) int) {
	l.Register(name, f)
}

func registerHelpers(l *lua.LState, name string) {
	luaRegister(l, "log", func(l *lua.LState) int {
		slog.Info("scenario", "script", name, "msg", l.ToString(1))
		return 0
	})
	// between(t, a, b) is true for a <= t < b.
	luaRegister(l, "between", func(l *lua.LState) int {
		t, a, b := numArg(l, 1), numArg(l, 2), numArg(l, 3)
		l.Push(lua.LBool(t >= a && t < b))
		return 1
	})
}

func numArg(l *lua.LState, argi int) float64 {
	num, ok := l.Get(argi).(lua.LNumber)
	if !ok {
		l.RaiseError("argument %v is not a number: %v", argi, l.Get(argi))
	}
	return float64(num)
}

// Sample evaluates input(now). After the first script error every call returns the zero
// sample and Err reports the failure.
func (s *Script) Sample(now float64) input.Sample {
	if s == nil {
		return input.Sample{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil || s.l == nil {
		return input.Sample{}
	}

	if err := s.l.CallByParam(lua.P{Fn: s.fn, NRet: 1, Protect: true}, lua.LNumber(now)); err != nil {
		s.err = fmt.Errorf("scenario %s at t=%.3f: %w", s.name, now, err)
		slog.Error("scenario failed, input released", "error", s.err)
		return input.Sample{}
	}
	ret := s.l.Get(-1)
	s.l.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return input.Sample{}
	}
	return sampleFromTable(tbl)
}

func sampleFromTable(tbl *lua.LTable) input.Sample {
	return input.Sample{
		Forward:    number(tbl.RawGetString("forward")),
		Strafe:     number(tbl.RawGetString("strafe")),
		Turn:       number(tbl.RawGetString("turn")),
		Jump:       lua.LVAsBool(tbl.RawGetString("jump")),
		FaceCamera: lua.LVAsBool(tbl.RawGetString("face_camera")),
		Camera:     vector(tbl.RawGetString("camera")),
	}
}

func number(v lua.LValue) float64 {
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// vector accepts {x=,y=,z=} or {x, y, z}.
func vector(v lua.LValue) mgl64.Vec3 {
	t, ok := v.(*lua.LTable)
	if !ok {
		return mgl64.Vec3{}
	}
	if t.RawGetString("x") != lua.LNil || t.RawGetString("z") != lua.LNil {
		return mgl64.Vec3{number(t.RawGetString("x")), number(t.RawGetString("y")), number(t.RawGetString("z"))}
	}
	return mgl64.Vec3{number(t.RawGetInt(1)), number(t.RawGetInt(2)), number(t.RawGetInt(3))}
}

func (s *Script) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Script) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.l != nil {
		s.l.Close()
		s.l = nil
	}
}
