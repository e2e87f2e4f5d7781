package tasks

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/utkarsh5026/batchrun/pool"
)

const defaultLuaTimeout = 10 * time.Second

// Lua evaluates the "script" argument in a sandboxed Lua state and returns
// the script's first return value converted to Go.
//
// Every other argument is exposed to the script as a global of the same
// name. Only the base, string, table and math libraries are opened, so
// scripts cannot reach the file system or spawn processes. The optional
// "timeout" argument bounds the run (10s by default); ctx also stops it.
func Lua(ctx context.Context, args pool.Args) (any, error) {
	script, err := args.GetString("script")
	if err != nil {
		return nil, err
	}

	timeout := defaultLuaTimeout
	if args.Has("timeout") {
		if timeout, err = args.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	L := newSandboxState()
	defer L.Close()
	L.SetContext(ctx)

	for _, arg := range args {
		if arg.Name == "script" || arg.Name == "timeout" {
			continue
		}
		L.SetGlobal(arg.Name, toLValue(L, arg.Value))
	}

	fn, err := L.LoadString(script)
	if err != nil {
		return nil, fmt.Errorf("lua: compile: %w", err)
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("lua: %w", ctx.Err())
		}
		return nil, fmt.Errorf("lua: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return fromLValue(ret), nil
}

func newSandboxState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	// base opens these; they reach the file system
	for _, name := range []string{"dofile", "loadfile"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func toLValue(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case map[string]any:
		tbl := L.NewTable()
		for k, v2 := range x {
			tbl.RawSetString(k, toLValue(L, v2))
		}
		return tbl
	case []any:
		tbl := L.NewTable()
		for i, v2 := range x {
			tbl.RawSetInt(i+1, toLValue(L, v2))
		}
		return tbl
	case pool.Args:
		return toLValue(L, x.Map())
	}
	if f, ok := pool.ToFloat(v); ok {
		return lua.LNumber(f)
	}
	return lua.LString(fmt.Sprint(v))
}

// fromLValue converts a Lua value to Go. Integral numbers become int, tables
// with keys 1..n become []any, other tables map[string]any.
func fromLValue(v lua.LValue) any {
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTBool:
		return lua.LVAsBool(v)
	case lua.LTNumber:
		n := float64(v.(lua.LNumber))
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int(n)
		}
		return n
	case lua.LTString:
		return v.String()
	case lua.LTTable:
		t := v.(*lua.LTable)
		if n := t.Len(); n > 0 && countKeys(t) == n {
			arr := make([]any, n)
			for i := range n {
				arr[i] = fromLValue(t.RawGetInt(i + 1))
			}
			return arr
		}
		obj := map[string]any{}
		t.ForEach(func(k, val lua.LValue) {
			obj[strings.TrimSpace(k.String())] = fromLValue(val)
		})
		return obj
	default:
		return v.String()
	}
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(lua.LValue, lua.LValue) { n++ })
	return n
}
