// Package tasks holds the built-in task kinds a job file can name.
package tasks

import (
	"fmt"

	"github.com/utkarsh5026/batchrun/pool"
)

// Built-in kind names.
const (
	KindEcho  = "echo"
	KindSleep = "sleep"
	KindSum   = "sum"
	KindExec  = "exec"
	KindLua   = "lua"
)

var descriptions = map[string]string{
	KindEcho:  "returns its arguments as a map",
	KindSleep: "waits for duration, then returns value",
	KindSum:   "adds the values list, or every numeric arg",
	KindExec:  "runs command and returns its exit code and output",
	KindLua:   "runs script in a sandboxed Lua state with args as globals",
}

// Description returns a one-line summary of a built-in kind, or "" for any
// other kind.
func Description(kind string) string {
	return descriptions[kind]
}

// Builtins returns the built-in kinds keyed by name.
func Builtins() map[string]pool.TaskFunc {
	return map[string]pool.TaskFunc{
		KindEcho:  Echo,
		KindSleep: Sleep,
		KindSum:   Sum,
		KindExec:  Exec,
		KindLua:   Lua,
	}
}

// Register installs every built-in kind in reg.
func Register(reg *pool.Registry) error {
	for kind, fn := range Builtins() {
		if err := reg.Register(kind, fn); err != nil {
			return fmt.Errorf("register builtin tasks: %w", err)
		}
	}
	return nil
}
