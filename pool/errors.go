package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCallable means a task has neither its own callable nor a default.
	ErrNoCallable = errors.New("no callable to execute")

	// ErrUnknownKind is returned when a task kind is not registered.
	ErrUnknownKind = errors.New("unknown task kind")

	// ErrDuplicateKind is returned when a kind is registered twice.
	ErrDuplicateKind = errors.New("task kind already registered")

	// ErrMissingArg is matched by ArgError when the argument is absent.
	ErrMissingArg = errors.New("missing argument")
)

// ConfigError is the only error Run returns before starting any work:
// a task at Index could not be given a callable.
type ConfigError struct {
	Index int
	Kind  string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("task %d (kind %q): %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("task %d: %v", e.Index, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// TaskError records a failed task inside its Result slot.
type TaskError struct {
	Index int
	Kind  string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s) failed: %v", e.Index, e.Kind, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError is the failure recorded when a task func panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}

// ArgError reports a missing or mistyped task argument.
type ArgError struct {
	Name string
	Want string
	Got  any
}

func (e *ArgError) Error() string {
	if e.Want == "" {
		return fmt.Sprintf("missing argument %q", e.Name)
	}
	return fmt.Sprintf("argument %q: want %s, got %T", e.Name, e.Want, e.Got)
}

// Is makes errors.Is(err, ErrMissingArg) hold for absent arguments.
func (e *ArgError) Is(target error) bool {
	return target == ErrMissingArg && e.Want == ""
}
