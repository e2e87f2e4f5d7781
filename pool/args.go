package pool

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Arg is a single named argument.
type Arg struct {
	Name  string
	Value any
}

// Args is an ordered mapping of argument names to values.
// Order is insertion order; names are unique.
type Args []Arg

// NewArgs builds Args from alternating name/value pairs.
// It panics if a name is not a string or a value is missing.
//
// Example:
//
//	args := NewArgs("symbol", "BTC", "window", 20)
func NewArgs(pairs ...any) Args {
	if len(pairs)%2 != 0 {
		panic("pool.NewArgs: odd number of arguments")
	}

	args := make(Args, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("pool.NewArgs: argument name at position %d is %T, not string", i, pairs[i]))
		}
		args = args.With(name, pairs[i+1])
	}
	return args
}

// ArgsFromMap builds Args from a map, ordering names lexically.
func ArgsFromMap(m map[string]any) Args {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)

	args := make(Args, len(names))
	for i, name := range names {
		args[i] = Arg{Name: name, Value: m[name]}
	}
	return args
}

// Get returns the value stored under name.
func (a Args) Get(name string) (any, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is present.
func (a Args) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// With returns a copy of a with name set to value. An existing name keeps
// its position; a new name is appended.
func (a Args) With(name string, value any) Args {
	out := slices.Clone(a)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Arg{Name: name, Value: value})
}

// Without returns a copy of a with name removed.
func (a Args) Without(name string) Args {
	return slices.DeleteFunc(slices.Clone(a), func(arg Arg) bool {
		return arg.Name == name
	})
}

// Merge returns a copy of a overlaid with every argument of b.
func (a Args) Merge(b Args) Args {
	out := slices.Clone(a)
	for _, arg := range b {
		out = out.With(arg.Name, arg.Value)
	}
	return out
}

// Names returns the argument names in order.
func (a Args) Names() []string {
	names := make([]string, len(a))
	for i, arg := range a {
		names[i] = arg.Name
	}
	return names
}

// Map returns the arguments as a plain map.
func (a Args) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// GetString returns the named argument as a string.
func (a Args) GetString(name string) (string, error) {
	v, err := a.lookup(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &ArgError{Name: name, Want: "string", Got: v}
	}
	return s, nil
}

// GetInt returns the named argument as an int.
// Integral floats (as decoded from YAML or JSON) are accepted.
func (a Args) GetInt(name string) (int, error) {
	v, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil // #nosec G115 -- argument values are small counts
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
	}
	return 0, &ArgError{Name: name, Want: "int", Got: v}
}

// GetFloat returns the named argument as a float64.
func (a Args) GetFloat(name string) (float64, error) {
	v, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	if f, ok := ToFloat(v); ok {
		return f, nil
	}
	return 0, &ArgError{Name: name, Want: "number", Got: v}
}

// GetBool returns the named argument as a bool.
func (a Args) GetBool(name string) (bool, error) {
	v, err := a.lookup(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ArgError{Name: name, Want: "bool", Got: v}
	}
	return b, nil
}

// GetDuration returns the named argument as a time.Duration.
// Strings are parsed with time.ParseDuration; numbers are read as milliseconds.
func (a Args) GetDuration(name string) (time.Duration, error) {
	v, err := a.lookup(name)
	if err != nil {
		return 0, err
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case string:
		parsed, perr := time.ParseDuration(d)
		if perr != nil {
			return 0, &ArgError{Name: name, Want: "duration", Got: v}
		}
		return parsed, nil
	}
	if ms, ok := ToFloat(v); ok {
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, &ArgError{Name: name, Want: "duration", Got: v}
}

// GetSlice returns the named argument as a []any.
func (a Args) GetSlice(name string) ([]any, error) {
	v, err := a.lookup(name)
	if err != nil {
		return nil, err
	}
	switch s := v.(type) {
	case []any:
		return s, nil
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	case []float64:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	case []int:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, nil
	}
	return nil, &ArgError{Name: name, Want: "list", Got: v}
}

func (a Args) lookup(name string) (any, error) {
	v, ok := a.Get(name)
	if !ok {
		return nil, &ArgError{Name: name}
	}
	return v, nil
}

// ToFloat converts any Go numeric value to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}
