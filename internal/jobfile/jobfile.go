// Package jobfile loads batch job descriptions from YAML or TOML files.
//
// A job lists tasks explicitly, as a parameter grid, or both:
//
//	width: 4
//	policy: skip
//	default_kind: sum
//	tasks:
//	  - kind: echo
//	    args: {msg: hi}
//	  - args: {values: [1, 2, 3]}
//	  - kind: exec
//	    args: {command: curl, args: [-sf, "http://localhost:8080/health"]}
//	    retries: 3
//	    retry_initial: 200ms
//	grid:
//	  kind: lua
//	  args: {script: "return a * b"}
//	  axes:
//	    - {name: a, values: [1, 2, 3]}
//	    - {name: b, values: [10, 20]}
//
// Every document is checked against an embedded JSON schema before it is
// turned into task specs.
package jobfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/batchrun/internal/tasks"
	"github.com/utkarsh5026/batchrun/pool"
)

// Format is the encoding of a job document.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

func (f Format) String() string {
	if f == FormatTOML {
		return "toml"
	}
	return "yaml"
}

// FormatFromPath picks the format from a file extension. JSON documents are
// read as YAML.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return 0, fmt.Errorf("cannot tell job format of %q (want .yaml, .yml, .json or .toml)", path)
	}
}

// Job is a decoded job document.
type Job struct {
	// Width is nil when the document does not set it.
	Width       *int     `yaml:"width" toml:"width"`
	Policy      string   `yaml:"policy" toml:"policy"`
	DefaultKind string   `yaml:"default_kind" toml:"default_kind"`
	Tasks       []Task   `yaml:"tasks" toml:"tasks"`
	Grid        *GridDef `yaml:"grid" toml:"grid"`
}

// Task is one explicitly listed task.
type Task struct {
	Kind string  `yaml:"kind" toml:"kind"`
	Args argList `yaml:"args" toml:"args"`
	Retry `yaml:",inline"`
}

// Retry asks for a failing task to be run again, up to Retries more times,
// with exponential backoff starting at RetryInitial (a duration such as
// "100ms"). The zero value runs a task once.
type Retry struct {
	Retries      uint   `yaml:"retries" toml:"retries"`
	RetryInitial string `yaml:"retry_initial" toml:"retry_initial"`
}

// wrap returns fn retried as r asks, or fn itself when r asks for nothing.
func (r Retry) wrap(fn pool.TaskFunc) pool.TaskFunc {
	if r.Retries == 0 {
		return fn
	}
	initial, _ := time.ParseDuration(r.RetryInitial)
	return tasks.Retrying(fn, r.Retries+1, initial)
}

func (r Retry) check(path string) error {
	if r.RetryInitial == "" {
		return nil
	}
	if d, err := time.ParseDuration(r.RetryInitial); err != nil || d < 0 {
		return &ValidationError{
			Path:    path + ".retry_initial",
			Message: fmt.Sprintf("invalid duration %q", r.RetryInitial),
		}
	}
	return nil
}

// GridDef expands into one task per point of the cartesian product of its
// axes. Args are shared by every point; axis values override them.
type GridDef struct {
	Kind string  `yaml:"kind" toml:"kind"`
	Args argList `yaml:"args" toml:"args"`
	Axes []Axis  `yaml:"axes" toml:"axes"`
	Retry `yaml:",inline"`
}

// Axis is one dimension of a grid.
type Axis struct {
	Name   string `yaml:"name" toml:"name"`
	Values []any  `yaml:"values" toml:"values"`
}

// Load reads and validates the job file at path.
func Load(path string) (*Job, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) // #nosec G304 -- the job path comes from the user
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	job, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return job, nil
}

// Parse decodes and validates a job document.
func Parse(data []byte, format Format) (*Job, error) {
	var doc any
	var job Job

	switch format {
	case FormatTOML:
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		doc = m
		if err := validate(doc); err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("decode toml job: %w", err)
		}

	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if doc == nil {
			return nil, &ValidationError{Message: "empty job document"}
		}
		if err := validate(doc); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("decode yaml job: %w", err)
		}
	}

	if err := job.check(); err != nil {
		return nil, err
	}
	return &job, nil
}

// check covers the rules the schema cannot express.
func (j *Job) check() error {
	if _, err := pool.ParseFailurePolicy(j.Policy); err != nil {
		return &ValidationError{Path: "policy", Message: err.Error()}
	}

	for i, t := range j.Tasks {
		if err := t.Retry.check(fmt.Sprintf("tasks[%d]", i)); err != nil {
			return err
		}
	}

	if j.Grid == nil {
		return nil
	}
	if err := j.Grid.Retry.check("grid"); err != nil {
		return err
	}
	if _, err := pool.GridSize(j.Grid.axes()...); err != nil {
		return &ValidationError{Path: "grid.axes", Message: err.Error()}
	}
	seen := make(map[string]bool, len(j.Grid.Axes))
	for i, ax := range j.Grid.Axes {
		if seen[ax.Name] {
			return &ValidationError{
				Path:    fmt.Sprintf("grid.axes[%d].name", i),
				Message: fmt.Sprintf("duplicate axis %q", ax.Name),
			}
		}
		seen[ax.Name] = true
	}
	return nil
}

// FailurePolicy returns the job's policy, Abort when unset.
func (j *Job) FailurePolicy() pool.FailurePolicy {
	p, _ := pool.ParseFailurePolicy(j.Policy)
	return p
}

// Specs turns the job into task specs: listed tasks first, in document
// order, then the grid points with the first axis varying fastest. Specs
// name their kind and leave it to the dispatcher's registry; retries are
// not applied. Use Bind to get runnable specs.
func (j *Job) Specs() []pool.TaskSpec {
	specs, _ := j.entries()
	return specs
}

// Bind is Specs with retries applied: every task that asks for retries gets
// its kind looked up in reg and wrapped with backoff. A task whose kind reg
// does not know is left by name, so the dispatcher reports it.
func (j *Job) Bind(reg *pool.Registry) []pool.TaskSpec {
	specs, retries := j.entries()
	for i, r := range retries {
		if r.Retries == 0 {
			continue
		}
		kind := specs[i].Kind
		if kind == "" {
			kind = j.DefaultKind
		}
		fn, err := reg.Lookup(kind)
		if err != nil {
			continue
		}
		specs[i].Kind = kind
		specs[i].Func = r.wrap(fn)
	}
	return specs
}

// entries returns the specs alongside the retry settings of each.
func (j *Job) entries() ([]pool.TaskSpec, []Retry) {
	specs := make([]pool.TaskSpec, 0, len(j.Tasks))
	retries := make([]Retry, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		specs = append(specs, pool.TaskSpec{Kind: t.Kind, Args: pool.Args(t.Args)})
		retries = append(retries, t.Retry)
	}

	if j.Grid == nil {
		return specs, retries
	}

	for _, point := range pool.Grid(j.Grid.axes()...) {
		specs = append(specs, pool.TaskSpec{
			Kind: j.Grid.Kind,
			Args: pool.Args(j.Grid.Args).Merge(point),
		})
		retries = append(retries, j.Grid.Retry)
	}
	return specs, retries
}

func (g *GridDef) axes() []pool.Axis {
	axes := make([]pool.Axis, len(g.Axes))
	for i, ax := range g.Axes {
		axes[i] = pool.Axis{Name: ax.Name, Values: ax.Values}
	}
	return axes
}
