package jobfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/utkarsh5026/batchrun/pool"
)

const sampleYAML = `
width: 4
policy: skip
default_kind: sum
tasks:
  - kind: echo
    args: {zeta: 1, alpha: 2}
  - args: {values: [1, 2, 3]}
grid:
  kind: lua
  args: {script: "return a * b"}
  axes:
    - {name: a, values: [1, 2, 3]}
    - {name: b, values: [10, 20]}
`

func TestParse_YAML(t *testing.T) {
	job, err := Parse([]byte(sampleYAML), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Width == nil || *job.Width != 4 {
		t.Errorf("expected width 4, got %v", job.Width)
	}
	if job.FailurePolicy() != pool.Skip {
		t.Errorf("expected skip policy, got %s", job.FailurePolicy())
	}
	if job.DefaultKind != "sum" {
		t.Errorf("expected default kind sum, got %q", job.DefaultKind)
	}

	specs := job.Specs()
	if len(specs) != 2+6 {
		t.Fatalf("expected 8 specs, got %d", len(specs))
	}

	if got := specs[0].Args.Names(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Errorf("expected document order, got %v", got)
	}
	if specs[1].Kind != "" {
		t.Errorf("expected task without kind, got %q", specs[1].Kind)
	}

	// first axis varies fastest
	wantPoints := [][2]int{{1, 10}, {2, 10}, {3, 10}, {1, 20}, {2, 20}, {3, 20}}
	for i, want := range wantPoints {
		spec := specs[2+i]
		if spec.Kind != "lua" {
			t.Errorf("grid spec %d: expected kind lua, got %q", i, spec.Kind)
		}
		a, _ := spec.Args.GetInt("a")
		b, _ := spec.Args.GetInt("b")
		if a != want[0] || b != want[1] {
			t.Errorf("grid spec %d: expected a=%d b=%d, got a=%d b=%d", i, want[0], want[1], a, b)
		}
		if s, _ := spec.Args.GetString("script"); s != "return a * b" {
			t.Errorf("grid spec %d: fixed args missing, got %v", i, spec.Args)
		}
	}
}

func TestParse_TOML(t *testing.T) {
	doc := `
policy = "abort"

[[tasks]]
kind = "sleep"
[tasks.args]
value = "done"
duration = "10ms"

[grid]
kind = "sum"
[[grid.axes]]
name = "x"
values = [1, 2]
`
	job, err := Parse([]byte(doc), FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Width != nil {
		t.Errorf("expected no width, got %d", *job.Width)
	}

	specs := job.Specs()
	if len(specs) != 3 {
		t.Fatalf("expected 3 specs, got %d", len(specs))
	}

	// TOML tables are ordered by name
	if got := specs[0].Args.Names(); !reflect.DeepEqual(got, []string{"duration", "value"}) {
		t.Errorf("expected sorted names, got %v", got)
	}
	if x, _ := specs[2].Args.GetInt("x"); x != 2 {
		t.Errorf("expected x=2 for the last point, got %d", x)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		format   Format
		wantPath string
	}{
		{"empty document", "", FormatYAML, ""},
		{"neither tasks nor grid", "width: 2", FormatYAML, ""},
		{"unknown field", "tasks: []\nworkers: 3", FormatYAML, ""},
		{"negative width", "width: -1\ntasks: []", FormatYAML, "width"},
		{"bad policy", "policy: retry\ntasks: []", FormatYAML, "policy"},
		{"kind not a string", "tasks:\n  - kind: 3", FormatYAML, "tasks[0].kind"},
		{"args not a mapping", "tasks:\n  - args: [1, 2]", FormatYAML, "tasks[0].args"},
		{"axis without values", "grid:\n  axes:\n    - {name: a}", FormatYAML, "grid.axes[0]"},
		{"duplicate axis", "grid:\n  axes:\n    - {name: a, values: [1]}\n    - {name: a, values: [2]}", FormatYAML, "grid.axes[1].name"},
		{"toml bad policy", "policy = \"retry\"\ntasks = []", FormatTOML, "policy"},
		{"negative retries", "tasks:\n  - kind: sum\n    retries: -1", FormatYAML, "tasks[0].retries"},
		{"bad retry delay", "tasks:\n  - retries: 2\n    retry_initial: soon", FormatYAML, "tasks[0].retry_initial"},
		{"bad grid retry delay", "grid:\n  retries: 1\n  retry_initial: -1s\n  axes:\n    - {name: a, values: [1]}", FormatYAML, "grid.retry_initial"},
		{"grid too large", hugeGrid(21), FormatYAML, "grid.axes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if tt.wantPath != "" && !strings.HasPrefix(ve.Path, tt.wantPath) {
				t.Errorf("expected path %q, got %q (%v)", tt.wantPath, ve.Path, ve)
			}
		})
	}
}

// hugeGrid returns a job whose grid has 2^n points.
func hugeGrid(n int) string {
	var b strings.Builder
	b.WriteString("grid:\n  kind: sum\n  axes:\n")
	for i := range n {
		fmt.Fprintf(&b, "    - {name: a%d, values: [0, 1]}\n", i)
	}
	return b.String()
}

func TestParse_SyntaxError(t *testing.T) {
	if _, err := Parse([]byte("tasks: [\n"), FormatYAML); err == nil {
		t.Error("expected a yaml syntax error")
	}
	if _, err := Parse([]byte("tasks = [\n"), FormatTOML); err == nil {
		t.Error("expected a toml syntax error")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"job.yaml", FormatYAML, false},
		{"job.YML", FormatYAML, false},
		{"job.json", FormatYAML, false},
		{"dir/job.toml", FormatTOML, false},
		{"job.txt", 0, true},
	}

	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("FormatFromPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "job.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	job, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(job.Specs()) != 8 {
		t.Errorf("expected 8 specs, got %d", len(job.Specs()))
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestPointerToPath(t *testing.T) {
	tests := map[string]string{
		"":                   "",
		"/":                  "",
		"/policy":            "policy",
		"/tasks/0/kind":      "tasks[0].kind",
		"/grid/axes/12":      "grid.axes[12]",
		"/tasks/0/args/a~1b": "tasks[0].args.a/b",
	}
	for in, want := range tests {
		if got := pointerToPath(in); got != want {
			t.Errorf("pointerToPath(%q) = %q, want %q", in, got, want)
		}
	}
}

const retryYAML = `
default_kind: flaky
tasks:
  - kind: flaky
    retries: 2
    retry_initial: 1ms
  - kind: flaky
  - retries: 2
    retry_initial: 1ms
  - kind: missing
    retries: 1
grid:
  kind: flaky
  retries: 1
  axes:
    - {name: n, values: [1]}
`

// flakyKind fails every other call, starting with the first.
func flakyKind(calls *atomic.Int32) pool.TaskFunc {
	return func(context.Context, pool.Args) (any, error) {
		if calls.Add(1)%2 == 1 {
			return nil, errors.New("temporary error")
		}
		return "ok", nil
	}
}

func TestBind_Retries(t *testing.T) {
	job, err := Parse([]byte(retryYAML), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Tasks[0].Retries != 2 || job.Tasks[0].RetryInitial != "1ms" || job.Grid.Retries != 1 {
		t.Fatalf("retry settings not decoded: %+v, %+v", job.Tasks[0], job.Grid)
	}

	var calls atomic.Int32
	reg := pool.NewRegistry()
	reg.MustRegister("flaky", flakyKind(&calls))

	specs := job.Bind(reg)
	if len(specs) != 5 {
		t.Fatalf("expected 5 specs, got %d", len(specs))
	}

	for _, i := range []int{0, 2, 4} {
		if specs[i].Func == nil {
			t.Errorf("spec %d: expected a retrying func", i)
		}
	}
	if specs[1].Func != nil {
		t.Error("a task without retries should stay by name")
	}
	if specs[2].Kind != "flaky" {
		t.Errorf("expected the default kind to be filled in, got %q", specs[2].Kind)
	}
	if specs[3].Func != nil || specs[3].Kind != "missing" {
		t.Errorf("an unknown kind should stay by name, got %+v", specs[3])
	}

	// Specs never wraps
	for i, spec := range job.Specs() {
		if spec.Func != nil {
			t.Errorf("Specs()[%d] has a func", i)
		}
	}
}

func TestBind_RetriedTaskSucceeds(t *testing.T) {
	job, err := Parse([]byte(`
tasks:
  - kind: flaky
    retries: 1
    retry_initial: 1ms
  - kind: flaky
`), FormatYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var calls atomic.Int32
	reg := pool.NewRegistry()
	reg.MustRegister("flaky", flakyKind(&calls))

	results, err := pool.New(
		pool.WithWidth(1),
		pool.WithRegistry(reg),
		pool.WithFailurePolicy(pool.Skip),
	).Run(context.Background(), job.Bind(reg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// call 1 fails, the retry (call 2) succeeds; the second task gets
	// call 3, which fails and is not retried
	if results[0].Status != pool.StatusOK || results[0].Value != "ok" {
		t.Errorf("expected the retried task to succeed, got %+v", results[0])
	}
	if results[0].Kind != "flaky" {
		t.Errorf("expected kind flaky, got %q", results[0].Kind)
	}
	if results[1].Status != pool.StatusSkipped {
		t.Errorf("expected the task without retries to be skipped, got %+v", results[1])
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestParse_TOMLRetries(t *testing.T) {
	job, err := Parse([]byte(`
[[tasks]]
kind = "sum"
retries = 3
retry_initial = "50ms"
`), FormatTOML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Tasks[0].Retries != 3 || job.Tasks[0].RetryInitial != "50ms" {
		t.Errorf("unexpected retry settings %+v", job.Tasks[0].Retry)
	}
}
