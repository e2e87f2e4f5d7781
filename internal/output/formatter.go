// Package output renders dispatcher results as a table, JSON, YAML or an
// Excel workbook.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/utkarsh5026/batchrun/pool"
)

// Format represents the output format type
type Format string

const (
	// FormatTable prints an aligned table with colored statuses
	FormatTable Format = "table"
	// FormatJSON prints a JSON document
	FormatJSON Format = "json"
	// FormatYAML prints a YAML document
	FormatYAML Format = "yaml"
	// FormatXLSX writes an Excel workbook
	FormatXLSX Format = "xlsx"
)

// Formatter renders the results of one run.
type Formatter interface {
	Format(w io.Writer, results []pool.Result) error
}

// Option is a functional option for configuring formatters
type Option func(*Options)

// Options holds configuration for formatters
type Options struct {
	// NoColor disables color output
	NoColor bool

	// MaxValueWidth truncates values in the table, 0 means no limit
	MaxValueWidth int
}

// WithNoColor disables color output
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithMaxValueWidth truncates table values longer than n characters.
func WithMaxValueWidth(n int) Option {
	return func(o *Options) {
		o.MaxValueWidth = n
	}
}

// NewFormatter creates a formatter for format.
func NewFormatter(format Format, opts ...Option) (Formatter, error) {
	options := &Options{MaxValueWidth: 60}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatTable, "":
		return &TableFormatter{options: options}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	case FormatXLSX:
		return &XLSXFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Row is the flattened, serializable form of one result slot.
type Row struct {
	Index    int    `json:"index" yaml:"index"`
	Kind     string `json:"kind" yaml:"kind"`
	Status   string `json:"status" yaml:"status"`
	Worker   int    `json:"worker" yaml:"worker"`
	Duration string `json:"duration" yaml:"duration"`
	Value    any    `json:"value" yaml:"value"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the document written by the JSON and YAML formatters.
type Report struct {
	Summary Totals `json:"summary" yaml:"summary"`
	Results []Row  `json:"results" yaml:"results"`
}

// Totals mirrors pool.Summary with serialization tags.
type Totals struct {
	Total   int `json:"total" yaml:"total"`
	OK      int `json:"ok" yaml:"ok"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Aborted int `json:"aborted" yaml:"aborted"`
	Pending int `json:"pending" yaml:"pending"`
}

// Rows flattens results. Sentinel slots get a nil value. NaN and infinite
// floats, at any depth, become the strings "NaN", "+Inf" and "-Inf" so every
// encoder accepts the row.
func Rows(results []pool.Result) []Row {
	rows := make([]Row, len(results))
	for i, r := range results {
		row := Row{
			Index:    r.Index,
			Kind:     r.Kind,
			Status:   r.Status.String(),
			Worker:   r.Worker,
			Duration: formatDuration(r.Duration),
		}
		if r.OK() {
			row.Value, _ = finite(r.Value)
		}
		if r.Err != nil {
			row.Error = firstLine(r.Err.Error())
		}
		rows[i] = row
	}
	return rows
}

// NewReport builds the document for results.
func NewReport(results []pool.Result) Report {
	s := pool.Summarize(results)
	return Report{
		Summary: Totals{Total: s.Total, OK: s.OK, Skipped: s.Skipped, Aborted: s.Aborted, Pending: s.Pending},
		Results: Rows(results),
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}

// finite replaces non-finite floats in v and reports whether it did. Maps
// and slices are copied only when something inside them changes.
func finite(v any) (any, bool) {
	switch x := v.(type) {
	case float64:
		return finiteFloat(x)
	case float32:
		return finiteFloat(float64(x))
	case pool.Args:
		if m, changed := finite(x.Map()); changed {
			return m, true
		}
		return x, false
	case map[string]any:
		var out map[string]any
		for k, e := range x {
			f, changed := finite(e)
			if !changed {
				continue
			}
			if out == nil {
				out = make(map[string]any, len(x))
				for k2, e2 := range x {
					out[k2] = e2
				}
			}
			out[k] = f
		}
		if out == nil {
			return x, false
		}
		return out, true
	case []any:
		var out []any
		for i, e := range x {
			f, changed := finite(e)
			if !changed {
				continue
			}
			if out == nil {
				out = append([]any(nil), x...)
			}
			out[i] = f
		}
		if out == nil {
			return x, false
		}
		return out, true
	default:
		return v, false
	}
}

func finiteFloat(f float64) (any, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "+Inf", true
	case math.IsInf(f, -1):
		return "-Inf", true
	default:
		return f, false
	}
}

// formatValue renders a value on one line: strings as-is, composites as JSON.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return firstLine(x)
	case fmt.Stringer:
		return x.String()
	case pool.Args:
		return formatValue(x.Map())
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

// firstLine cuts s at its first line break. Panic errors carry stack traces.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
