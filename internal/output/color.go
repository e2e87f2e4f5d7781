package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/utkarsh5026/batchrun/pool"
)

// ColorScheme provides the colors used by the table formatter.
type ColorScheme struct {
	OK       *color.Color
	Skipped  *color.Color
	Aborted  *color.Color
	Pending  *color.Color
	Header   *color.Color
	Duration *color.Color

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a color scheme for w.
// Colors are disabled for non-TTY writers or when noColor is true.
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	cs := &ColorScheme{
		OK:       color.New(color.FgGreen),
		Skipped:  color.New(color.FgYellow),
		Aborted:  color.New(color.FgRed, color.Bold),
		Pending:  color.New(color.Faint),
		Header:   color.New(color.Bold),
		Duration: color.New(color.FgBlue),
	}

	if noColor || !isTTY(w) {
		for _, c := range []*color.Color{cs.OK, cs.Skipped, cs.Aborted, cs.Pending, cs.Header, cs.Duration} {
			c.DisableColor()
		}
		cs.Disabled = true
	} else {
		for _, c := range []*color.Color{cs.OK, cs.Skipped, cs.Aborted, cs.Pending, cs.Header, cs.Duration} {
			c.EnableColor()
		}
	}
	return cs
}

// isTTY checks if the writer is a terminal
func isTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Status returns the color for a result status.
func (cs *ColorScheme) Status(s pool.Status) *color.Color {
	switch s {
	case pool.StatusOK:
		return cs.OK
	case pool.StatusSkipped:
		return cs.Skipped
	case pool.StatusAborted:
		return cs.Aborted
	default:
		return cs.Pending
	}
}
