package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/utkarsh5026/batchrun/pool"
)

// TableFormatter prints one row per task followed by a summary line.
type TableFormatter struct {
	options *Options
}

func (f *TableFormatter) Format(w io.Writer, results []pool.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No tasks")
		return err
	}

	colors := NewColorScheme(w, f.options.NoColor)

	table := tablewriter.NewWriter(w)
	table.Header("#", "Kind", "Status", "Worker", "Duration", "Value / Error")

	for _, r := range results {
		worker := "-"
		if r.Worker >= 0 {
			worker = strconv.Itoa(r.Worker)
		}

		detail := formatValue(r.Value)
		if !r.OK() {
			detail = ""
			if r.Err != nil {
				detail = firstLine(r.Err.Error())
			}
		}

		if err := table.Append(
			strconv.Itoa(r.Index),
			r.Kind,
			colors.Status(r.Status).Sprint(r.Status.String()),
			worker,
			colors.Duration.Sprint(formatDuration(r.Duration)),
			truncate(detail, f.options.MaxValueWidth),
		); err != nil {
			return fmt.Errorf("append row %d: %w", r.Index, err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}

	s := pool.Summarize(results)
	_, err := fmt.Fprintf(w, "%s %s, %s, %s, %s\n",
		colors.Header.Sprintf("%d tasks:", s.Total),
		colors.OK.Sprintf("%d ok", s.OK),
		colors.Skipped.Sprintf("%d skipped", s.Skipped),
		colors.Aborted.Sprintf("%d aborted", s.Aborted),
		colors.Pending.Sprintf("%d pending", s.Pending),
	)
	return err
}
