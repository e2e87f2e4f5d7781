package output

import (
	"encoding/json"
	"io"

	"github.com/utkarsh5026/batchrun/pool"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, results []pool.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewReport(results))
}
