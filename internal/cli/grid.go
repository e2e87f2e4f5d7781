package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/batchrun/internal/output"
	"github.com/utkarsh5026/batchrun/pool"
)

func newGridCmd() *cobra.Command {
	var axes []string

	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the points of a parameter grid",
		Long: `Grid expands the given axes into their cartesian product and prints one
argument set per point, as YAML. The first axis varies fastest.

Values are read as YAML scalars, so 1 is a number, true a boolean and
anything else a string.`,
		Example: `  batchrun grid --axis a=1,2,3 --axis b=x,y`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseAxes(axes)
			if err != nil {
				return err
			}

			doc := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for _, point := range pool.Grid(parsed...) {
				node, err := output.ArgsNode(point)
				if err != nil {
					return err
				}
				doc.Content = append(doc.Content, node)
			}
			return output.WriteYAML(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringArrayVar(&axes, "axis", nil, "axis as name=v1,v2,... (repeatable)")
	_ = cmd.MarkFlagRequired("axis")

	return cmd
}

// parseAxes reads name=v1,v2 definitions. Names must be unique.
func parseAxes(defs []string) ([]pool.Axis, error) {
	axes := make([]pool.Axis, 0, len(defs))
	seen := make(map[string]bool, len(defs))

	for _, def := range defs {
		name, list, ok := strings.Cut(def, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid axis %q: want name=v1,v2", def)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate axis %q", name)
		}
		seen[name] = true

		var values []any
		if list != "" {
			for _, raw := range strings.Split(list, ",") {
				values = append(values, scalar(strings.TrimSpace(raw)))
			}
		}
		axes = append(axes, pool.Axis{Name: name, Values: values})
	}
	if _, err := pool.GridSize(axes...); err != nil {
		return nil, err
	}
	return axes, nil
}

func scalar(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	switch v.(type) {
	case int, float64, bool, string:
		return v
	}
	return raw
}
