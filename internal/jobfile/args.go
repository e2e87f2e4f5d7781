package jobfile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/batchrun/pool"
)

// argList decodes a task's args table into pool.Args. YAML keeps document
// order; TOML tables arrive as maps and are ordered by name.
type argList pool.Args

// UnmarshalYAML walks the mapping node pair by pair so order survives.
func (a *argList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: args must be a mapping", node.Line)
	}

	args := make(pool.Args, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, valueNode := node.Content[i], node.Content[i+1]

		var value any
		if err := valueNode.Decode(&value); err != nil {
			return fmt.Errorf("line %d: arg %q: %w", valueNode.Line, key.Value, err)
		}
		args = args.With(key.Value, value)
	}

	*a = argList(args)
	return nil
}

// UnmarshalTOML receives the already decoded table.
func (a *argList) UnmarshalTOML(v any) error {
	m, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("args must be a table, got %T", v)
	}
	*a = argList(pool.ArgsFromMap(m))
	return nil
}
