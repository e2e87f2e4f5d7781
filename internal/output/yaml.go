package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/utkarsh5026/batchrun/pool"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, results []pool.Result) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(NewReport(results)); err != nil {
		return err
	}
	return encoder.Close()
}

// WriteYAML encodes any value as YAML.
func WriteYAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(v); err != nil {
		return err
	}
	return encoder.Close()
}

// ArgsNode renders args as a YAML mapping that keeps their order.
func ArgsNode(args pool.Args) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, a := range args {
		value := &yaml.Node{}
		if err := value.Encode(a.Value); err != nil {
			return nil, fmt.Errorf("encode arg %q: %w", a.Name, err)
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: a.Name}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}
