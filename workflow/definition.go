package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition is the serialized form of a workflow graph, as authored in
// YAML or JSON. It holds declarations only; Build instantiates and
// validates the executable graph through a registry.
type Definition struct {
	// Name labels the workflow for logs and checkpoints.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Nodes declares every node of the graph.
	Nodes []Descriptor `json:"nodes" yaml:"nodes"`
	// Edges declares the connections between nodes.
	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// ParseDefinition decodes a YAML workflow definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse workflow definition: %w", err)
	}
	if len(def.Nodes) == 0 {
		return nil, fmt.Errorf("workflow definition declares no nodes")
	}
	return &def, nil
}

// LoadDefinitionFile reads and parses a workflow definition file.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow definition: %w", err)
	}
	return ParseDefinition(data)
}

// Build instantiates the definition into a validated graph.
func (d *Definition) Build(registry *Registry) (*Graph, error) {
	return NewBuilder(registry).
		AddNodes(d.Nodes...).
		AddEdges(d.Edges...).
		Build()
}
