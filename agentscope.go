// Package agentscope provides a top-level convenience entry point for
// running workflow graphs with minimal boilerplate.
//
// Usage:
//
//	import "github.com/modelscope/agentscope-sub001"
//
//	g, err := agentscope.BuildGraphFile("workflow.yaml")
//	run, err := agentscope.NewEngine(g).Run(ctx, workflow.RunRequest{
//	    PriorMessages: []types.Message{types.NewUserMessage("plan a trip")},
//	})
//	for p := range run.Progress() { ... }
//
// This is a thin wrapper around [workflow.NewBuilder], [nodes.DefaultRegistry]
// and [workflow.NewEngine]; use the underlying packages directly when you
// need custom node types or engine options.
package agentscope

import (
	"github.com/modelscope/agentscope-sub001/workflow"
	"github.com/modelscope/agentscope-sub001/workflow/nodes"
)

// BuildGraph instantiates a parsed definition with the built-in node kinds.
func BuildGraph(def *workflow.Definition) (*workflow.Graph, error) {
	return def.Build(nodes.DefaultRegistry())
}

// BuildGraphFile loads a YAML definition file and builds it with the
// built-in node kinds.
func BuildGraphFile(path string) (*workflow.Graph, error) {
	def, err := workflow.LoadDefinitionFile(path)
	if err != nil {
		return nil, err
	}
	return BuildGraph(def)
}

// NewEngine creates a workflow engine with default options.
func NewEngine(g *workflow.Graph, opts ...workflow.Option) *workflow.Engine {
	return workflow.NewEngine(g, opts...)
}
