package nodes

import (
	"context"

	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
)

// StartNode opens a run. It publishes the variables declared in its config
// under "outputs" (name -> content) so downstream nodes can reference
// "<start_id>.<name>" keys. A start node never raises the stop signal.
type StartNode struct {
	workflow.BaseNode
}

// NewStartNode instantiates a start node from its descriptor.
func NewStartNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &StartNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute emits the declared outputs and finishes.
func (n *StartNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		outputs, _ := n.Desc.Config["outputs"].(map[string]any)
		results := make([]*types.WorkflowVariable, 0, len(outputs))
		for name, content := range outputs {
			results = append(results,
				types.NewVariable(n.ID(), name, content, types.DataTypeAny))
		}
		if len(results) > 0 {
			send(types.NewNormalEvent(results...))
		}
	})
}

// SessionNode is the session-variables pseudo entry. Its cache entry is
// injected before the run starts; when the node itself is scheduled it
// re-publishes that entry so the engine's terminal write preserves it.
type SessionNode struct {
	workflow.BaseNode
}

// NewSessionNode instantiates a session node from its descriptor.
func NewSessionNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &SessionNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute re-emits the injected session variables.
func (n *SessionNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		if inv.Cache == nil {
			return
		}
		if entry := inv.Cache.Entry(n.ID()); entry != nil && len(entry.Results) > 0 {
			send(types.NewNormalEvent(entry.Results...))
		}
	})
}
