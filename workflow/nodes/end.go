package nodes

import (
	"context"

	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
)

// EndNode closes a run. It collects the upstream variables named in its
// config under "collect" (output name -> upstream variable key) and emits
// a terminal Success event, which raises the engine-wide stop signal and
// halts any sibling work still pending.
type EndNode struct {
	workflow.BaseNode
}

// NewEndNode instantiates an end node from its descriptor.
func NewEndNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &EndNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute gathers the configured outputs and succeeds terminally.
func (n *EndNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		collect, _ := n.Desc.Config["collect"].(map[string]any)
		results := make([]*types.WorkflowVariable, 0, len(collect))
		for name, ref := range collect {
			key, _ := ref.(string)
			content, ok := inv.Inputs[key]
			if !ok {
				continue
			}
			results = append(results,
				types.NewVariable(n.ID(), name, content, types.DataTypeAny))
		}
		send(types.NewSuccessEvent(results...))
	})
}
