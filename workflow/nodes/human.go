package nodes

import (
	"context"

	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
)

// HumanNode is the suspension boundary. In the turn that reaches it the
// scheduler stops before the node; in the resume turn the node itself runs
// first and forwards the human's answer, read from the session query the
// caller injected with the new turn's messages.
type HumanNode struct {
	workflow.BaseNode
}

// NewHumanNode instantiates a human-input node from its descriptor.
func NewHumanNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &HumanNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute publishes the resume-turn input as this node's answer.
func (n *HumanNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		answer := inv.Inputs[types.VariableKey(workflow.SessionNodeID, workflow.SessionVarQuery)]
		send(types.NewNormalEvent(
			types.NewVariable(n.ID(), "answer", answer, types.DataTypeString)))
	})
}
