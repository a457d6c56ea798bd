package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
)

// TemplateNode renders its config "template" string, substituting
// {{variable.key}} placeholders with upstream variable contents, and
// publishes the result as "<id>.text".
type TemplateNode struct {
	workflow.BaseNode
}

// NewTemplateNode instantiates a template node from its descriptor.
func NewTemplateNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &TemplateNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute renders the template against the resolved inputs.
func (n *TemplateNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		text := n.ConfigString("template")
		for key, content := range inv.Inputs {
			text = strings.ReplaceAll(text, "{{"+key+"}}", fmt.Sprint(content))
		}
		send(types.NewNormalEvent(
			types.NewVariable(n.ID(), "text", text, types.DataTypeString)))
	})
}
