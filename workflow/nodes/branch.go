package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelscope/agentscope-sub001/types"
	"github.com/modelscope/agentscope-sub001/workflow"
)

// BranchNode routes the run down exactly one of its outgoing handles. Its
// config declares ordered cases:
//
//	cases:
//	  - handle: A
//	    input: judge.score   # upstream variable key
//	    op: gt               # eq | neq | contains | gt | lt
//	    value: 0.5
//	default_handle: default
//
// The first matching case wins; no match takes the default handle. The node
// publishes one result variable whose target list is restricted to the
// chosen handle's edge targets, so untaken routes propagate Skip downstream.
type BranchNode struct {
	workflow.BaseNode
}

// NewBranchNode instantiates a branch node from its descriptor.
func NewBranchNode(desc workflow.Descriptor) (workflow.Node, error) {
	return &BranchNode{BaseNode: workflow.NewBaseNode(desc)}, nil
}

// Execute evaluates the cases and emits the routing decision.
func (n *BranchNode) Execute(ctx context.Context, inv *workflow.Invocation) <-chan types.Event {
	return workflow.Emit(func(send func(types.Event) bool) {
		handle := n.choose(inv.Inputs)

		targets := []string{}
		if inv.Graph != nil {
			for _, e := range inv.Graph.OutEdges(n.ID()) {
				if inv.Graph.BranchHandle(e) == handle {
					targets = append(targets, e.Target)
				}
			}
		}

		result := types.NewVariable(n.ID(), "result", handle, types.DataTypeString).
			WithTargets(targets...)
		result.IsMultiBranch = true
		send(types.NewNormalEvent(result))
	})
}

// choose evaluates the configured cases in order.
func (n *BranchNode) choose(inputs map[string]any) string {
	cases, _ := n.Desc.Config["cases"].([]any)
	for _, raw := range cases {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		handle, _ := c["handle"].(string)
		key, _ := c["input"].(string)
		op, _ := c["op"].(string)
		if handle == "" || key == "" {
			continue
		}
		if evaluate(inputs[key], op, c["value"]) {
			return handle
		}
	}
	if def := n.ConfigString("default_handle"); def != "" {
		return def
	}
	return "default"
}

// evaluate applies one comparison operator.
func evaluate(have any, op string, want any) bool {
	switch op {
	case "", "eq":
		return fmt.Sprint(have) == fmt.Sprint(want)
	case "neq":
		return fmt.Sprint(have) != fmt.Sprint(want)
	case "contains":
		return strings.Contains(fmt.Sprint(have), fmt.Sprint(want))
	case "gt":
		h, herr := toFloat(have)
		w, werr := toFloat(want)
		return herr == nil && werr == nil && h > w
	case "lt":
		h, herr := toFloat(have)
		w, werr := toFloat(want)
		return herr == nil && werr == nil && h < w
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	var f float64
	_, err := fmt.Sscanf(fmt.Sprint(v), "%g", &f)
	return f, err
}
