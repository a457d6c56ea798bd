package nodes

import "github.com/modelscope/agentscope-sub001/workflow"

// DefaultRegistry returns a registry with every built-in node kind bound.
func DefaultRegistry() *workflow.Registry {
	r := workflow.NewRegistry()
	Register(r)
	return r
}

// Register binds the built-in node kinds onto an existing registry.
func Register(r *workflow.Registry) {
	r.Register(workflow.NodeTypeStart, NewStartNode)
	r.Register(workflow.NodeTypeSession, NewSessionNode)
	r.Register(workflow.NodeTypeEnd, NewEndNode)
	r.Register(workflow.NodeTypeBranch, NewBranchNode)
	r.Register(workflow.NodeTypeHuman, NewHumanNode)
	r.Register(workflow.NodeTypeTemplate, NewTemplateNode)
}
