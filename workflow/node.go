package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/modelscope/agentscope-sub001/types"
)

// NodeType tags the external executable behavior of a node.
type NodeType string

// Structural node types the scheduler recognizes. Additional business types
// (llm, http, script, ...) register their traits via RegisterTypeTraits.
const (
	NodeTypeStart    NodeType = "start"
	NodeTypeEnd      NodeType = "end"
	NodeTypeBranch   NodeType = "branch"
	NodeTypeHuman    NodeType = "human"
	NodeTypeTemplate NodeType = "template"
	NodeTypeSession  NodeType = "session"
)

// TypeTraits describes how the scheduler treats a node type.
type TypeTraits struct {
	// Entry marks a run entry type.
	Entry bool
	// Session marks the session-variables pseudo entry. Session nodes are
	// entries but do not count as the graph's genuine start node.
	Session bool
	// Exit marks the run exit type.
	Exit bool
	// Suspend marks a pause boundary where the run yields to the caller.
	Suspend bool
	// Branching marks a type whose outgoing handles route conditionally.
	Branching bool
}

var (
	traitsMu   sync.RWMutex
	typeTraits = map[NodeType]TypeTraits{
		NodeTypeStart:   {Entry: true},
		NodeTypeSession: {Entry: true, Session: true},
		NodeTypeEnd:     {Exit: true},
		NodeTypeBranch:  {Branching: true},
		NodeTypeHuman:   {Suspend: true},
	}
)

// RegisterTypeTraits declares scheduler traits for a node type.
// Unregistered types default to plain interior nodes.
func RegisterTypeTraits(nt NodeType, traits TypeTraits) {
	traitsMu.Lock()
	defer traitsMu.Unlock()
	typeTraits[nt] = traits
}

// TraitsOf returns the scheduler traits of a node type.
func TraitsOf(nt NodeType) TypeTraits {
	traitsMu.RLock()
	defer traitsMu.RUnlock()
	return typeTraits[nt]
}

// Descriptor declares one node of a workflow graph.
type Descriptor struct {
	// ID is the unique node identifier.
	ID string `json:"id" yaml:"id"`
	// Type identifies the external executable behavior.
	Type NodeType `json:"type" yaml:"type"`
	// Config is an opaque map consumed by the node implementation.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Handles lists the named branch labels of a branching node's
	// outgoing conditional edges.
	Handles []string `json:"handles,omitempty" yaml:"handles,omitempty"`
}

// Invocation carries everything a node needs for one execution attempt.
// It is run-scoped state owned by the engine, never package-level.
type Invocation struct {
	// Inputs maps every previously produced variable key to its content.
	Inputs map[string]any
	// Cache is the run's global cache (read-only from the node's view).
	Cache *GlobalCache
	// Graph is the graph being executed.
	Graph *Graph
	// Usage aggregates token/call accounting for the run.
	Usage *UsageRecorder
	// Trigger is the Retry or Fallback event that caused a re-invocation,
	// nil on the first attempt.
	Trigger *types.Event
}

// Node is the uniform execution contract every node kind implements.
// Execute returns a finite stream of events; the returned channel must be
// closed when the attempt ends and must not be restarted once exhausted —
// the engine calls Execute again for each retry attempt.
type Node interface {
	ID() string
	Type() NodeType
	Descriptor() Descriptor
	Execute(ctx context.Context, inv *Invocation) <-chan types.Event
}

// FallbackNode is implemented by nodes that can produce a degraded result
// after retries are exhausted. Nodes without it re-raise the original error.
type FallbackNode interface {
	FallbackExecute(ctx context.Context, inv *Invocation) <-chan types.Event
}

// ExceptionEvaluator classifies a raw error from the node's own execution.
// The boolean reports whether the engine should retry. Nodes without it get
// the default taxonomy: throttle/timeout retryable, everything else not.
type ExceptionEvaluator interface {
	EvaluateException(err error) (error, bool)
}

// BaseNode provides Descriptor plumbing for node implementations.
type BaseNode struct {
	Desc Descriptor
}

// NewBaseNode wraps a descriptor.
func NewBaseNode(desc Descriptor) BaseNode {
	return BaseNode{Desc: desc}
}

func (n BaseNode) ID() string             { return n.Desc.ID }
func (n BaseNode) Type() NodeType         { return n.Desc.Type }
func (n BaseNode) Descriptor() Descriptor { return n.Desc }

// ConfigString reads a string value from the node config.
func (n BaseNode) ConfigString(key string) string {
	if v, ok := n.Desc.Config[key].(string); ok {
		return v
	}
	return ""
}

// Emit runs fn on its own goroutine and returns the event stream it feeds.
// The stream is closed when fn returns; a panic inside fn is recovered and
// surfaced as a failure event carrying the classified error.
func Emit(fn func(send func(types.Event) bool)) <-chan types.Event {
	ch := make(chan types.Event, 8)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- types.NewFailureEvent(
					fmt.Sprint(r),
					types.NewError(types.ErrUnknown, fmt.Sprintf("node panic: %v", r)),
				)
			}
		}()
		fn(func(ev types.Event) bool {
			ch <- ev
			return true
		})
	}()
	return ch
}

// Factory instantiates a node implementation from its descriptor.
type Factory func(desc Descriptor) (Node, error)

// Registry maps node types to factories. The builder instantiates every
// descriptor through a registry.
type Registry struct {
	mu        sync.RWMutex
	factories map[NodeType]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[NodeType]Factory)}
}

// Register binds a factory to a node type, replacing any previous binding.
func (r *Registry) Register(nt NodeType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[nt] = f
}

// New instantiates a node from its descriptor.
func (r *Registry) New(desc Descriptor) (Node, error) {
	r.mu.RLock()
	f, ok := r.factories[desc.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, types.NewGraphError(types.ErrGraphInvalid,
			"no factory registered for node type %q (node %s)", desc.Type, desc.ID)
	}
	return f(desc)
}

// Types lists the registered node types.
func (r *Registry) Types() []NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeType, 0, len(r.factories))
	for nt := range r.factories {
		out = append(out, nt)
	}
	return out
}
