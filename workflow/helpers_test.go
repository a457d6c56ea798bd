package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/modelscope/agentscope-sub001/types"
)

// ---------------------------------------------------------------------------
// Mock helpers
// ---------------------------------------------------------------------------

// scriptNode replays a scripted event sequence per attempt and counts calls.
type scriptNode struct {
	BaseNode
	// run produces the events of one attempt; nil means emit nothing and
	// close, which the engine treats as natural success.
	run   func(ctx context.Context, inv *Invocation) []types.Event
	calls atomic.Int32
}

func (n *scriptNode) setDesc(d Descriptor) { n.Desc = d }

func (n *scriptNode) Execute(ctx context.Context, inv *Invocation) <-chan types.Event {
	n.calls.Add(1)
	return Emit(func(send func(types.Event) bool) {
		if n.run == nil {
			return
		}
		for _, ev := range n.run(ctx, inv) {
			send(ev)
		}
	})
}

// fallbackScriptNode additionally provides a degraded execution path.
type fallbackScriptNode struct {
	scriptNode
	fallbackRun   func(ctx context.Context, inv *Invocation) []types.Event
	fallbackCalls atomic.Int32
}

func (n *fallbackScriptNode) FallbackExecute(ctx context.Context, inv *Invocation) <-chan types.Event {
	n.fallbackCalls.Add(1)
	return Emit(func(send func(types.Event) bool) {
		if n.fallbackRun == nil {
			return
		}
		for _, ev := range n.fallbackRun(ctx, inv) {
			send(ev)
		}
	})
}

// blockingNode waits for ctx cancellation or release before finishing.
type blockingNode struct {
	BaseNode
	release chan struct{}
	started chan struct{}
}

func newBlockingNode() *blockingNode {
	return &blockingNode{
		release: make(chan struct{}),
		started: make(chan struct{}, 8),
	}
}

func (n *blockingNode) setDesc(d Descriptor) { n.Desc = d }

func (n *blockingNode) Execute(ctx context.Context, inv *Invocation) <-chan types.Event {
	ch := make(chan types.Event)
	go func() {
		defer close(ch)
		n.started <- struct{}{}
		select {
		case <-n.release:
			ch <- types.NewNormalEvent(
				types.NewVariable(n.ID(), "out", "done", types.DataTypeString))
		case <-ctx.Done():
		}
	}()
	return ch
}

// testNodeType is an interior type with no special scheduler traits.
const testNodeType NodeType = "task"

// newTestRegistry binds every structural type plus the plain task type to a
// factory that hands out pre-built node instances by id. Descriptors without
// a pre-built instance get an empty scriptNode.
func newTestRegistry(prebuilt map[string]Node) *Registry {
	r := NewRegistry()
	factory := func(desc Descriptor) (Node, error) {
		if n, ok := prebuilt[desc.ID]; ok {
			if s, ok := n.(interface{ setDesc(Descriptor) }); ok {
				s.setDesc(desc)
			}
			return n, nil
		}
		return &scriptNode{BaseNode: NewBaseNode(desc)}, nil
	}
	for _, nt := range []NodeType{
		NodeTypeStart, NodeTypeEnd, NodeTypeBranch,
		NodeTypeHuman, NodeTypeTemplate, NodeTypeSession, testNodeType,
	} {
		r.Register(nt, factory)
	}
	return r
}

// fastEngine builds an engine whose retry backoff returns immediately while
// still counting sleeps.
func fastEngine(g *Graph, sleeps *atomic.Int32, opts ...Option) *Engine {
	e := NewEngine(g, opts...)
	e.cfg.PollInterval = 2 * time.Millisecond
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			sleeps.Add(1)
		}
		return ctx.Err()
	}
	return e
}

// drainRun consumes the progress stream to completion and returns every item.
func drainRun(r *Run) []Progress {
	var out []Progress
	for p := range r.Progress() {
		out = append(out, p)
	}
	return out
}

// succeedWith scripts a node that emits one variable and finishes.
func succeedWith(id, name string, content any) *scriptNode {
	return &scriptNode{
		run: func(ctx context.Context, inv *Invocation) []types.Event {
			return []types.Event{
				types.NewNormalEvent(types.NewVariable(id, name, content, types.DataTypeAny)),
			}
		},
	}
}
