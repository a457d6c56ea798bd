package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscope/agentscope-sub001/types"
)

// diamondNodes builds fresh node instances for the canonical diamond shape.
func diamondNodes() map[string]Node {
	return map[string]Node{
		"start": succeedWith("start", "seed", 7),
		"left":  succeedWith("left", "out", "L"),
		"right": succeedWith("right", "out", "R"),
		"end":   endSuccess("end"),
	}
}

func diamondGraph(t *testing.T, prebuilt map[string]Node) *Graph {
	t.Helper()
	reg := newTestRegistry(prebuilt)
	g, err := NewBuilder(reg).
		AddNodes(
			desc("start", NodeTypeStart),
			desc("left", testNodeType), desc("right", testNodeType),
			desc("end", NodeTypeEnd),
		).
		AddEdges(
			edge("start", "left"), edge("start", "right"),
			edge("left", "end"), edge("right", "end"),
		).
		Build()
	require.NoError(t, err)
	return g
}

func TestConcurrent_FinalCacheMatchesSequential(t *testing.T) {
	runOnce := func(concurrent bool) *GlobalCache {
		g := diamondGraph(t, diamondNodes())
		opts := []Option{WithConfig(fastConfig())}
		if concurrent {
			opts = append(opts, WithConcurrency(0))
		}
		e := fastEngine(g, nil, opts...)
		r, err := e.Run(context.Background(), RunRequest{})
		require.NoError(t, err)
		items := drainRun(r)
		require.Equal(t, types.RunStatusSucceeded, items[len(items)-1].RunStatus)
		return r.Cache()
	}

	seq := runOnce(false)
	con := runOnce(true)

	for _, id := range []string{"start", "left", "right", "end"} {
		assert.Equal(t, seq.Status(id), con.Status(id), "status of %s", id)
		se, ce := seq.Entry(id), con.Entry(id)
		require.NotNil(t, se)
		require.NotNil(t, ce)
		require.Equal(t, len(se.Results), len(ce.Results), "results of %s", id)
		for i := range se.Results {
			assert.Equal(t, se.Results[i].Key, ce.Results[i].Key)
			assert.Equal(t, se.Results[i].Content, ce.Results[i].Content)
		}
	}
}

func TestConcurrent_PredecessorsCompleteFirst(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(id string) *scriptNode {
		return &scriptNode{
			run: func(ctx context.Context, inv *Invocation) []types.Event {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
				return []types.Event{types.NewNormalEvent(
					types.NewVariable(id, "out", id, types.DataTypeString))}
			},
		}
	}
	prebuilt := map[string]Node{
		"start": record("start"),
		"left":  record("left"),
		"right": record("right"),
		"end":   record("end"),
	}
	g := diamondGraph(t, prebuilt)

	e := fastEngine(g, nil, WithConfig(fastConfig()), WithConcurrency(0))
	r, err := e.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	drainRun(r)

	mu.Lock()
	defer mu.Unlock()
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	require.Len(t, order, 4)
	assert.Less(t, pos["start"], pos["left"])
	assert.Less(t, pos["start"], pos["right"])
	assert.Less(t, pos["left"], pos["end"])
	assert.Less(t, pos["right"], pos["end"])
}

func TestConcurrent_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	slow := func(id string) *scriptNode {
		return &scriptNode{
			run: func(ctx context.Context, inv *Invocation) []types.Event {
				cur := inFlight.Add(1)
				for {
					old := peak.Load()
					if cur <= old || peak.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				inFlight.Add(-1)
				return nil
			},
		}
	}

	prebuilt := map[string]Node{
		"a": slow("a"), "b": slow("b"), "c": slow("c"), "d": slow("d"),
	}
	reg := newTestRegistry(prebuilt)
	g, err := NewBuilder(reg).
		AddNodes(
			desc("a", testNodeType), desc("b", testNodeType),
			desc("c", testNodeType), desc("d", testNodeType),
		).
		Build()
	require.NoError(t, err)

	e := fastEngine(g, nil, WithConfig(fastConfig()), WithConcurrency(1))
	r, err := e.Run(context.Background(), RunRequest{
		StartNodes: []string{"a", "b", "c", "d"},
	})
	require.NoError(t, err)
	drainRun(r)

	assert.Equal(t, int32(1), peak.Load())
}

func TestConcurrent_FailureStopsSiblings(t *testing.T) {
	failer := &scriptNode{
		run: func(ctx context.Context, inv *Invocation) []types.Event {
			return []types.Event{types.NewFailureEvent("boom",
				types.NewError(types.ErrParse, "bad data"))}
		},
	}
	slow := newBlockingNode()
	after := succeedWith("after", "out", "never")

	reg := newTestRegistry(map[string]Node{
		"start": succeedWith("start", "seed", 1),
		"fail":  failer, "slow": slow, "after": after,
	})
	g, err := NewBuilder(reg).
		AddNodes(
			desc("start", NodeTypeStart),
			desc("fail", testNodeType), desc("slow", testNodeType),
			desc("after", testNodeType),
		).
		AddEdges(edge("start", "fail"), edge("start", "slow"), edge("fail", "after")).
		Build()
	require.NoError(t, err)

	e := fastEngine(g, nil, WithConfig(fastConfig()), WithConcurrency(0))
	r, err := e.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	items := drainRun(r)

	final := items[len(items)-1]
	assert.Equal(t, types.RunStatusFailed, final.RunStatus)
	require.NotNil(t, final.Stop)
	assert.Equal(t, types.EventFailure, final.Stop.Kind)
	assert.Zero(t, after.calls.Load(), "downstream of the failure never runs")
	assert.NotEqual(t, types.StatusSucceeded, r.Cache().Status("slow"))
}

func TestConcurrent_ExternalCancellation(t *testing.T) {
	blk := newBlockingNode()
	downstream := succeedWith("downstream", "out", "never")

	reg := newTestRegistry(map[string]Node{"blk": blk, "downstream": downstream})
	g, err := NewBuilder(reg).
		AddNodes(desc("blk", testNodeType), desc("downstream", testNodeType)).
		AddEdges(edge("blk", "downstream")).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e := fastEngine(g, nil, WithConfig(fastConfig()), WithConcurrency(0))
	r, err := e.Run(ctx, RunRequest{StartNodes: []string{"blk"}})
	require.NoError(t, err)

	<-blk.started
	cancel()
	drainRun(r)

	assert.Equal(t, types.RunStatusCanceled, r.Status())
	assert.Equal(t, types.StatusCanceled, r.Cache().Status("blk"))
	assert.Zero(t, downstream.calls.Load())
	assert.Equal(t, types.StatusCanceled, r.Cache().Status("downstream"),
		"a node canceled before it ran is marked, not silently dropped")
}

func TestConcurrent_SkipPropagates(t *testing.T) {
	judge := &scriptNode{}
	judge.run = func(ctx context.Context, inv *Invocation) []types.Event {
		v := types.NewVariable("judge", "result", "A", types.DataTypeString).
			WithTargets("n1")
		v.IsMultiBranch = true
		return []types.Event{types.NewNormalEvent(v)}
	}
	n1 := succeedWith("n1", "out", "taken")
	n2 := succeedWith("n2", "out", "untaken")
	end := endSuccess("end")

	reg := newTestRegistry(map[string]Node{
		"start": succeedWith("start", "seed", 1),
		"judge": judge, "n1": n1, "n2": n2, "end": end,
	})
	g, err := NewBuilder(reg).
		AddNodes(
			desc("start", NodeTypeStart),
			Descriptor{ID: "judge", Type: NodeTypeBranch, Handles: []string{"A", "B"}},
			desc("n1", testNodeType), desc("n2", testNodeType),
			desc("end", NodeTypeEnd),
		).
		AddEdges(
			edge("start", "judge"),
			Edge{Source: "judge", SourceHandle: "judge-A", Target: "n1"},
			Edge{Source: "judge", SourceHandle: "judge-B", Target: "n2"},
			edge("n1", "end"), edge("n2", "end"),
		).
		Build()
	require.NoError(t, err)

	e := fastEngine(g, nil, WithConfig(fastConfig()), WithConcurrency(0))
	r, err := e.Run(context.Background(), RunRequest{})
	require.NoError(t, err)
	items := drainRun(r)

	assert.Equal(t, types.RunStatusSucceeded, items[len(items)-1].RunStatus)
	assert.Equal(t, int32(1), n1.calls.Load())
	assert.Zero(t, n2.calls.Load())
	assert.Equal(t, types.StatusSkipped, r.Cache().Status("n2"))
}
