package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscope/agentscope-sub001/types"
)

func cacheGraph(t *testing.T) *Graph {
	t.Helper()
	reg := newTestRegistry(nil)
	// a -> c, b -> c, c -> d; e has no incoming edges
	g, err := NewBuilder(reg).
		AddNodes(
			desc("a", testNodeType), desc("b", testNodeType),
			desc("c", testNodeType), desc("d", testNodeType),
			desc("e", testNodeType),
		).
		AddEdges(edge("a", "c"), edge("b", "c"), edge("c", "d")).
		Build()
	require.NoError(t, err)
	return g
}

func savedVar(nodeID, name string, content any) []*types.WorkflowVariable {
	return []*types.WorkflowVariable{
		types.NewVariable(nodeID, name, content, types.DataTypeAny),
	}
}

// ---------------------------------------------------------------------------
// Input resolution and skip propagation
// ---------------------------------------------------------------------------

func TestRetrieveInput_FlatMapExcludesOwnEntry(t *testing.T) {
	g := cacheGraph(t)
	c := NewGlobalCache()
	c.Save("a", savedVar("a", "x", 1), types.StatusSucceeded, "")
	c.Save("b", savedVar("b", "y", 2), types.StatusSucceeded, "")
	c.Save("c", savedVar("c", "z", 3), types.StatusRunning, "")

	inputs, skip := c.RetrieveInput("c", g)
	require.False(t, skip)
	assert.Equal(t, 1, inputs["a.x"])
	assert.Equal(t, 2, inputs["b.y"])
	_, own := inputs["c.z"]
	assert.False(t, own, "a node never sees its own outputs")
}

func TestRetrieveInput_NoIncomingEdgesNeverSkips(t *testing.T) {
	g := cacheGraph(t)
	c := NewGlobalCache()

	_, skip := c.RetrieveInput("e", g)
	assert.False(t, skip)

	_, skip = c.RetrieveInput("a", g)
	assert.False(t, skip)
}

func TestRetrieveInput_AllSourcesSkippedPropagates(t *testing.T) {
	g := cacheGraph(t)
	c := NewGlobalCache()
	c.Save("a", nil, types.StatusSkipped, "")
	c.Save("b", nil, types.StatusSkipped, "")

	_, skip := c.RetrieveInput("c", g)
	assert.True(t, skip)
}

func TestRetrieveInput_OneContributingSourceSuffices(t *testing.T) {
	g := cacheGraph(t)
	c := NewGlobalCache()
	c.Save("a", nil, types.StatusSkipped, "")
	c.Save("b", savedVar("b", "y", 2), types.StatusSucceeded, "")

	inputs, skip := c.RetrieveInput("c", g)
	require.False(t, skip)
	assert.Equal(t, 2, inputs["b.y"])
}

func TestRetrieveInput_MissingSourceEntryContributes(t *testing.T) {
	g := cacheGraph(t)
	c := NewGlobalCache()
	// Neither a nor b has an entry: both were outside this turn's schedule,
	// which is not a skip.
	_, skip := c.RetrieveInput("c", g)
	assert.False(t, skip)
}

func TestRetrieveInput_TargetRestrictionSkipsUntakenRoute(t *testing.T) {
	reg := newTestRegistry(nil)
	g, err := NewBuilder(reg).
		AddNodes(
			Descriptor{ID: "judge", Type: NodeTypeBranch, Handles: []string{"A", "B"}},
			desc("n1", testNodeType), desc("n2", testNodeType),
		).
		AddEdges(
			Edge{Source: "judge", SourceHandle: "judge-A", Target: "n1"},
			Edge{Source: "judge", SourceHandle: "judge-B", Target: "n2"},
		).
		Build()
	require.NoError(t, err)

	c := NewGlobalCache()
	routed := types.NewVariable("judge", "result", "A", types.DataTypeString).WithTargets("n1")
	c.Save("judge", []*types.WorkflowVariable{routed}, types.StatusSucceeded, "")

	_, skip := c.RetrieveInput("n1", g)
	assert.False(t, skip, "taken route executes")

	_, skip = c.RetrieveInput("n2", g)
	assert.True(t, skip, "untaken route is skipped")
}

func TestRetrieveInput_EmptyTargetsRouteNowhere(t *testing.T) {
	reg := newTestRegistry(nil)
	g, err := NewBuilder(reg).
		AddNodes(desc("src", testNodeType), desc("dst", testNodeType)).
		AddEdges(edge("src", "dst")).
		Build()
	require.NoError(t, err)

	c := NewGlobalCache()
	v := types.NewVariable("src", "out", 1, types.DataTypeAny).WithTargets()
	c.Save("src", []*types.WorkflowVariable{v}, types.StatusSucceeded, "")

	_, skip := c.RetrieveInput("dst", g)
	assert.True(t, skip)
}

// ---------------------------------------------------------------------------
// Session pseudo-node
// ---------------------------------------------------------------------------

func TestInjectSession(t *testing.T) {
	c := NewGlobalCache()
	msgs := []types.Message{
		types.NewUserMessage("hello"),
		types.NewAssistantMessage("hi"),
		types.NewUserMessage("what now?"),
	}
	c.InjectSession(msgs, map[string]any{"locale": "en"})

	entry := c.Entry(SessionNodeID)
	require.NotNil(t, entry)
	assert.Equal(t, types.StatusSucceeded, entry.Status)

	byKey := make(map[string]any)
	for _, v := range entry.Results {
		byKey[v.Key] = v.Content
	}
	assert.Equal(t, "what now?", byKey["sys.query"])
	assert.Equal(t, "en", byKey["sys.locale"])
	assert.Len(t, byKey["sys.history"], 3)
}

func TestInjectSession_NoMessagesNoQuery(t *testing.T) {
	c := NewGlobalCache()
	c.InjectSession(nil, nil)

	entry := c.Entry(SessionNodeID)
	require.NotNil(t, entry)
	for _, v := range entry.Results {
		assert.NotEqual(t, "sys.query", v.Key)
	}
}

// ---------------------------------------------------------------------------
// Snapshot and restore
// ---------------------------------------------------------------------------

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	c := NewGlobalCache()
	msgs := []types.Message{types.NewUserMessage("q")}
	c.InjectSession(msgs, nil)
	c.Save("a", savedVar("a", "x", 1), types.StatusSucceeded, "ok")
	c.Save("b", nil, types.StatusSkipped, "")

	snap := c.Snapshot(msgs)
	restored := Restore(snap)

	assert.Equal(t, types.StatusSucceeded, restored.Status("a"))
	assert.Equal(t, types.StatusSkipped, restored.Status("b"))
	assert.Equal(t, types.StatusSucceeded, restored.Status(SessionNodeID))

	entry := restored.Entry("a")
	require.NotNil(t, entry)
	assert.Equal(t, "ok", entry.Message)
	assert.Equal(t, 1, entry.Results[0].Content)
}

func TestRestore_RebuildsSessionFromMessages(t *testing.T) {
	snap := &types.Snapshot{
		Entries: map[string]*types.NodeCacheEntry{
			"a": {Status: types.StatusSucceeded},
		},
		Messages: []types.Message{types.NewUserMessage("resumed answer")},
	}
	c := Restore(snap)

	entry := c.Entry(SessionNodeID)
	require.NotNil(t, entry)
	for _, v := range entry.Results {
		if v.Key == "sys.query" {
			assert.Equal(t, "resumed answer", v.Content)
			return
		}
	}
	t.Fatal("session query not rebuilt")
}

func TestRestore_Nil(t *testing.T) {
	c := Restore(nil)
	assert.Zero(t, c.Len())
}

func TestSnapshot_IsolatedFromLiveCache(t *testing.T) {
	c := NewGlobalCache()
	c.Save("a", savedVar("a", "x", 1), types.StatusRunning, "")
	snap := c.Snapshot(nil)

	c.Save("a", savedVar("a", "x", 2), types.StatusSucceeded, "")
	assert.Equal(t, types.StatusRunning, snap.Entries["a"].Status)
	assert.Equal(t, 1, snap.Entries["a"].Results[0].Content)
}

func TestEntry_NilForUnknownNode(t *testing.T) {
	c := NewGlobalCache()
	assert.Nil(t, c.Entry("ghost"))
	assert.Equal(t, types.StatusInit, c.Status("ghost"))
}
