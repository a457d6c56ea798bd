package workflow

import (
	"sync"

	"github.com/modelscope/agentscope-sub001/types"
)

// SessionNodeID is the reserved pseudo-node id holding session and
// system-level variables. Its entry is injected before the first real node
// executes and rebuilt from prior-turn messages on resume.
const SessionNodeID = "sys"

// Session variable names.
const (
	SessionVarHistory = "history"
	SessionVarQuery   = "query"
)

// GlobalCache is the full execution state of one run: one entry per node.
// Each entry is written by exactly one executor; readers of other nodes'
// entries observe a consistent view once that node's completion signal has
// fired. The cache is the object snapshotted for pause and restored for
// resume.
type GlobalCache struct {
	mu      sync.RWMutex
	entries map[string]*types.NodeCacheEntry
}

// NewGlobalCache creates an empty cache.
func NewGlobalCache() *GlobalCache {
	return &GlobalCache{entries: make(map[string]*types.NodeCacheEntry)}
}

// Save overwrites the node's cache entry.
func (c *GlobalCache) Save(nodeID string, results []*types.WorkflowVariable, status types.NodeStatus, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[nodeID] = &types.NodeCacheEntry{
		Status:  status,
		Results: results,
		Message: message,
	}
}

// Entry returns a copy of the node's cache entry, or nil when the node has
// not produced one yet.
func (c *GlobalCache) Entry(nodeID string) *types.NodeCacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[nodeID].Clone()
}

// Status returns the node's status, StatusInit when no entry exists.
func (c *GlobalCache) Status(nodeID string) types.NodeStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.entries[nodeID]; ok {
		return e.Status
	}
	return types.StatusInit
}

// Len returns the number of entries.
func (c *GlobalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RetrieveInput builds the flat variable map a node executes against: every
// previously produced variable key mapped to its content, excluding the
// node's own entry. When graph is non-nil it additionally decides skip
// propagation from the node's incoming edges: an edge does not contribute
// when its source was skipped, or when the source's outputs carry an
// explicit target list that excludes this node. When the node has incoming
// edges and none contributes, the Skip sentinel (skip=true) is returned and
// the node must not execute. A node with no incoming edges is never skipped.
func (c *GlobalCache) RetrieveInput(nodeID string, g *Graph) (inputs map[string]any, skip bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if g != nil {
		in := g.InEdges(nodeID)
		if len(in) > 0 {
			contributing := 0
			for _, e := range in {
				if c.edgeContributes(e, nodeID) {
					contributing++
				}
			}
			if contributing == 0 {
				return nil, true
			}
		}
	}

	inputs = make(map[string]any)
	for id, entry := range c.entries {
		if id == nodeID {
			continue
		}
		for _, v := range entry.Results {
			inputs[v.Key] = v.Content
		}
	}
	return inputs, false
}

// edgeContributes reports whether an incoming edge can supply data.
// Callers hold c.mu. A missing source entry counts as contributing: the
// engine only resolves inputs after every predecessor signaled, so absence
// means the predecessor was outside the scheduled set, not skipped.
func (c *GlobalCache) edgeContributes(e Edge, nodeID string) bool {
	src, ok := c.entries[e.Source]
	if !ok {
		return true
	}
	if src.Status == types.StatusSkipped {
		return false
	}
	restricted := false
	for _, v := range src.Results {
		if v.Targets == nil {
			continue
		}
		restricted = true
		if v.RoutesTo(nodeID) {
			return true
		}
	}
	return !restricted
}

// InjectSession writes the session pseudo-node entry from the prior-turn
// conversation and any extra session variables.
func (c *GlobalCache) InjectSession(messages []types.Message, extra map[string]any) {
	results := []*types.WorkflowVariable{
		types.NewVariable(SessionNodeID, SessionVarHistory, messages, types.DataTypeArray),
	}
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		results = append(results,
			types.NewVariable(SessionNodeID, SessionVarQuery, last.Content, types.DataTypeString))
	}
	for name, content := range extra {
		results = append(results,
			types.NewVariable(SessionNodeID, name, content, types.DataTypeAny))
	}
	c.Save(SessionNodeID, results, types.StatusSucceeded, "")
}

// Snapshot captures the serializable state of the run together with the
// turn's message list.
func (c *GlobalCache) Snapshot(messages []types.Message) *types.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := &types.Snapshot{
		Entries:  make(map[string]*types.NodeCacheEntry, len(c.entries)),
		Messages: messages,
	}
	for id, e := range c.entries {
		snap.Entries[id] = e.Clone()
	}
	return snap
}

// Restore rehydrates a cache from a snapshot. When the snapshot lacks a
// session entry but carries prior-turn messages, the session pseudo-node is
// reconstructed from them.
func Restore(snap *types.Snapshot) *GlobalCache {
	c := NewGlobalCache()
	if snap == nil {
		return c
	}
	c.mu.Lock()
	for id, e := range snap.Entries {
		c.entries[id] = e.Clone()
	}
	_, hasSession := c.entries[SessionNodeID]
	c.mu.Unlock()

	if !hasSession && len(snap.Messages) > 0 {
		c.InjectSession(snap.Messages, nil)
	}
	return c
}
