package types

// NodeCacheEntry holds the status, produced results, and last message for
// exactly one node in exactly one run. Entries are created on the first
// execution attempt, mutated only by the executor responsible for the node,
// never deleted within a run, and cleared and recreated on retry.
type NodeCacheEntry struct {
	Status  NodeStatus          `json:"status"`
	Results []*WorkflowVariable `json:"results,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Clone returns a shallow copy of the entry with its own results slice.
// Variables themselves are immutable after creation, so sharing them is safe.
func (e *NodeCacheEntry) Clone() *NodeCacheEntry {
	if e == nil {
		return nil
	}
	out := &NodeCacheEntry{Status: e.Status, Message: e.Message}
	if e.Results != nil {
		out.Results = make([]*WorkflowVariable, len(e.Results))
		copy(out.Results, e.Results)
	}
	return out
}

// Snapshot is the serializable execution state of one run: every node's
// cache entry plus the message list of the turn it was taken in. It is the
// unit of checkpoint and resume.
type Snapshot struct {
	Entries  map[string]*NodeCacheEntry `json:"entries"`
	Messages []Message                  `json:"messages,omitempty"`
}
