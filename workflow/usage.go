package workflow

import (
	"sync"

	"github.com/modelscope/agentscope-sub001/types"
)

// UsageRecorder aggregates token/call accounting across all nodes of one
// run. It is run-scoped and safe for concurrent node workers.
type UsageRecorder struct {
	mu    sync.Mutex
	total types.Usage
}

// NewUsageRecorder creates an empty recorder.
func NewUsageRecorder() *UsageRecorder {
	return &UsageRecorder{}
}

// Add merges a node's usage into the run total.
func (r *UsageRecorder) Add(u types.Usage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total.Add(u)
}

// Total returns the accumulated usage.
func (r *UsageRecorder) Total() types.Usage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}
