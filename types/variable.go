package types

import (
	"strings"
	"time"
)

// DataType describes the declared shape of a workflow variable's content.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
	DataTypeFile    DataType = "file"
	DataTypeAny     DataType = "any"
)

// Usage accumulates token and call accounting for one node execution.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
	Calls            int `json:"calls,omitempty"`
}

// Add merges another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.Calls += other.Calls
}

// VariableMeta carries timing, usage and error-recovery markers for a
// produced variable.
type VariableMeta struct {
	StartedAt time.Time     `json:"started_at,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Usage     *Usage        `json:"usage,omitempty"`
	// Recovered marks a degraded result produced by a fallback path.
	Recovered bool `json:"recovered,omitempty"`
}

// WorkflowVariable is the unit of produced output. A node produces each of
// its variables exactly once per run; variables are immutable after creation.
type WorkflowVariable struct {
	// Key is "<node_id>.<name>".
	Key      string   `json:"key"`
	Content  any      `json:"content"`
	DataType DataType `json:"data_type,omitempty"`
	// Targets, when non-nil, restricts which downstream node ids this
	// value is routed to. Branching nodes use it to prune untaken routes.
	Targets       []string     `json:"targets,omitempty"`
	IsMultiBranch bool         `json:"is_multi_branch,omitempty"`
	Meta          VariableMeta `json:"meta,omitempty"`
}

// NewVariable creates a variable keyed as "<nodeID>.<name>".
func NewVariable(nodeID, name string, content any, dataType DataType) *WorkflowVariable {
	return &WorkflowVariable{
		Key:      VariableKey(nodeID, name),
		Content:  content,
		DataType: dataType,
	}
}

// WithTargets restricts downstream routing of the variable.
func (v *WorkflowVariable) WithTargets(targets ...string) *WorkflowVariable {
	v.Targets = targets
	return v
}

// NodeID returns the producing node's id, the part of the key before the
// first dot.
func (v *WorkflowVariable) NodeID() string {
	id, _ := SplitVariableKey(v.Key)
	return id
}

// RoutesTo reports whether the variable is routed to the given node.
// A nil target list routes everywhere.
func (v *WorkflowVariable) RoutesTo(nodeID string) bool {
	if v.Targets == nil {
		return true
	}
	for _, t := range v.Targets {
		if t == nodeID {
			return true
		}
	}
	return false
}

// VariableKey builds the dotted key for a node output.
func VariableKey(nodeID, name string) string {
	return nodeID + "." + name
}

// SplitVariableKey splits a dotted key into node id and variable name.
// Names may themselves contain dots; only the first dot separates.
func SplitVariableKey(key string) (nodeID, name string) {
	if i := strings.IndexByte(key, '.'); i >= 0 {
		return key[:i], key[i+1:]
	}
	return key, ""
}
