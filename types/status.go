package types

// NodeStatus is the lifecycle state of one node within one run.
type NodeStatus string

const (
	StatusInit      NodeStatus = "init"
	StatusRunning   NodeStatus = "running"
	StatusSucceeded NodeStatus = "succeeded"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
	StatusCanceled  NodeStatus = "canceled"
)

// Terminal reports whether the status is final for the current run.
// A skipped node is terminal: it will not be revisited this turn.
func (s NodeStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusCanceled:
		return true
	}
	return false
}

// RunStatus is the caller-visible outcome of a whole run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running" // pending a pause boundary
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)
