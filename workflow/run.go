package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/types"
)

// RunMode selects how much of the graph a run covers.
type RunMode string

const (
	// RunModeComplete schedules the start nodes and all their descendants
	// up to any stop or pause boundary.
	RunModeComplete RunMode = "complete"
	// RunModeSingle restricts the schedule to exactly the requested start
	// nodes for single-step debugging.
	RunModeSingle RunMode = "single"
)

// RunRequest describes one invocation of the engine.
type RunRequest struct {
	// StartNodes defaults to the graph's entry nodes.
	StartNodes []string
	// StopNodes and their descendants are excluded from the schedule.
	StopNodes []string
	// Mode defaults to RunModeComplete.
	Mode RunMode
	// PriorMessages is the conversation so far; it seeds the session
	// pseudo-node and is carried into snapshots.
	PriorMessages []types.Message
	// SessionVars are extra session-level variables injected before the
	// first real node executes.
	SessionVars map[string]any
	// Snapshot, when set, resumes from a prior turn's checkpoint instead
	// of starting from an empty cache.
	Snapshot *types.Snapshot
	// DisablePause schedules straight through suspend-typed nodes.
	DisablePause bool
}

// Run is one in-flight or finished invocation. All run state is owned here,
// never by the engine, so multiple runs may execute concurrently.
type Run struct {
	engine   *Engine
	rs       *runState
	mode     RunMode
	pauses   []string
	messages []types.Message
	progress chan Progress
	status   types.RunStatus
}

// Progress returns the live stream of progress items. The channel closes
// when the run ends; the last item has Final set and carries the
// unambiguous terminal RunStatus.
func (r *Run) Progress() <-chan Progress { return r.progress }

// Status returns the run's terminal status. Valid once Progress has closed.
func (r *Run) Status() types.RunStatus { return r.status }

// Cache exposes the run's global cache.
func (r *Run) Cache() *GlobalCache { return r.rs.cache }

// Usage returns the aggregated usage of the run so far.
func (r *Run) Usage() types.Usage { return r.rs.usage.Total() }

// PauseNodes returns the pause boundary of this turn.
func (r *Run) PauseNodes() []string {
	out := make([]string, len(r.pauses))
	copy(out, r.pauses)
	return out
}

// ScheduledNodes returns the ordered node set of this turn.
func (r *Run) ScheduledNodes() []string {
	out := make([]string, len(r.rs.scheduled))
	copy(out, r.rs.scheduled)
	return out
}

// Snapshot captures the run's current state for checkpointing. Taken after
// Progress closes it is a valid pause-boundary snapshot for resumption.
func (r *Run) Snapshot() *types.Snapshot {
	return r.rs.cache.Snapshot(r.messages)
}

// Run schedules and starts a run. Cancellation is cooperative through ctx:
// a canceled context aborts retry loops immediately and marks affected
// nodes Canceled rather than Failed.
func (e *Engine) Run(ctx context.Context, req RunRequest) (*Run, error) {
	if e.graph == nil {
		return nil, types.NewGraphError(types.ErrGraphInvalid, "engine has no graph")
	}

	mode := req.Mode
	if mode == "" {
		mode = RunModeComplete
	}

	starts := req.StartNodes
	if len(starts) == 0 {
		var err error
		if starts, err = e.graph.DefaultStartNodes(); err != nil {
			return nil, err
		}
	}

	var sorted, pauses []string
	var err error
	switch mode {
	case RunModeSingle:
		selected := make(map[string]bool, len(starts))
		for _, id := range starts {
			if _, ok := e.graph.Descriptor(id); !ok {
				return nil, types.NewGraphError(types.ErrGraphUnknownNode,
					"start node %q not in graph", id)
			}
			selected[id] = true
		}
		if sorted, err = e.graph.topoSort(selected); err != nil {
			return nil, err
		}
	case RunModeComplete:
		if !req.DisablePause {
			pauses = e.graph.PauseNodesFrom(starts)
		}
		if sorted, err = e.graph.SortedNodes(starts, req.StopNodes, pauses); err != nil {
			return nil, err
		}
	default:
		return nil, types.NewGraphError(types.ErrGraphInvalid, "unknown run mode %q", mode)
	}

	var cache *GlobalCache
	if req.Snapshot != nil {
		cache = Restore(req.Snapshot)
	} else {
		cache = NewGlobalCache()
		cache.InjectSession(req.PriorMessages, req.SessionVars)
	}

	rs := &runState{
		id:        uuid.NewString(),
		scheduled: sorted,
		cache:     cache,
		stop:      &stopSignal{},
		usage:     NewUsageRecorder(),
	}
	r := &Run{
		engine:   e,
		rs:       rs,
		mode:     mode,
		pauses:   pauses,
		messages: req.PriorMessages,
		progress: make(chan Progress, e.cfg.QueueSize),
	}

	e.logger.Info("run scheduled",
		zap.String("run_id", rs.id),
		zap.String("mode", string(mode)),
		zap.Int("nodes", len(sorted)),
		zap.Strings("pause_nodes", pauses),
	)

	go r.execute(ctx)
	return r, nil
}

// execute drives the run to completion and closes the progress stream.
func (r *Run) execute(ctx context.Context) {
	defer close(r.progress)
	e := r.engine
	started := time.Now()

	emit := func(p Progress) {
		// Deliver whenever buffer room remains, even mid-cancellation, so
		// the final status item is not lost to a racing ctx.Done.
		select {
		case r.progress <- p:
		default:
			select {
			case r.progress <- p:
			case <-ctx.Done():
				// Caller has gone away; the item is dropped but the cache
				// still records every result.
			}
		}
	}

	if e.concurrent {
		e.runConcurrent(ctx, r.rs, emit)
	} else {
		e.runSequential(ctx, r.rs, emit)
	}

	r.status = r.deriveStatus(ctx)
	if e.collector != nil {
		e.collector.ObserveRun(string(r.mode), string(r.status), time.Since(started))
	}
	e.logger.Info("run finished",
		zap.String("run_id", r.rs.id),
		zap.String("status", string(r.status)),
		zap.Duration("elapsed", time.Since(started)),
	)
	emit(Progress{
		Final:     true,
		RunStatus: r.status,
		Stop:      r.rs.stop.Get(),
		Running:   r.rs.runningNodes(),
	})
}

// deriveStatus inspects every scheduled node's terminal status and the stop
// signal to produce the single caller-visible outcome of the run.
func (r *Run) deriveStatus(ctx context.Context) types.RunStatus {
	rs := r.rs
	if ctx.Err() != nil {
		return types.RunStatusCanceled
	}

	stop := rs.stop.Get()
	if stop != nil && stop.Kind == types.EventFailure {
		return types.RunStatusFailed
	}

	allTerminal := true
	anyCanceled := false
	for _, id := range rs.scheduled {
		switch rs.cache.Status(id) {
		case types.StatusFailed:
			return types.RunStatusFailed
		case types.StatusCanceled:
			anyCanceled = true
		case types.StatusSucceeded, types.StatusSkipped:
		default:
			allTerminal = false
		}
	}

	if stop != nil && stop.Kind == types.EventSuccess {
		return types.RunStatusSucceeded
	}
	if anyCanceled {
		return types.RunStatusCanceled
	}
	if !allTerminal || len(r.pauses) > 0 {
		// Still pending: either cut short or paused awaiting input.
		return types.RunStatusRunning
	}
	return types.RunStatusSucceeded
}
