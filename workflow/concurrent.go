package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/modelscope/agentscope-sub001/internal/queue"
	"github.com/modelscope/agentscope-sub001/types"
)

// barrier is one node's completion signal. Any terminal outcome (success,
// failure, skip, cancellation) signals it; whether correct data is
// available is decided by input resolution, not by the barrier.
type barrier struct {
	once sync.Once
	ch   chan struct{}
}

func newBarrier() *barrier {
	return &barrier{ch: make(chan struct{})}
}

func (b *barrier) signal() {
	b.once.Do(func() { close(b.ch) })
}

// runConcurrent spawns one worker per scheduled node. Each worker blocks on
// its predecessors' barriers, periodically re-checking the stop signal and
// cancellation so it can abort without ever running, then executes the node
// pushing progress onto a shared MPSC queue. A coordinator loop drains the
// queue, forwards items to the caller, and ends the run when the stop
// signal fires or all workers finish; it then force-sets every barrier so
// no worker is left blocked on a predecessor that will never run.
func (e *Engine) runConcurrent(ctx context.Context, rs *runState, emit emitFn) {
	q := queue.New[Progress](e.cfg.QueueSize)
	barriers := make(map[string]*barrier, len(rs.scheduled))
	for _, id := range rs.scheduled {
		barriers[id] = newBarrier()
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	limit := e.cfg.MaxConcurrency
	if limit <= 0 {
		limit = len(rs.scheduled)
	}
	var sem *semaphore.Weighted
	if limit > 0 {
		sem = semaphore.NewWeighted(int64(limit))
	}

	// Workers push onto the queue regardless of worker-context state so
	// terminal progress is never lost; Send does not block.
	push := func(p Progress) { _ = q.Send(context.Background(), p) }

	var g errgroup.Group
	for _, id := range rs.scheduled {
		g.Go(func() error {
			e.nodeWorker(ctx, workerCtx, rs, id, barriers, sem, push)
			return nil
		})
	}

	workersDone := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(workersDone)
	}()

	forward := func() {
		for {
			p, ok := q.TryReceive()
			if !ok {
				return
			}
			emit(p)
		}
	}

	poll := time.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()

loop:
	for {
		forward()
		if e.collector != nil {
			e.collector.SetQueueDepth(q.Len())
		}
		if stop := rs.stop.Get(); stop != nil {
			e.logger.Debug("stop signal set, ending run",
				zap.String("run_id", rs.id),
				zap.String("kind", string(stop.Kind)),
			)
			break
		}
		select {
		case <-workersDone:
			break loop
		case <-ctx.Done():
			break loop
		case <-poll.C:
		}
	}

	// Run end: release every worker still blocked on a predecessor.
	cancelWorkers()
	for _, b := range barriers {
		b.signal()
	}
	<-workersDone
	forward()
	q.Close()
}

// nodeWorker waits for the node's predecessors, then runs it through the
// shared protocol. outerCtx distinguishes external cancellation from the
// engine's own end-of-run shutdown: only the former marks the node
// Canceled before it ran.
func (e *Engine) nodeWorker(outerCtx, workerCtx context.Context, rs *runState, id string,
	barriers map[string]*barrier, sem *semaphore.Weighted, push emitFn) {

	self := barriers[id]
	defer self.signal()

	cancelBeforeRun := func(reason string) {
		rs.cache.Save(id, nil, types.StatusCanceled, reason)
		if node, ok := e.graph.Node(id); ok {
			push(Progress{
				NodeID:   id,
				NodeType: node.Type(),
				Entry:    rs.cache.Entry(id),
				Running:  rs.runningNodes(),
				Stop:     rs.stop.Get(),
			})
		}
	}

	for _, pred := range e.graph.Predecessors(id) {
		b, ok := barriers[pred]
		if !ok {
			// Predecessor outside the scheduled set: completed in a
			// prior turn or excluded by a boundary; counts as signaled.
			continue
		}
	wait:
		for {
			select {
			case <-b.ch:
				break wait
			case <-workerCtx.Done():
				if outerCtx.Err() != nil {
					cancelBeforeRun(outerCtx.Err().Error())
				}
				return
			case <-time.After(e.cfg.PollInterval):
				if rs.stop.Get() != nil {
					return
				}
			}
		}
	}

	if rs.stop.Get() != nil {
		return
	}
	if workerCtx.Err() != nil {
		if outerCtx.Err() != nil {
			cancelBeforeRun(outerCtx.Err().Error())
		}
		return
	}

	if sem != nil {
		if err := sem.Acquire(workerCtx, 1); err != nil {
			if outerCtx.Err() != nil {
				cancelBeforeRun(outerCtx.Err().Error())
			}
			return
		}
		defer sem.Release(1)
	}

	e.executeNode(workerCtx, rs, id, push)
}
