package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/types"
)

// runSequential executes the ordered node set one node at a time, each to
// completion before the next starts, stopping early once the run-wide stop
// signal is set. No concurrent cache access happens in this mode.
func (e *Engine) runSequential(ctx context.Context, rs *runState, emit emitFn) {
	for _, id := range rs.scheduled {
		if stop := rs.stop.Get(); stop != nil {
			e.logger.Debug("stop signal set, halting schedule",
				zap.String("run_id", rs.id),
				zap.String("next_node", id),
			)
			return
		}
		if ctx.Err() != nil {
			if node, ok := e.graph.Node(id); ok {
				rs.cache.Save(id, nil, types.StatusCanceled, ctx.Err().Error())
				emit(Progress{
					NodeID:   id,
					NodeType: node.Type(),
					Entry:    rs.cache.Entry(id),
					Running:  rs.runningNodes(),
					Stop:     rs.stop.Get(),
				})
			}
			return
		}
		e.executeNode(ctx, rs, id, emit)
	}
}
