package workflow

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/modelscope/agentscope-sub001/internal/metrics"
	"github.com/modelscope/agentscope-sub001/types"
)

// Config holds the engine's tunable knobs.
type Config struct {
	// MaxRetries bounds re-attempts per node after a Retry event.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RetryInterval is the base backoff between attempts.
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
	// RetryJitter is the upper bound of the uniform jitter added to the
	// base backoff.
	RetryJitter time.Duration `yaml:"retry_jitter" json:"retry_jitter"`
	// MaxConcurrency bounds simultaneous node workers in the concurrent
	// engine. Zero means unbounded up to node count.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// PollInterval is the cadence at which waiting workers and the
	// coordinator re-check the stop and cancellation signals.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// QueueSize is the buffer of the shared progress queue.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// DefaultConfig returns the documented defaults: 3 retries, 15 s base
// backoff with up to 1 s jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryInterval: 15 * time.Second,
		RetryJitter:   time.Second,
		PollInterval:  100 * time.Millisecond,
		QueueSize:     256,
	}
}

// Engine walks an ordered node set applying the uniform
// retry/fallback/cancellation protocol. Sequential by default; see
// WithConcurrency. The engine itself holds no run state: every Run owns its
// cache, stop signal, and synchronization, so runs may execute concurrently.
type Engine struct {
	graph      *Graph
	cfg        Config
	logger     *zap.Logger
	collector  *metrics.Collector
	tracer     trace.Tracer
	limiter    *rate.Limiter
	concurrent bool

	// sleep is swappable so tests do not wait out real backoff.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the whole engine configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConcurrency switches to the concurrent engine, bounding simultaneous
// workers to n (n <= 0 means unbounded up to node count).
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrent = true
		e.cfg.MaxConcurrency = n
	}
}

// WithMetrics wires a Prometheus collector under the given namespace.
// A nil registerer uses the default registry.
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(e *Engine) {
		e.collector = metrics.NewCollector(namespace, reg, e.logger)
	}
}

// WithTracer records one span per node execution on the given tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

// WithRateLimit throttles node dispatch with the given limiter.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(e *Engine) { e.limiter = limiter }
}

// NewEngine creates an engine for the given graph.
func NewEngine(graph *Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:  graph,
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"))
	return e
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopSignal is the run-wide terminal marker. The first Success or Failure
// wins; once set, no further node is scheduled.
type stopSignal struct {
	mu sync.RWMutex
	ev *types.Event
}

func (s *stopSignal) Set(ev types.Event) {
	if !ev.Stop() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ev == nil {
		cp := ev
		s.ev = &cp
	}
}

func (s *stopSignal) Get() *types.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ev
}

// Progress is one item of the live stream a run forwards to the caller.
type Progress struct {
	NodeID   string
	NodeType NodeType
	// Entry is a copy of the node's cache entry at emission time.
	Entry *types.NodeCacheEntry
	// Running lists the scheduled nodes currently in flight.
	Running []string
	// Stop carries the engine-wide stop signal once set.
	Stop *types.Event
	// Final marks the last item of the stream; RunStatus is set on it.
	Final     bool
	RunStatus types.RunStatus
}

type emitFn func(Progress)

// runState is the engine-owned, run-scoped mutable state handed to every
// worker at spawn time. Nothing here is package-level, so concurrent runs
// do not interfere.
type runState struct {
	id        string
	scheduled []string
	cache     *GlobalCache
	stop      *stopSignal
	usage     *UsageRecorder
}

func (rs *runState) runningNodes() []string {
	var out []string
	for _, id := range rs.scheduled {
		if rs.cache.Status(id) == types.StatusRunning {
			out = append(out, id)
		}
	}
	return out
}

// nodeOutcome is the decision the event-stream consumer hands back to the
// attempt loop.
type nodeOutcome struct {
	action outcomeAction
	event  types.Event
}

type outcomeAction int

const (
	actionDone outcomeAction = iota
	actionRetry
	actionFallback
)

// executeNode drives one node through the shared protocol as an explicit
// attempt loop: {fresh, retrying(n), falling back, terminal}. The node's
// Execute is re-invoked per attempt with the triggering event as context.
func (e *Engine) executeNode(ctx context.Context, rs *runState, id string, emit emitFn) {
	node, ok := e.graph.Node(id)
	if !ok {
		return
	}
	log := e.logger.With(zap.String("run_id", rs.id), zap.String("node_id", id))
	started := time.Now()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			e.finishNode(rs, id, node, nil, types.StatusCanceled, ctx.Err().Error(), started, emit)
			return
		}
	}
	if ctx.Err() != nil {
		e.finishNode(rs, id, node, nil, types.StatusCanceled, ctx.Err().Error(), started, emit)
		return
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "workflow.node",
			trace.WithAttributes(
				attribute.String("node.id", id),
				attribute.String("node.type", string(node.Type())),
			))
		defer span.End()
	}

	inputs, skip := rs.cache.RetrieveInput(id, e.graph)
	if skip {
		log.Debug("node skipped, no contributing incoming edge")
		e.finishNode(rs, id, node, nil, types.StatusSkipped, "", started, emit)
		return
	}

	retryCount := 0
	inFallback := false
	var trigger *types.Event

	for {
		if ctx.Err() != nil {
			e.finishNode(rs, id, node, nil, types.StatusCanceled, ctx.Err().Error(), started, emit)
			return
		}

		inv := &Invocation{
			Inputs:  inputs,
			Cache:   rs.cache,
			Graph:   e.graph,
			Usage:   rs.usage,
			Trigger: trigger,
		}
		var stream <-chan types.Event
		if inFallback {
			stream = e.fallbackStream(ctx, node, inv)
		} else {
			stream = node.Execute(ctx, inv)
		}

		outcome := e.consumeStream(ctx, rs, id, node, stream, inFallback, started, emit)
		switch outcome.action {
		case actionDone:
			return

		case actionRetry:
			if retryCount < e.cfg.MaxRetries {
				retryCount++
				if e.collector != nil {
					e.collector.ObserveRetry(string(node.Type()))
				}
				log.Debug("node retrying",
					zap.Int("attempt", retryCount),
					zap.String("reason", outcome.event.Message),
				)
				if err := e.sleep(ctx, e.backoff()); err != nil {
					e.finishNode(rs, id, node, nil, types.StatusCanceled, err.Error(), started, emit)
					return
				}
				ev := outcome.event
				trigger = &ev
				continue
			}
			// Retries exhausted: synthesize a fallback carrying the
			// original context and proceed without sleeping again.
			fb := types.NewFallbackEvent(outcome.event.Message, outcome.event.Err)
			trigger = &fb
			inFallback = true

		case actionFallback:
			ev := outcome.event
			trigger = &ev
			inFallback = true
		}
	}
}

// backoff returns base interval plus uniform jitter.
func (e *Engine) backoff() time.Duration {
	d := e.cfg.RetryInterval
	if e.cfg.RetryJitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.cfg.RetryJitter)))
	}
	return d
}

// consumeStream interprets one invocation's event stream. It persists
// partial results, forwards progress, raises the stop signal on terminal
// events, and reports back whether the attempt loop should retry, fall
// back, or stop.
func (e *Engine) consumeStream(ctx context.Context, rs *runState, id string, node Node,
	stream <-chan types.Event, inFallback bool, started time.Time, emit emitFn) nodeOutcome {

	var partial []*types.WorkflowVariable
	for {
		select {
		case <-ctx.Done():
			go drain(stream)
			e.finishNode(rs, id, node, partial, types.StatusCanceled, ctx.Err().Error(), started, emit)
			return nodeOutcome{action: actionDone}

		case ev, ok := <-stream:
			if !ok {
				// Natural exhaustion without a terminal event.
				e.finishNode(rs, id, node, partial, types.StatusSucceeded, "", started, emit)
				return nodeOutcome{action: actionDone}
			}

			switch ev.Kind {
			case types.EventNormal:
				partial = ev.Results
				if inFallback {
					markRecovered(partial)
				}
				rs.cache.Save(id, partial, types.StatusRunning, ev.Message)
				emit(Progress{
					NodeID:   id,
					NodeType: node.Type(),
					Entry:    rs.cache.Entry(id),
					Running:  rs.runningNodes(),
					Stop:     rs.stop.Get(),
				})

			case types.EventSuccess:
				results := ev.Results
				if len(results) == 0 {
					results = partial
				}
				if inFallback {
					markRecovered(results)
				}
				rs.stop.Set(ev)
				e.finishNode(rs, id, node, results, types.StatusSucceeded, ev.Message, started, emit)
				return nodeOutcome{action: actionDone}

			case types.EventRetry:
				go drain(stream)
				if inFallback {
					// The fallback path must not loop; a transient
					// signal from it is terminal.
					e.failNode(rs, id, node, ev, started, emit)
					return nodeOutcome{action: actionDone}
				}
				return nodeOutcome{action: actionRetry, event: ev}

			case types.EventFallback:
				go drain(stream)
				if inFallback {
					e.failNode(rs, id, node, ev, started, emit)
					return nodeOutcome{action: actionDone}
				}
				return nodeOutcome{action: actionFallback, event: ev}

			case types.EventFailure:
				go drain(stream)
				if ev.Err != nil && !inFallback {
					// A raised error: classify, then convert into the
					// same retry/fallback/failure handling.
					classified, retryable := e.evaluateException(node, ev.Err)
					msg := ev.Message
					if msg == "" {
						msg = classified.Error()
					}
					if retryable {
						return nodeOutcome{action: actionRetry, event: types.NewRetryEvent(msg, classified)}
					}
					if classified.Code == types.ErrCall {
						return nodeOutcome{action: actionFallback, event: types.NewFallbackEvent(msg, classified)}
					}
					ev.Err = classified
				}
				e.failNode(rs, id, node, ev, started, emit)
				return nodeOutcome{action: actionDone}

			default:
				go drain(stream)
				e.failNode(rs, id, node,
					types.NewFailureEvent("unrecognized event kind: "+string(ev.Kind), nil),
					started, emit)
				return nodeOutcome{action: actionDone}
			}
		}
	}
}

// evaluateException runs the node's own classification hook, falling back
// to the default taxonomy.
func (e *Engine) evaluateException(node Node, err error) (*types.Error, bool) {
	if ev, ok := node.(ExceptionEvaluator); ok {
		cerr, retry := ev.EvaluateException(err)
		classified := types.Classify(cerr)
		return classified, retry || classified.Retryable
	}
	classified := types.Classify(err)
	return classified, classified.Retryable
}

// fallbackStream invokes the node's degraded path, or re-raises the
// original classified error when the node has none.
func (e *Engine) fallbackStream(ctx context.Context, node Node, inv *Invocation) <-chan types.Event {
	if e.collector != nil {
		e.collector.ObserveFallback(string(node.Type()))
	}
	if fb, ok := node.(FallbackNode); ok {
		return fb.FallbackExecute(ctx, inv)
	}
	ch := make(chan types.Event, 1)
	var cause error
	msg := "fallback with no degraded path"
	if inv.Trigger != nil {
		cause = inv.Trigger.Err
		if inv.Trigger.Message != "" {
			msg = inv.Trigger.Message
		}
	}
	ch <- types.NewFailureEvent(msg, types.Classify(cause))
	close(ch)
	return ch
}

// failNode records a terminal failure and raises the stop signal.
func (e *Engine) failNode(rs *runState, id string, node Node, ev types.Event, started time.Time, emit emitFn) {
	msg := ev.Message
	if msg == "" && ev.Err != nil {
		msg = ev.Err.Error()
	}
	rs.stop.Set(types.NewFailureEvent(msg, ev.Err))
	e.finishNode(rs, id, node, nil, types.StatusFailed, msg, started, emit)
}

// finishNode persists the node's terminal entry and emits progress.
func (e *Engine) finishNode(rs *runState, id string, node Node,
	results []*types.WorkflowVariable, status types.NodeStatus, message string,
	started time.Time, emit emitFn) {

	rs.cache.Save(id, results, status, message)
	if e.collector != nil {
		e.collector.ObserveNode(string(node.Type()), string(status), time.Since(started))
	}
	e.logger.Debug("node finished",
		zap.String("run_id", rs.id),
		zap.String("node_id", id),
		zap.String("status", string(status)),
		zap.Duration("elapsed", time.Since(started)),
	)
	emit(Progress{
		NodeID:   id,
		NodeType: node.Type(),
		Entry:    rs.cache.Entry(id),
		Running:  rs.runningNodes(),
		Stop:     rs.stop.Get(),
	})
}

// markRecovered tags fallback-produced variables as degraded results.
func markRecovered(results []*types.WorkflowVariable) {
	for _, v := range results {
		v.Meta.Recovered = true
	}
}

// drain consumes an abandoned event stream so the producing goroutine can
// finish.
func drain(stream <-chan types.Event) {
	for range stream {
	}
}
