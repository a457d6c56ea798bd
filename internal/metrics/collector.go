// Package metrics provides internal metrics collection for the engine.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 引擎指标收集器
// =============================================================================

// Collector 工作流引擎指标收集器
type Collector struct {
	// 运行指标
	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	// 节点指标
	nodeExecutionsTotal *prometheus.CounterVec
	nodeDuration        *prometheus.HistogramVec
	nodeRetriesTotal    *prometheus.CounterVec
	nodeFallbacksTotal  *prometheus.CounterVec

	// 进度队列指标
	queueDepth prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"mode", "status"},
	)

	c.runDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"mode"},
	)

	// 节点指标
	c.nodeExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node executions by type and terminal status",
		},
		[]string{"node_type", "status"},
	)

	c.nodeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"node_type"},
	)

	c.nodeRetriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_retries_total",
			Help:      "Total number of node retry attempts",
		},
		[]string{"node_type"},
	)

	c.nodeFallbacksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_fallbacks_total",
			Help:      "Total number of node fallback executions",
		},
		[]string{"node_type"},
	)

	// 进度队列指标
	c.queueDepth = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "progress_queue_depth",
			Help:      "Current depth of the progress queue",
		},
	)

	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// ObserveRun 记录一次运行
func (c *Collector) ObserveRun(mode, status string, duration time.Duration) {
	c.runsTotal.WithLabelValues(mode, status).Inc()
	c.runDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveNode 记录一次节点执行
func (c *Collector) ObserveNode(nodeType, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	c.nodeDuration.WithLabelValues(nodeType).Observe(duration.Seconds())
}

// ObserveRetry 记录一次重试
func (c *Collector) ObserveRetry(nodeType string) {
	c.nodeRetriesTotal.WithLabelValues(nodeType).Inc()
}

// ObserveFallback 记录一次降级执行
func (c *Collector) ObserveFallback(nodeType string) {
	c.nodeFallbacksTotal.WithLabelValues(nodeType).Inc()
}

// SetQueueDepth 更新进度队列深度
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
