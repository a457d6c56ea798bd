package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 指标收集器测试
// =============================================================================

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("agentscope", reg, nil), reg
}

func TestCollector_ObserveRun(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveRun("concurrent", "succeeded", 250*time.Millisecond)
	c.ObserveRun("concurrent", "succeeded", 100*time.Millisecond)
	c.ObserveRun("sequential", "failed", time.Second)

	assert.Equal(t, float64(2),
		testutil.ToFloat64(c.runsTotal.WithLabelValues("concurrent", "succeeded")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.runsTotal.WithLabelValues("sequential", "failed")))
}

func TestCollector_ObserveNode(t *testing.T) {
	c, reg := newTestCollector(t)

	c.ObserveNode("llm", "succeeded", 50*time.Millisecond)
	c.ObserveNode("llm", "failed", 10*time.Millisecond)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("llm", "succeeded")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.nodeExecutionsTotal.WithLabelValues("llm", "failed")))

	// 直方图通过注册表抓取验证
	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["agentscope_node_duration_seconds"])
}

func TestCollector_RetryAndFallbackCounters(t *testing.T) {
	c, _ := newTestCollector(t)

	c.ObserveRetry("http")
	c.ObserveRetry("http")
	c.ObserveFallback("http")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(c.nodeRetriesTotal.WithLabelValues("http")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(c.nodeFallbacksTotal.WithLabelValues("http")))
}

func TestCollector_QueueDepthGauge(t *testing.T) {
	c, _ := newTestCollector(t)

	c.SetQueueDepth(17)
	assert.Equal(t, float64(17), testutil.ToFloat64(c.queueDepth))

	c.SetQueueDepth(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(c.queueDepth))
}

func TestNewCollector_NilRegistererUsesDefault(t *testing.T) {
	// 独立命名空间避免与默认注册表中既有指标冲突
	c := NewCollector("agentscope_default_test", nil, nil)
	require.NotNil(t, c)
	c.ObserveRun("sequential", "succeeded", time.Millisecond)
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("agentscope", reg, nil)
	assert.Panics(t, func() {
		NewCollector("agentscope", reg, nil)
	})
}
