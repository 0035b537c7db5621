package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the counters and histograms the rest of the system emits.
// Callers must tolerate a nil value from GetGlobalMetrics.
type Metrics interface {
	RecordQuery(ctx context.Context, task, method string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordCacheAccess(ctx context.Context, cache string, hit bool)
	RecordSandboxExecution(ctx context.Context, layer string, duration time.Duration, err error)
	RecordWorkflowNode(ctx context.Context, status string, duration time.Duration)
	RecordHTTPRequest(ctx context.Context, httpMethod, path string, statusCode int, duration time.Duration)
}

type PrometheusMetrics struct {
	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrorsTotal  metric.Int64Counter

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter

	sandboxDuration metric.Float64Histogram
	sandboxFailures metric.Int64Counter

	workflowNodes        metric.Int64Counter
	workflowNodeDuration metric.Float64Histogram

	httpDuration metric.Float64Histogram
}

func NewPrometheusMetrics(
	queriesTotal metric.Int64Counter,
	queryDuration metric.Float64Histogram,
	queryErrors metric.Int64Counter,
	llmDuration metric.Float64Histogram,
	llmInputTokens metric.Int64Counter,
	llmOutputTokens metric.Int64Counter,
	llmErrorsTotal metric.Int64Counter,
	cacheHits metric.Int64Counter,
	cacheMisses metric.Int64Counter,
	sandboxDuration metric.Float64Histogram,
	sandboxFailures metric.Int64Counter,
	workflowNodes metric.Int64Counter,
	workflowNodeDuration metric.Float64Histogram,
	httpDuration metric.Float64Histogram,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		queriesTotal:         queriesTotal,
		queryDuration:        queryDuration,
		queryErrors:          queryErrors,
		llmDuration:          llmDuration,
		llmInputTokens:       llmInputTokens,
		llmOutputTokens:      llmOutputTokens,
		llmErrorsTotal:       llmErrorsTotal,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		sandboxDuration:      sandboxDuration,
		sandboxFailures:      sandboxFailures,
		workflowNodes:        workflowNodes,
		workflowNodeDuration: workflowNodeDuration,
		httpDuration:         httpDuration,
	}
}

func (m *PrometheusMetrics) RecordQuery(ctx context.Context, task, method string, duration time.Duration, err error) {
	if m == nil || m.queriesTotal == nil || m.queryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrQueryTask, task),
		attribute.String(AttrQueryMethod, method),
	}

	m.queriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrQueryTask, task)))

	if err != nil && m.queryErrors != nil {
		m.queryErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrQueryTask, task)))
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil || m.llmInputTokens == nil || m.llmOutputTokens == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
	}

	m.llmDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.llmInputTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(attrs...))
	m.llmOutputTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(attrs...))

	if err != nil && m.llmErrorsTotal != nil {
		m.llmErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordCacheAccess(ctx context.Context, cache string, hit bool) {
	if m == nil || m.cacheHits == nil || m.cacheMisses == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrCacheName, cache),
	}

	if hit {
		m.cacheHits.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		m.cacheMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordSandboxExecution(ctx context.Context, layer string, duration time.Duration, err error) {
	if m == nil || m.sandboxDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrSandboxLayer, layer),
	}

	m.sandboxDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.sandboxFailures != nil {
		m.sandboxFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordWorkflowNode(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.workflowNodes == nil {
		return
	}

	m.workflowNodes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))

	if m.workflowNodeDuration != nil {
		m.workflowNodeDuration.Record(ctx, duration.Seconds())
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, httpMethod, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, httpMethod),
		attribute.String(AttrHTTPPath, path),
		attribute.Int(AttrHTTPStatusCode, statusCode),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
