package observability

import (
	"context"
	"time"
)

// NoopMetrics is a metrics implementation that does nothing. Use it when
// observability is disabled but a non-nil Metrics is required.
type NoopMetrics struct{}

func (NoopMetrics) RecordQuery(_ context.Context, _, _ string, _ time.Duration, _ error)          {}
func (NoopMetrics) RecordLLMCall(_ context.Context, _ string, _ time.Duration, _, _ int, _ error) {}
func (NoopMetrics) RecordCacheAccess(_ context.Context, _ string, _ bool)                         {}
func (NoopMetrics) RecordSandboxExecution(_ context.Context, _ string, _ time.Duration, _ error)  {}
func (NoopMetrics) RecordWorkflowNode(_ context.Context, _ string, _ time.Duration)               {}
func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration)      {}

var (
	_ Metrics = (*PrometheusMetrics)(nil)
	_ Metrics = NoopMetrics{}
)
