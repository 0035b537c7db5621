package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("minerva")

	queriesTotal, err := meter.Int64Counter(
		"minerva_queries_total",
		metric.WithDescription("Total queries served, by task and routing method"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create queries counter: %w", err)
	}

	queryDuration, err := meter.Float64Histogram(
		"minerva_query_duration_seconds",
		metric.WithDescription("End-to-end query duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query duration histogram: %w", err)
	}

	queryErrors, err := meter.Int64Counter(
		"minerva_query_errors_total",
		metric.WithDescription("Total queries that ended in an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create query errors counter: %w", err)
	}

	llmDuration, err := meter.Float64Histogram(
		"minerva_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	llmInputTokens, err := meter.Int64Counter(
		"minerva_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to LLM providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	llmOutputTokens, err := meter.Int64Counter(
		"minerva_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from LLM providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	llmErrors, err := meter.Int64Counter(
		"minerva_llm_errors_total",
		metric.WithDescription("Total LLM provider errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"minerva_cache_hits_total",
		metric.WithDescription("Total cache hits, by cache name"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"minerva_cache_misses_total",
		metric.WithDescription("Total cache misses, by cache name"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	sandboxDuration, err := meter.Float64Histogram(
		"minerva_sandbox_execution_duration_seconds",
		metric.WithDescription("Sandbox execution duration in seconds, by layer"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox duration histogram: %w", err)
	}

	sandboxFailures, err := meter.Int64Counter(
		"minerva_sandbox_failures_total",
		metric.WithDescription("Total sandbox validations and executions that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox failures counter: %w", err)
	}

	workflowNodes, err := meter.Int64Counter(
		"minerva_workflow_nodes_total",
		metric.WithDescription("Total workflow nodes executed, by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow nodes counter: %w", err)
	}

	workflowNodeDuration, err := meter.Float64Histogram(
		"minerva_workflow_node_duration_seconds",
		metric.WithDescription("Workflow node execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow node duration histogram: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"minerva_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return NewPrometheusMetrics(
		queriesTotal,
		queryDuration,
		queryErrors,
		llmDuration,
		llmInputTokens,
		llmOutputTokens,
		llmErrors,
		cacheHits,
		cacheMisses,
		sandboxDuration,
		sandboxFailures,
		workflowNodes,
		workflowNodeDuration,
		httpDuration,
	), nil
}
