package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/httpclient"
	"github.com/benekli/minerva/pkg/observability"
)

const anthropicVersion = "2023-06-01"

// AnthropicProvider speaks the Anthropic messages API. System messages are
// hoisted into the top-level system field as the API requires.
type AnthropicProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider creates a provider from config.
func NewAnthropicProvider(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for anthropic provider %q", cfg.Name)
	}

	return &AnthropicProvider{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseAnthropicHeaders),
		baseURL:    strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("minerva.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "anthropic"),
		),
	)
	defer span.End()

	request := p.buildRequest(messages, opts)

	response, err := p.makeRequest(ctx, request)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordLLMCall(ctx, p.config.Model, duration, Usage{}, err)
		return "", Usage{}, err
	}

	if response.Error != nil {
		apiErr := fmt.Errorf("anthropic API error (%s): %s", response.Error.Type, response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		recordLLMCall(ctx, p.config.Model, duration, Usage{}, apiErr)
		return "", Usage{}, apiErr
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	usage := Usage{
		InputTokens:  response.Usage.InputTokens,
		OutputTokens: response.Usage.OutputTokens,
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, usage.OutputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	recordLLMCall(ctx, p.config.Model, duration, usage, nil)

	return text.String(), usage, nil
}

// Available sends a minimal invalid request; any response that is not a
// transport failure or a 5xx means the API is reachable and the key works
// at the HTTP layer.
func (p *AnthropicProvider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < 500
}

func (p *AnthropicProvider) GetModelName() string {
	return p.config.Model
}

func (p *AnthropicProvider) Close() error {
	return nil
}

func (p *AnthropicProvider) buildRequest(messages []Message, opts *Options) *anthropicRequest {
	request := &anthropicRequest{
		Model:       p.config.Model,
		Temperature: *p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}

	if opts != nil {
		if opts.Temperature != nil {
			request.Temperature = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			request.MaxTokens = opts.MaxTokens
		}
	}

	var system []string
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		request.Messages = append(request.Messages, anthropicMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	request.System = strings.Join(system, "\n\n")

	return request
}

func (p *AnthropicProvider) makeRequest(ctx context.Context, request *anthropicRequest) (*anthropicResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response anthropicResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && response.Error == nil {
		return nil, fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &response, nil
}

func (p *AnthropicProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}
