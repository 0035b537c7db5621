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

// OllamaProvider speaks the local Ollama /api/chat protocol. It needs no
// API key, which makes it the last-resort provider in default pools.
type OllamaProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// NewOllamaProvider creates a provider from config.
func NewOllamaProvider(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return &OllamaProvider{
		config:     cfg,
		httpClient: createHTTPClient(cfg, nil),
		baseURL:    strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("minerva.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "ollama"),
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

	if response.Error != "" {
		apiErr := fmt.Errorf("ollama API error: %s", response.Error)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error)
		recordLLMCall(ctx, p.config.Model, duration, Usage{}, apiErr)
		return "", Usage{}, apiErr
	}

	usage := Usage{
		InputTokens:  response.PromptEvalCount,
		OutputTokens: response.EvalCount,
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, usage.OutputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	recordLLMCall(ctx, p.config.Model, duration, usage, nil)

	return response.Message.Content, usage, nil
}

// Available checks whether the local daemon answers.
func (p *OllamaProvider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

func (p *OllamaProvider) GetModelName() string {
	return p.config.Model
}

func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) buildRequest(messages []Message, opts *Options) *ollamaRequest {
	options := &ollamaOptions{
		Temperature: *p.config.Temperature,
		NumPredict:  p.config.MaxTokens,
	}

	request := &ollamaRequest{
		Model:   p.config.Model,
		Stream:  false,
		Options: options,
	}

	if opts != nil {
		if opts.Temperature != nil {
			options.Temperature = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			options.NumPredict = opts.MaxTokens
		}
		if opts.ResponseFormat == "json" {
			request.Format = "json"
		}
	}

	request.Messages = make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		request.Messages = append(request.Messages, ollamaMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return request
}

func (p *OllamaProvider) makeRequest(ctx context.Context, request *ollamaRequest) (*ollamaResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response ollamaResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && response.Error == "" {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &response, nil
}
