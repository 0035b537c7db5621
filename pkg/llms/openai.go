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

// OpenAIProvider speaks the OpenAI chat-completions protocol. It also
// fronts any OpenAI-compatible endpoint through the Host override.
type OpenAIProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIProvider creates a provider from config.
func NewOpenAIProvider(cfg *config.LLMProviderConfig) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" && !strings.Contains(cfg.Host, "localhost") {
		return nil, fmt.Errorf("api_key is required for openai provider %q", cfg.Name)
	}

	return &OpenAIProvider{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseOpenAIHeaders),
		baseURL:    strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("minerva.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "openai"),
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
		apiErr := fmt.Errorf("openai API error: %s", response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		recordLLMCall(ctx, p.config.Model, duration, Usage{}, apiErr)
		return "", Usage{}, apiErr
	}

	if len(response.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("openai response contained no choices")
	}

	usage := Usage{
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, usage.OutputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	recordLLMCall(ctx, p.config.Model, duration, usage, nil)

	return response.Choices[0].Message.Content, usage, nil
}

// Available probes the models endpoint.
func (p *OpenAIProvider) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
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

func (p *OpenAIProvider) GetModelName() string {
	return p.config.Model
}

func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) buildRequest(messages []Message, opts *Options) *openAIRequest {
	request := &openAIRequest{
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
		if opts.ResponseFormat == "json" {
			request.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
		}
	}

	request.Messages = make([]openAIMessage, 0, len(messages))
	for _, m := range messages {
		request.Messages = append(request.Messages, openAIMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	return request
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request *openAIRequest) (*openAIResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && response.Error == nil {
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &response, nil
}

func (p *OpenAIProvider) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
}
