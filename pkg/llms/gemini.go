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

// GeminiProvider speaks the generateContent protocol. System messages map
// to systemInstruction; assistant turns use the "model" role.
type GeminiProvider struct {
	config     *config.LLMProviderConfig
	httpClient *httpclient.Client
	baseURL    string
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiProvider creates a provider from config.
func NewGeminiProvider(cfg *config.LLMProviderConfig) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for gemini provider %q", cfg.Name)
	}

	return &GeminiProvider{
		config:     cfg,
		httpClient: createHTTPClient(cfg, httpclient.ParseGeminiHeaders),
		baseURL:    strings.TrimSuffix(cfg.Host, "/"),
	}, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, messages []Message, opts *Options) (string, Usage, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("minerva.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String(observability.AttrLLMProvider, "gemini"),
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
		apiErr := fmt.Errorf("gemini API error (%s): %s", response.Error.Status, response.Error.Message)
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, response.Error.Message)
		recordLLMCall(ctx, p.config.Model, duration, Usage{}, apiErr)
		return "", Usage{}, apiErr
	}

	if len(response.Candidates) == 0 {
		return "", Usage{}, fmt.Errorf("gemini response contained no candidates")
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	usage := Usage{
		InputTokens:  response.UsageMetadata.PromptTokenCount,
		OutputTokens: response.UsageMetadata.CandidatesTokenCount,
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, usage.InputTokens),
		attribute.Int(observability.AttrLLMTokensOutput, usage.OutputTokens),
	)
	span.SetStatus(codes.Ok, "success")
	recordLLMCall(ctx, p.config.Model, duration, usage, nil)

	return text.String(), usage, nil
}

// Available probes the model metadata endpoint.
func (p *GeminiProvider) Available(ctx context.Context) bool {
	url := fmt.Sprintf("%s/v1beta/models/%s?key=%s", p.baseURL, p.config.Model, p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < 500
}

func (p *GeminiProvider) GetModelName() string {
	return p.config.Model
}

func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) buildRequest(messages []Message, opts *Options) *geminiRequest {
	genConfig := &geminiGenerationConfig{
		Temperature:     *p.config.Temperature,
		MaxOutputTokens: p.config.MaxTokens,
	}

	if opts != nil {
		if opts.Temperature != nil {
			genConfig.Temperature = *opts.Temperature
		}
		if opts.MaxTokens > 0 {
			genConfig.MaxOutputTokens = opts.MaxTokens
		}
		if opts.ResponseFormat == "json" {
			genConfig.ResponseMimeType = "application/json"
		}
	}

	request := &geminiRequest{GenerationConfig: genConfig}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			request.Contents = append(request.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: m.Content}},
			})
		default:
			request.Contents = append(request.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}

	if len(system) > 0 {
		request.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}},
		}
	}

	return request
}

func (p *GeminiProvider) makeRequest(ctx context.Context, request *geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", p.baseURL, p.config.Model, p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response geminiResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && response.Error == nil {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return &response, nil
}
