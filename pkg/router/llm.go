package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/utils"
)

const classifySystemPrompt = `You classify user queries into exactly one task kind:

- research: open questions needing web search and synthesis
- code: computation, math, unit conversion, or program writing
- chat: greetings, small talk, opinions, anything conversational
- rag: questions about the user's own ingested documents
- weather: current or forecast weather for a place
- finance: stock quotes and market prices
- routing: distance or directions between two places
- workflow: requests combining several of the above in one query

Confidence rubric: 0.85 or higher for explicit intent, 0.65 to 0.85 when
plausible alternatives exist, below 0.65 when the query is ambiguous.

When multi_intent is true, list every constituent kind in task_kinds.

Respond with one JSON object only:
{"primary_task": "...", "confidence": 0.0, "reasoning": "...",
 "multi_intent": false, "task_kinds": [], "follow_up_questions": [],
 "estimated_duration_ms": 0}`

const fewShotEnglish = `Examples:
Q: "Compare the latest advances in battery technology" -> {"primary_task": "research", "confidence": 0.9, ...}
Q: "Calculate 2^10" -> {"primary_task": "code", "confidence": 0.95, ...}
Q: "hello there" -> {"primary_task": "chat", "confidence": 0.9, ...}
Q: "What does the onboarding document say about laptops?" -> {"primary_task": "rag", "confidence": 0.85, ...}
Q: "Weather in Oslo and the AAPL price" -> {"primary_task": "workflow", "confidence": 0.8, "multi_intent": true, "task_kinds": ["weather", "finance"], ...}`

const fewShotChinese = `示例：
问："比较最新的电池技术进展" -> {"primary_task": "research", "confidence": 0.9, ...}
问："计算 2 的 10 次方" -> {"primary_task": "code", "confidence": 0.95, ...}
问："你好" -> {"primary_task": "chat", "confidence": 0.9, ...}
问："澳門現在的濕度是多少？" -> {"primary_task": "weather", "confidence": 0.9, ...}
问："从北京到上海怎么走，顺便查一下上海的天气" -> {"primary_task": "workflow", "confidence": 0.8, "multi_intent": true, "task_kinds": ["routing", "weather"], ...}`

// llmDecision mirrors RoutingDecision minus method.
type llmDecision struct {
	PrimaryTask         string   `json:"primary_task"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	MultiIntent         bool     `json:"multi_intent"`
	TaskKinds           []string `json:"task_kinds"`
	FollowUpQuestions   []string `json:"follow_up_questions"`
	EstimatedDurationMS int64    `json:"estimated_duration_ms"`
}

// LLMRouter classifies with a structured prompt. It is never the first
// line: the hybrid router consults it only below the keyword threshold.
type LLMRouter struct {
	manager     *llms.Manager
	keyword     *KeywordRouter
	temperature *float64
	logger      *slog.Logger
}

// NewLLMRouter creates the classifier with the keyword router as its
// fallback.
func NewLLMRouter(cfg *config.RouterConfig, manager *llms.Manager, keyword *KeywordRouter, logger *slog.Logger) *LLMRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMRouter{
		manager:     manager,
		keyword:     keyword,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Route classifies via the LLM, degrading to the keyword result on any
// failure.
func (r *LLMRouter) Route(ctx context.Context, query, languageHint string) (*RoutingDecision, error) {
	decision, err := r.classify(ctx, query, languageHint)
	if err != nil {
		r.logger.Warn("llm classification failed, using keyword result", "error", err)
		fallback, kwErr := r.keyword.Route(ctx, query, languageHint)
		if kwErr != nil {
			return nil, kwErr
		}
		fallback.Method = MethodKeywordFallback
		return fallback, nil
	}
	return decision, nil
}

func (r *LLMRouter) classify(ctx context.Context, query, languageHint string) (*RoutingDecision, error) {
	language := languageHint
	if language == "" {
		language = DetectLanguage(query)
	}

	fewShot := fewShotEnglish
	if language == "zh" {
		fewShot = fewShotChinese
	}

	response, err := r.manager.Complete(ctx, []llms.Message{
		llms.System(classifySystemPrompt + "\n\n" + fewShot),
		llms.User(query),
	}, &llms.Options{
		Temperature:    r.temperature,
		ResponseFormat: "json",
	})
	if err != nil {
		return nil, err
	}

	parsed, err := parseClassification(response)
	if err != nil {
		return nil, err
	}

	kind := TaskKind(strings.ToLower(strings.TrimSpace(parsed.PrimaryTask)))
	if !kind.Valid() {
		return nil, fmt.Errorf("classifier returned unknown task kind %q", parsed.PrimaryTask)
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	decision := &RoutingDecision{
		Query:               query,
		PrimaryTask:         kind,
		Confidence:          confidence,
		Reasoning:           parsed.Reasoning,
		Method:              MethodLLM,
		ToolsNeeded:         toolsFor(kind, confidence),
		MultiIntent:         parsed.MultiIntent,
		EstimatedDurationMS: parsed.EstimatedDurationMS,
	}
	if parsed.MultiIntent {
		tools, kinds := multiIntentTools(kind, parsed.TaskKinds, query, confidence)
		if len(kinds) >= 2 {
			decision.ToolsNeeded = tools
		} else {
			// A single discernible intent is not a multi-intent query.
			decision.MultiIntent = false
		}
	}
	if decision.EstimatedDurationMS == 0 {
		decision.EstimatedDurationMS = kindDurations[kind]
	}
	if confidence < 0.5 {
		decision.FollowUpQuestions = parsed.FollowUpQuestions
	}
	return decision, nil
}

// multiIntentTools unions tool recommendations across the constituent kinds
// of a multi-intent decision, so a workflow classification still names the
// tools of the tasks inside it. The classifier's task_kinds list is trusted
// when it resolves to at least two tool-bearing kinds; otherwise the keyword
// lexicons fill in. Kinds without tools (chat, workflow) do not count.
func multiIntentTools(primary TaskKind, declared []string, query string, confidence float64) ([]ToolRecommendation, []TaskKind) {
	var kinds []TaskKind
	seen := map[TaskKind]bool{}
	add := func(kind TaskKind) {
		if len(kindTools[kind]) == 0 || seen[kind] {
			return
		}
		seen[kind] = true
		kinds = append(kinds, kind)
	}

	add(primary)
	for _, raw := range declared {
		add(TaskKind(strings.ToLower(strings.TrimSpace(raw))))
	}
	if len(kinds) < 2 {
		for _, kind := range matchedTaskKinds(query) {
			add(kind)
		}
	}

	var tools []ToolRecommendation
	for _, kind := range kinds {
		tools = append(tools, toolsFor(kind, confidence)...)
	}
	return tools, kinds
}

// parseClassification tries a strict decode first, then the lenient
// balanced-brace extraction.
func parseClassification(response string) (*llmDecision, error) {
	var parsed llmDecision
	if err := json.Unmarshal([]byte(response), &parsed); err == nil {
		return &parsed, nil
	}
	if err := utils.UnmarshalLenient(response, &parsed); err != nil {
		return nil, fmt.Errorf("unparseable classification: %w", err)
	}
	return &parsed, nil
}

var _ Router = (*LLMRouter)(nil)
