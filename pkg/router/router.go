// Package router classifies queries into task kinds. A deterministic
// keyword pass handles the clear cases; an LLM classifier covers the
// ambiguous rest, with the keyword result as the fallback when the model
// is unreachable or unparseable.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
)

// TaskKind is the closed set of query classes.
type TaskKind string

const (
	TaskResearch TaskKind = "research"
	TaskCode     TaskKind = "code"
	TaskChat     TaskKind = "chat"
	TaskRAG      TaskKind = "rag"
	TaskWeather  TaskKind = "weather"
	TaskFinance  TaskKind = "finance"
	TaskRouting  TaskKind = "routing"
	TaskWorkflow TaskKind = "workflow"
)

// Valid reports whether the kind is a member of the closed enumeration.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskResearch, TaskCode, TaskChat, TaskRAG,
		TaskWeather, TaskFinance, TaskRouting, TaskWorkflow:
		return true
	}
	return false
}

// ToolRecommendation names a tool the strategy will likely need.
type ToolRecommendation struct {
	Name       string            `json:"name"`
	Confidence float64           `json:"confidence"`
	Params     map[string]string `json:"params,omitempty"`
}

// RoutingDecision is the classification of one query. Immutable once
// produced.
type RoutingDecision struct {
	Query               string               `json:"query"`
	PrimaryTask         TaskKind             `json:"primary_task"`
	Confidence          float64              `json:"confidence"`
	Reasoning           string               `json:"reasoning"`
	Method              string               `json:"method"`
	ToolsNeeded         []ToolRecommendation `json:"tools_needed,omitempty"`
	MultiIntent         bool                 `json:"multi_intent"`
	FollowUpQuestions   []string             `json:"follow_up_questions,omitempty"`
	EstimatedDurationMS int64                `json:"estimated_duration_ms"`
}

// Methods recorded on decisions.
const (
	MethodKeyword         = "keyword"
	MethodLLM             = "llm"
	MethodKeywordFallback = "keyword_fallback"
)

// Router classifies one query. Implementations never error for valid text
// input; internal failures degrade to the keyword result.
type Router interface {
	Route(ctx context.Context, query, languageHint string) (*RoutingDecision, error)
}

// New builds the configured router composition.
func New(cfg *config.RouterConfig, manager *llms.Manager, logger *slog.Logger) (Router, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keyword := NewKeywordRouter()

	switch cfg.Mode {
	case "keyword":
		return keyword, nil
	case "llm":
		if manager == nil {
			return nil, fmt.Errorf("llm router mode requires a completion manager")
		}
		return NewLLMRouter(cfg, manager, keyword, logger), nil
	case "hybrid", "":
		if manager == nil {
			return nil, fmt.Errorf("hybrid router mode requires a completion manager")
		}
		return NewHybridRouter(cfg, NewLLMRouter(cfg, manager, keyword, logger), keyword, logger), nil
	default:
		return nil, fmt.Errorf("unknown router mode %q", cfg.Mode)
	}
}

// HybridRouter runs the keyword router and escalates to the LLM only when
// keyword confidence falls below the threshold. High-confidence keyword
// decisions are returned exactly as produced.
type HybridRouter struct {
	keyword   *KeywordRouter
	llm       *LLMRouter
	threshold float64
	cache     *expirable.LRU[string, *RoutingDecision]
	logger    *slog.Logger
}

// NewHybridRouter assembles the composition with its decision cache.
func NewHybridRouter(cfg *config.RouterConfig, llm *LLMRouter, keyword *KeywordRouter, logger *slog.Logger) *HybridRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridRouter{
		keyword:   keyword,
		llm:       llm,
		threshold: cfg.ConfidenceThreshold,
		cache:     expirable.NewLRU[string, *RoutingDecision](cfg.CacheSize, nil, cfg.CacheTTL.Duration()),
		logger:    logger,
	}
}

func (r *HybridRouter) Route(ctx context.Context, query, languageHint string) (*RoutingDecision, error) {
	key := cacheKey(query, languageHint)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	decision, err := r.keyword.Route(ctx, query, languageHint)
	if err != nil {
		return nil, err
	}

	if decision.Confidence >= r.threshold {
		r.cache.Add(key, decision)
		return decision, nil
	}

	llmDecision, err := r.llm.classify(ctx, query, languageHint)
	if err != nil {
		r.logger.Warn("llm classification failed, using keyword result",
			"query_len", len(query), "error", err)
		decision.Method = MethodKeywordFallback
		r.cache.Add(key, decision)
		return decision, nil
	}

	r.cache.Add(key, llmDecision)
	return llmDecision, nil
}

func cacheKey(query, languageHint string) string {
	sum := sha256.Sum256([]byte(query + "\x00" + languageHint))
	return hex.EncodeToString(sum[:])
}
