package engine

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/registry"
	"github.com/benekli/minerva/pkg/router"
	"github.com/benekli/minerva/pkg/strategies"
	"github.com/benekli/minerva/pkg/workflow"
)

type stubStrategy struct {
	name    string
	outcome *strategies.Outcome

	mu      sync.Mutex
	queries []string
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Execute(_ context.Context, req *strategies.Request) (*strategies.Outcome, error) {
	s.mu.Lock()
	s.queries = append(s.queries, req.Query)
	s.mu.Unlock()
	return s.outcome, nil
}

func (s *stubStrategy) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(context.Context, []llms.Message, *llms.Options) (string, llms.Usage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	p.calls++
	if i >= len(p.responses) {
		i = len(p.responses) - 1
	}
	return p.responses[i], llms.Usage{InputTokens: 1, OutputTokens: 1}, nil
}

func (p *scriptedProvider) Available(context.Context) bool { return true }
func (p *scriptedProvider) GetModelName() string           { return "scripted" }
func (p *scriptedProvider) Close() error                   { return nil }

func testEngine(t *testing.T, provider *scriptedProvider, stubs ...*stubStrategy) *Engine {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()

	manager, err := llms.NewManagerWithProviders("scripted", nil,
		map[string]llms.Provider{"scripted": provider}, []string{"scripted"})
	require.NoError(t, err)

	e := &Engine{
		cfg:        cfg,
		manager:    manager,
		router:     router.NewKeywordRouter(),
		strategies: registry.NewBaseRegistry[strategies.Strategy](),
		logger:     slog.Default(),
	}
	for _, stub := range stubs {
		require.NoError(t, e.strategies.Register(stub.name, stub))
	}

	e.workflow, err = workflow.NewEngine(&cfg.Workflow, e, nil)
	require.NoError(t, err)
	e.decomposer, err = workflow.NewDecomposer(&cfg.Workflow, manager, nil)
	require.NoError(t, err)
	e.aggregator, err = workflow.NewAggregator(manager)
	require.NoError(t, err)

	return e
}

func TestQueryEmptyReturnsClarification(t *testing.T) {
	chat := &stubStrategy{name: "chat", outcome: &strategies.Outcome{
		Chat: &strategies.ChatResult{Message: "What would you like to know?"},
	}}
	e := testEngine(t, &scriptedProvider{responses: []string{"unused"}}, chat)

	response, err := e.Query(context.Background(), &Request{Query: "   "})
	require.NoError(t, err)

	assert.Equal(t, router.TaskChat, response.Kind)
	require.NotNil(t, response.Chat)
	assert.Equal(t, "empty query", response.Decision.Reasoning)
	assert.Equal(t, 1, chat.callCount())
}

func TestQueryDispatchesByKeywordDecision(t *testing.T) {
	code := &stubStrategy{name: "code", outcome: &strategies.Outcome{
		Code: &strategies.CodeResult{Stdout: "1024\n", Success: true},
	}}
	chat := &stubStrategy{name: "chat", outcome: &strategies.Outcome{
		Chat: &strategies.ChatResult{Message: "hi"},
	}}
	e := testEngine(t, &scriptedProvider{responses: []string{"unused"}}, code, chat)

	response, err := e.Query(context.Background(), &Request{Query: "Calculate 2^10"})
	require.NoError(t, err)

	assert.Equal(t, router.TaskCode, response.Kind)
	assert.Equal(t, router.MethodKeyword, response.Decision.Method)
	require.NotNil(t, response.Code)
	assert.Contains(t, response.Code.Stdout, "1024")
	assert.Equal(t, 1, code.callCount())
	assert.Equal(t, 0, chat.callCount())
}

func TestDispatchDegradesToChatForUnregisteredKind(t *testing.T) {
	chat := &stubStrategy{name: "chat", outcome: &strategies.Outcome{
		Chat: &strategies.ChatResult{Message: "I can't check the weather right now."},
	}}
	e := testEngine(t, &scriptedProvider{responses: []string{"unused"}}, chat)

	decision := &router.RoutingDecision{
		Query:       "weather in Oslo",
		PrimaryTask: router.TaskWeather,
		Confidence:  0.9,
		Method:      router.MethodKeyword,
	}

	response, err := e.Dispatch(context.Background(), decision, &Request{Query: "weather in Oslo"})
	require.NoError(t, err)
	require.NotNil(t, response.Chat)
	assert.Equal(t, 1, chat.callCount())
}

func TestMultiIntentRunsWorkflow(t *testing.T) {
	weather := &stubStrategy{name: "weather", outcome: &strategies.Outcome{
		Domain: &strategies.DomainResult{Kind: "weather", FormattedSummary: "Sunny, 20°C."},
	}}
	finance := &stubStrategy{name: "finance", outcome: &strategies.Outcome{
		Domain: &strategies.DomainResult{Kind: "finance", FormattedSummary: "AAPL at 228.50."},
	}}

	provider := &scriptedProvider{responses: []string{
		`[{"id": "oslo_weather", "kind": "weather", "input": "weather in Oslo"},
		  {"id": "aapl_quote", "kind": "finance", "input": "AAPL price"}]`,
		"Sunny in Oslo; AAPL trades at 228.50.",
	}}

	e := testEngine(t, provider, weather, finance)

	decision := &router.RoutingDecision{
		Query:       "weather in Oslo and the AAPL price",
		PrimaryTask: router.TaskWeather,
		Confidence:  0.75,
		Method:      router.MethodKeyword,
		MultiIntent: true,
	}

	response, err := e.Dispatch(context.Background(), decision,
		&Request{Query: "weather in Oslo and the AAPL price"})
	require.NoError(t, err)

	assert.Equal(t, router.TaskWorkflow, response.Kind)
	require.NotNil(t, response.Workflow)
	assert.Equal(t, "Sunny in Oslo; AAPL trades at 228.50.", response.Workflow.Answer)
	require.Len(t, response.Workflow.Records, 2)
	assert.Equal(t, workflow.StatusSucceeded, response.Workflow.Records["oslo_weather"].Status)
	assert.Equal(t, workflow.StatusSucceeded, response.Workflow.Records["aapl_quote"].Status)
	assert.Equal(t, 1, weather.callCount())
	assert.Equal(t, 1, finance.callCount())
}

func TestFlattenOutcome(t *testing.T) {
	assert.Equal(t, "42", flattenOutcome(&strategies.Outcome{
		Code: &strategies.CodeResult{Stdout: "42\n", Success: true},
	}))
	assert.Equal(t, "it broke", flattenOutcome(&strategies.Outcome{
		Code: &strategies.CodeResult{Success: false, Explanation: "it broke"},
	}))
	assert.Equal(t, "summary", flattenOutcome(&strategies.Outcome{
		Research: &strategies.ResearchResult{Summary: "summary"},
	}))
	assert.Equal(t, "", flattenOutcome(&strategies.Outcome{}))
}
