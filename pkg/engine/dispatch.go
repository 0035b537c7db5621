package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benekli/minerva/pkg/observability"
	"github.com/benekli/minerva/pkg/router"
	"github.com/benekli/minerva/pkg/strategies"
	"github.com/benekli/minerva/pkg/workflow"
)

// Query classifies a request and executes the selected strategy. An empty
// query short-circuits to a chat clarification; a multi-intent decision
// hands off to the workflow engine.
func (e *Engine) Query(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if req.TimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		decision := &router.RoutingDecision{
			Query:       req.Query,
			PrimaryTask: router.TaskChat,
			Confidence:  1.0,
			Reasoning:   "empty query",
			Method:      router.MethodKeyword,
		}
		return e.Dispatch(ctx, decision, req)
	}

	languageHint := req.Context["language_hint"]
	if languageHint == "" {
		languageHint = router.DetectLanguage(query)
	}

	decision, err := e.router.Route(ctx, query, languageHint)
	if err != nil {
		return nil, fmt.Errorf("routing failed: %w", err)
	}

	response, err := e.Dispatch(ctx, decision, req)

	if metrics := observability.GetGlobalMetrics(); metrics != nil {
		metrics.RecordQuery(ctx, string(decision.PrimaryTask), decision.Method, time.Since(start), err)
	}

	return response, err
}

// Dispatch executes the decision's strategy. Multi-intent decisions go to
// the workflow engine when it is wired; a kind with no registered strategy
// degrades to chat.
func (e *Engine) Dispatch(ctx context.Context, decision *router.RoutingDecision, req *Request) (*Response, error) {
	if decision.MultiIntent && e.decomposer != nil {
		return e.runWorkflow(ctx, decision, req)
	}

	outcome, err := e.executeKind(ctx, decision.PrimaryTask, req)
	if err != nil {
		return nil, err
	}

	return &Response{
		Decision: decision,
		Kind:     decision.PrimaryTask,
		Research: outcome.Research,
		Code:     outcome.Code,
		Chat:     outcome.Chat,
		RAG:      outcome.RAG,
		Domain:   outcome.Domain,
	}, nil
}

func (e *Engine) executeKind(ctx context.Context, kind router.TaskKind, req *Request) (*strategies.Outcome, error) {
	strategy, ok := e.strategies.Get(string(kind))
	if !ok {
		e.logger.Warn("no strategy registered for kind, degrading to chat", "kind", kind)
		strategy, ok = e.strategies.Get(string(router.TaskChat))
		if !ok {
			return nil, fmt.Errorf("no strategy registered for %q and no chat fallback", kind)
		}
	}

	return strategy.Execute(ctx, &strategies.Request{
		Query:             req.Query,
		Language:          req.contextValue("language_hint"),
		ConversationID:    req.contextValue("conversation_id"),
		PreferredProvider: req.contextValue("preferred_provider"),
	})
}

// runWorkflow decomposes a multi-intent query, executes the plan, and
// aggregates the surviving results. Decomposition failure degrades to the
// decision's primary strategy.
func (e *Engine) runWorkflow(ctx context.Context, decision *router.RoutingDecision, req *Request) (*Response, error) {
	plan, err := e.decomposer.Decompose(ctx, strings.TrimSpace(req.Query))
	if err != nil {
		e.logger.Warn("decomposition failed, running primary strategy only", "error", err)
		single := *decision
		single.MultiIntent = false
		return e.Dispatch(ctx, &single, req)
	}

	result, err := e.workflow.Execute(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("workflow execution failed: %w", err)
	}

	answer, err := e.aggregator.Aggregate(ctx, req.Query, result)
	if err != nil {
		return nil, err
	}

	return &Response{
		Decision: decision,
		Kind:     router.TaskWorkflow,
		Workflow: &WorkflowResult{
			RunID:   result.RunID,
			Answer:  answer,
			Records: result.Records,
		},
	}, nil
}

// ExecuteNode makes the engine the workflow engine's node executor: one
// node runs one strategy and flattens its outcome to text for template
// substitution in dependents.
func (e *Engine) ExecuteNode(ctx context.Context, kind router.TaskKind, input string) (string, error) {
	outcome, err := e.executeKind(ctx, kind, &Request{Query: input})
	if err != nil {
		return "", err
	}
	return flattenOutcome(outcome), nil
}

func flattenOutcome(outcome *strategies.Outcome) string {
	switch {
	case outcome.Research != nil:
		return outcome.Research.Summary
	case outcome.Code != nil:
		if outcome.Code.Success {
			return strings.TrimSpace(outcome.Code.Stdout)
		}
		return outcome.Code.Explanation
	case outcome.Chat != nil:
		return outcome.Chat.Message
	case outcome.RAG != nil:
		return outcome.RAG.Answer
	case outcome.Domain != nil:
		return outcome.Domain.FormattedSummary
	}
	return ""
}

var _ workflow.Executor = (*Engine)(nil)
