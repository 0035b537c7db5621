package engine

import (
	"github.com/benekli/minerva/pkg/router"
	"github.com/benekli/minerva/pkg/strategies"
	"github.com/benekli/minerva/pkg/workflow"
)

// Request is one query against the engine. Context carries optional
// request metadata: language_hint, conversation_id, preferred_provider.
type Request struct {
	Query     string            `json:"query"`
	Context   map[string]string `json:"context,omitempty"`
	TimeoutMS int64             `json:"timeout_ms,omitempty"`
}

func (r *Request) contextValue(key string) string {
	if r.Context == nil {
		return ""
	}
	return r.Context[key]
}

// WorkflowResult is a finished multi-intent run.
type WorkflowResult struct {
	RunID   string                               `json:"run_id"`
	Answer  string                               `json:"answer"`
	Records map[string]*workflow.ExecutionRecord `json:"records"`
}

// Response carries the routing decision and exactly one typed result.
type Response struct {
	Decision *router.RoutingDecision `json:"decision"`
	Kind     router.TaskKind         `json:"kind"`

	Research *strategies.ResearchResult `json:"research,omitempty"`
	Code     *strategies.CodeResult     `json:"code,omitempty"`
	Chat     *strategies.ChatResult     `json:"chat,omitempty"`
	RAG      *strategies.RAGResult      `json:"rag,omitempty"`
	Domain   *strategies.DomainResult   `json:"domain,omitempty"`
	Workflow *WorkflowResult            `json:"workflow,omitempty"`
}
