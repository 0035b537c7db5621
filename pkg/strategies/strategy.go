// Package strategies holds the per-task execution pipelines behind the
// dispatcher: research, code, chat, rag, and the real-time domain lookups.
package strategies

import (
	"context"
)

// Request is the strategy-facing view of one query.
type Request struct {
	Query             string
	Language          string
	ConversationID    string
	PreferredProvider string
}

// Strategy executes one task kind.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, req *Request) (*Outcome, error)
}

// Outcome carries exactly one typed result.
type Outcome struct {
	Research *ResearchResult `json:"research,omitempty"`
	Code     *CodeResult     `json:"code,omitempty"`
	Chat     *ChatResult     `json:"chat,omitempty"`
	RAG      *RAGResult      `json:"rag,omitempty"`
	Domain   *DomainResult   `json:"domain,omitempty"`
}

// ResearchResult is the research pipeline's answer.
type ResearchResult struct {
	Query   string   `json:"query"`
	Plan    []string `json:"plan"`
	Sources []Source `json:"sources"`
	Summary string   `json:"summary"`
}

// Source is one researched page, ordered by final rank.
type Source struct {
	URL                string             `json:"url"`
	Title              string             `json:"title"`
	Snippet            string             `json:"snippet,omitempty"`
	CredibilityScore   float64            `json:"credibility_score"`
	CredibilityDetails map[string]float64 `json:"credibility_details,omitempty"`
}

// CodeResult is the code pipeline's answer. Code is the exact string that
// was executed.
type CodeResult struct {
	Problem     string `json:"problem"`
	Code        string `json:"code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Success     bool   `json:"success"`
	Explanation string `json:"explanation,omitempty"`
	Truncated   bool   `json:"truncated,omitempty"`
}

// ChatResult is a plain conversational reply.
type ChatResult struct {
	Message string `json:"message"`
}

// RAGResult is a document-grounded answer.
type RAGResult struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Sources  []Chunk `json:"sources"`
}

// Chunk is one retrieved document piece.
type Chunk struct {
	DocID    string                 `json:"doc_id"`
	ChunkIx  int                    `json:"chunk_ix"`
	Text     string                 `json:"text"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DomainResult is a real-time domain lookup answer. A missing entity is
// reported through FormattedSummary, not an error.
type DomainResult struct {
	Kind             string                 `json:"kind"`
	Entity           string                 `json:"entity"`
	ProviderPayload  map[string]interface{} `json:"provider_payload,omitempty"`
	FormattedSummary string                 `json:"formatted_summary"`
}
