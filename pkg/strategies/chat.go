package strategies

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/history"
	"github.com/benekli/minerva/pkg/llms"
	"github.com/benekli/minerva/pkg/utils"
)

const chatSystemPrompt = `You are a helpful assistant. Answer concisely and directly. If a question is ambiguous, ask one clarifying question instead of guessing.`

// clarificationReply is returned for empty queries.
const clarificationReply = "I didn't catch a question there. What would you like to know?"

// ChatStrategy answers conversationally, folding stored history into the
// prompt under a token budget.
type ChatStrategy struct {
	cfg     *config.HistoryConfig
	manager *llms.Manager
	store   history.Store
	counter *utils.TokenCounter
	logger  *slog.Logger
}

// NewChatStrategy builds the strategy. The history store is optional; without
// one every exchange is stateless.
func NewChatStrategy(cfg *config.HistoryConfig, manager *llms.Manager, store history.Store, logger *slog.Logger) (*ChatStrategy, error) {
	if manager == nil {
		return nil, fmt.Errorf("completion manager is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	counter, err := utils.NewTokenCounter("gpt-4o")
	if err != nil {
		return nil, fmt.Errorf("token counter: %w", err)
	}

	return &ChatStrategy{
		cfg:     cfg,
		manager: manager,
		store:   store,
		counter: counter,
		logger:  logger.With("strategy", "chat"),
	}, nil
}

func (s *ChatStrategy) Name() string { return "chat" }

func (s *ChatStrategy) Execute(ctx context.Context, req *Request) (*Outcome, error) {
	if strings.TrimSpace(req.Query) == "" {
		return &Outcome{Chat: &ChatResult{Message: clarificationReply}}, nil
	}

	messages := s.buildMessages(ctx, req)

	var opts *llms.Options
	if req.PreferredProvider != "" {
		opts = &llms.Options{PreferredProvider: req.PreferredProvider}
	}

	reply, err := s.manager.Complete(ctx, messages, opts)
	if err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)

	s.remember(ctx, req.ConversationID, req.Query, reply)

	return &Outcome{Chat: &ChatResult{Message: reply}}, nil
}

// buildMessages assembles system prompt, budgeted history, and the query.
func (s *ChatStrategy) buildMessages(ctx context.Context, req *Request) []llms.Message {
	messages := []llms.Message{llms.System(chatSystemPrompt)}

	if s.store != nil && req.ConversationID != "" {
		past, err := s.store.Get(ctx, req.ConversationID, 0)
		if err != nil {
			s.logger.Warn("history fetch failed, continuing without it",
				"conversation_id", req.ConversationID, "error", err)
		} else if len(past) > 0 {
			messages = append(messages, s.fitHistory(past)...)
		}
	}

	return append(messages, llms.User(req.Query))
}

// fitHistory trims stored messages to the configured token budget, keeping
// the most recent exchanges.
func (s *ChatStrategy) fitHistory(past []llms.Message) []llms.Message {
	if s.cfg == nil || s.cfg.MaxTokens <= 0 {
		return past
	}

	countable := make([]utils.Message, len(past))
	for i, msg := range past {
		countable[i] = utils.Message{Role: string(msg.Role), Content: msg.Content}
	}

	fitted := s.counter.FitWithinLimit(countable, s.cfg.MaxTokens)

	out := make([]llms.Message, len(fitted))
	for i, msg := range fitted {
		out[i] = llms.Message{Role: llms.Role(msg.Role), Content: msg.Content}
	}
	return out
}

// remember is best-effort; a store failure never fails the exchange.
func (s *ChatStrategy) remember(ctx context.Context, conversationID, query, reply string) {
	if s.store == nil || conversationID == "" {
		return
	}
	if err := s.store.Append(ctx, conversationID, llms.User(query), llms.Assistant(reply)); err != nil {
		s.logger.Warn("history append failed", "conversation_id", conversationID, "error", err)
	}
}

var _ Strategy = (*ChatStrategy)(nil)
