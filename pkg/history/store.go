// Package history stores conversation transcripts keyed by conversation ID.
// The chat strategy folds stored turns back into prompts; everything else
// only appends.
package history

import (
	"context"
	"fmt"

	"github.com/benekli/minerva/pkg/config"
	"github.com/benekli/minerva/pkg/llms"
)

// Store persists conversation messages.
type Store interface {
	// Get returns up to limit most recent messages in chronological order.
	// limit <= 0 returns everything retained.
	Get(ctx context.Context, conversationID string, limit int) ([]llms.Message, error)

	// Append adds messages to the conversation, trimming the oldest ones
	// past the retention cap.
	Append(ctx context.Context, conversationID string, messages ...llms.Message) error

	// Clear removes the conversation.
	Clear(ctx context.Context, conversationID string) error

	Close() error
}

// NewStore builds the configured backend.
func NewStore(cfg *config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(cfg.MaxMessages), nil
	case "sql":
		return NewSQLStore(cfg.SQL, cfg.MaxMessages)
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
