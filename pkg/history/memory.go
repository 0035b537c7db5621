package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/benekli/minerva/pkg/llms"
)

// MemoryStore keeps conversations in process memory. Useful for single-node
// deployments and tests; nothing survives a restart.
type MemoryStore struct {
	conversations map[string][]llms.Message
	maxMessages   int
	mu            sync.RWMutex
}

// NewMemoryStore creates the store. maxMessages <= 0 disables trimming.
func NewMemoryStore(maxMessages int) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]llms.Message),
		maxMessages:   maxMessages,
	}
}

func (s *MemoryStore) Get(_ context.Context, conversationID string, limit int) ([]llms.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversationID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := s.conversations[conversationID]
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	// Copy so callers never alias the stored slice.
	out := make([]llms.Message, len(messages))
	copy(out, messages)
	return out, nil
}

func (s *MemoryStore) Append(_ context.Context, conversationID string, messages ...llms.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := append(s.conversations[conversationID], messages...)
	if s.maxMessages > 0 && len(stored) > s.maxMessages {
		stored = stored[len(stored)-s.maxMessages:]
	}
	s.conversations[conversationID] = stored

	return nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make(map[string][]llms.Message)
	return nil
}

var _ Store = (*MemoryStore)(nil)
