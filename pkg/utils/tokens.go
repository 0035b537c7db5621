// Package utils provides shared helpers: token accounting, lenient JSON
// extraction from model output, and filesystem paths.
package utils

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter handles accurate token counting per model.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// Message represents a message for token counting.
type Message struct {
	Role    string
	Content string
}

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter creates a counter for a specific model. Unknown models
// fall back to the cl100k_base encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()

	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessages counts tokens in a message list including per-message role
// overhead, following the OpenAI chat token accounting format.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	tokensPerMessage := 3 // <|start|>role|message<|end|>

	totalTokens := 0
	for _, msg := range messages {
		totalTokens += tokensPerMessage
		totalTokens += len(tc.encoding.Encode(msg.Role, nil, nil))
		totalTokens += len(tc.encoding.Encode(msg.Content, nil, nil))
	}

	// Every reply is primed with <|start|>assistant<|message|>
	totalTokens += 3

	return totalTokens
}

// FitWithinLimit returns the suffix of messages that fits within the token
// budget, selected from most recent backwards. A leading system message is
// always preserved and counted against the budget first.
func (tc *TokenCounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	currentTokens := 3 // reply priming

	var system *Message
	rest := messages
	if messages[0].Role == "system" {
		system = &messages[0]
		rest = messages[1:]
		currentTokens += tc.CountMessages([]Message{*system}) - 3
	}

	fitted := []Message{}
	for i := len(rest) - 1; i >= 0; i-- {
		msgTokens := tc.CountMessages([]Message{rest[i]}) - 3
		if currentTokens+msgTokens > maxTokens {
			break
		}
		fitted = append([]Message{rest[i]}, fitted...)
		currentTokens += msgTokens
	}

	if system != nil {
		fitted = append([]Message{*system}, fitted...)
	}
	return fitted
}

// GetModel returns the model name this counter is configured for.
func (tc *TokenCounter) GetModel() string {
	return tc.model
}

// EstimateTokens provides a rough token estimation for callers that have no
// counter at hand (4 characters per token).
func EstimateTokens(text string) int {
	return len(text) / 4
}
