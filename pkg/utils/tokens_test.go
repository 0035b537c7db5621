package utils

import (
	"testing"
)

func TestNewTokenCounter(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantError bool
	}{
		{
			name:      "GPT-4o model",
			model:     "gpt-4o",
			wantError: false,
		},
		{
			name:      "GPT-3.5-turbo model",
			model:     "gpt-3.5-turbo",
			wantError: false,
		},
		{
			name:      "Claude model (uses fallback)",
			model:     "claude-3-5-sonnet",
			wantError: false,
		},
		{
			name:      "Unknown model (uses fallback)",
			model:     "some-local-model",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter, err := NewTokenCounter(tt.model)
			if (err != nil) != tt.wantError {
				t.Errorf("NewTokenCounter() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && counter == nil {
				t.Error("NewTokenCounter() returned nil counter")
			}
			if counter != nil && counter.GetModel() != tt.model {
				t.Errorf("NewTokenCounter() model = %v, want %v", counter.GetModel(), tt.model)
			}
		})
	}
}

func TestTokenCounter_Count(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{
			name:      "Empty string",
			text:      "",
			minTokens: 0,
			maxTokens: 0,
		},
		{
			name:      "Simple sentence",
			text:      "Hello, world!",
			minTokens: 3,
			maxTokens: 5,
		},
		{
			name:      "Longer text",
			text:      "This is a longer sentence with more words to count tokens accurately.",
			minTokens: 12,
			maxTokens: 18,
		},
		{
			name:      "Code snippet",
			text:      "func main() { fmt.Println(\"Hello\") }",
			minTokens: 8,
			maxTokens: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := counter.Count(tt.text)
			if count < tt.minTokens || count > tt.maxTokens {
				t.Errorf("Count() = %v, want between %v and %v for text: %q",
					count, tt.minTokens, tt.maxTokens, tt.text)
			}
		})
	}
}

func TestTokenCounter_CountMessages(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	empty := counter.CountMessages([]Message{})
	if empty != 3 {
		t.Errorf("CountMessages(empty) = %v, want 3 (reply priming)", empty)
	}

	single := counter.CountMessages([]Message{
		{Role: "user", Content: "Hello"},
	})
	// 3 per-message overhead + role + content + 3 priming
	if single < 7 || single > 12 {
		t.Errorf("CountMessages(single) = %v, want between 7 and 12", single)
	}

	double := counter.CountMessages([]Message{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	})
	if double <= single {
		t.Errorf("CountMessages(two) = %v, should exceed single message count %v", double, single)
	}
}

func TestTokenCounter_FitWithinLimit(t *testing.T) {
	counter, err := NewTokenCounter("gpt-4o")
	if err != nil {
		t.Fatalf("Failed to create token counter: %v", err)
	}

	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "First question about something."},
		{Role: "assistant", Content: "First answer with some detail."},
		{Role: "user", Content: "Second question about another topic."},
		{Role: "assistant", Content: "Second answer."},
		{Role: "user", Content: "Third question, the most recent one."},
	}

	t.Run("generous budget keeps everything", func(t *testing.T) {
		fitted := counter.FitWithinLimit(messages, 10000)
		if len(fitted) != len(messages) {
			t.Errorf("FitWithinLimit() kept %v messages, want %v", len(fitted), len(messages))
		}
	})

	t.Run("tight budget preserves system message and recency", func(t *testing.T) {
		fitted := counter.FitWithinLimit(messages, 40)
		if len(fitted) == 0 {
			t.Fatal("FitWithinLimit() returned no messages")
		}
		if fitted[0].Role != "system" {
			t.Errorf("FitWithinLimit() first message role = %v, want system", fitted[0].Role)
		}
		if len(fitted) >= len(messages) {
			t.Errorf("FitWithinLimit() kept %v messages, expected truncation", len(fitted))
		}
		last := fitted[len(fitted)-1]
		if last.Content != messages[len(messages)-1].Content {
			t.Errorf("FitWithinLimit() last message = %q, want most recent %q",
				last.Content, messages[len(messages)-1].Content)
		}
	})

	t.Run("drops oldest non-system messages first", func(t *testing.T) {
		fitted := counter.FitWithinLimit(messages, 60)
		for _, msg := range fitted[1:] {
			if msg.Content == messages[1].Content && len(fitted) < len(messages) {
				t.Errorf("FitWithinLimit() kept oldest user message while truncating")
			}
		}
	})

	t.Run("empty input", func(t *testing.T) {
		fitted := counter.FitWithinLimit([]Message{}, 100)
		if len(fitted) != 0 {
			t.Errorf("FitWithinLimit(empty) = %v messages, want 0", len(fitted))
		}
	})

	t.Run("no system message", func(t *testing.T) {
		noSystem := messages[1:]
		fitted := counter.FitWithinLimit(noSystem, 10000)
		if len(fitted) != len(noSystem) {
			t.Errorf("FitWithinLimit() kept %v messages, want %v", len(fitted), len(noSystem))
		}
		if len(fitted) > 0 && fitted[0].Role == "system" {
			t.Error("FitWithinLimit() invented a system message")
		}
	})
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %v, want 0", got)
	}
	if got := EstimateTokens("12345678"); got != 2 {
		t.Errorf("EstimateTokens(8 chars) = %v, want 2", got)
	}
}
