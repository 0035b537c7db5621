package llms

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of LLM input or output. An ordered []Message is the
// unit of completion input.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Options tunes one completion request. Zero values defer to the provider's
// configured defaults.
type Options struct {
	// Temperature overrides the provider's sampling temperature.
	Temperature *float64

	// MaxTokens overrides the provider's response length cap.
	MaxTokens int

	// PreferredProvider names the provider the manager should try first.
	// Unknown names are ignored and the normal fallback order applies.
	PreferredProvider string

	// ResponseFormat hints the expected output shape. "json" asks the
	// provider for a JSON object where the wire protocol supports it.
	ResponseFormat string
}

// Usage reports token consumption for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
