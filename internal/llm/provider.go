// Package llm holds the model-provider backends and the streaming
// contract the agent engine consumes. The engine never sees a wire
// protocol: providers surface everything as Message in, StreamChunk out.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zcode-dev/agentcore/internal/config"
)

// Message represents a chat message
type Message struct {
	Role       string           `json:"role"` // "user", "assistant", "system", "tool"
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`         // Tool name for tool result messages
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`   // For assistant messages with tool calls
	ToolCallID string           `json:"tool_call_id,omitempty"` // For tool result messages
}

// StreamChunk represents a piece of streaming output
type StreamChunk struct {
	Text     string // Text content
	Thinking bool   // True if Text is reasoning content rather than answer text
	Done     bool   // True if this is the final chunk
	Error    error  // Error if any
}

// Provider is the interface for LLM backends
type Provider interface {
	// Generate produces a response given messages
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStream produces a streaming response
	GenerateStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)
}

// streamTimeout returns the per-request streaming timeout: the
// configured stream_timeout_seconds, or 5 minutes.
func streamTimeout() time.Duration {
	if s := config.Get().StreamTimeoutSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return 5 * time.Minute
}

// New constructs the provider named by providerName. model may be empty,
// in which case each provider picks its own default.
func New(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "", "claude", "anthropic":
		return NewAnthropic(model), nil
	case "openai":
		return NewOpenAI(model), nil
	case "openrouter":
		return NewOpenRouter(model), nil
	case "litellm":
		return NewLiteLLM(model), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want claude, openai, openrouter, or litellm)", providerName)
	}
}
