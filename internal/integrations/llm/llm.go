package llm

import (
	"context"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is the provider-agnostic chat message shape.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	StopReason string
}

// Client is implemented by every understanding-provider transport.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// MergeConsecutive joins adjacent messages of the same role and drops empty
// ones. Providers that require strictly alternating roles need this when a
// previous call failed after the user turn was recorded.
func MergeConsecutive(messages []Message) []Message {
	merged := make([]Message, 0, len(messages))
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + content
			continue
		}
		merged = append(merged, Message{Role: msg.Role, Content: content})
	}
	return merged
}
