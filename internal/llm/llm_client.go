// Package llm adapts vendor completion APIs to the coach pipeline.
package llm

import (
	"context"
	"strings"
)

// Roles understood by every adapter. System messages inside Messages are
// folded into the provider's system prompt.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is the vendor-neutral message shape sent to an LLMClient.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is one completion call. System prompts are sent in order
// before the conversation; a negative Temperature leaves the provider
// default in place and a zero TopP or MaxTokens is omitted.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// LastUserMessage returns the most recent non-blank user turn, trimmed.
func (r LLMRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role != ChatRoleUser {
			continue
		}
		if text := strings.TrimSpace(r.Messages[i].Content); text != "" {
			return text
		}
	}
	return ""
}

// LLMResponse is the tagged result every adapter returns, so callers never
// inspect vendor response objects.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
	Provider   string
}

// LLMClient is implemented by each provider adapter. Errors are returned
// raw; CoachCompleter classifies them.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
