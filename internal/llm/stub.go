package llm

import (
	"context"
	"fmt"
)

// StubLLMClient returns a canned coaching reply. It is wired when no
// provider is configured so the demo works in local development.
type StubLLMClient struct{}

func NewStubLLMClient() *StubLLMClient {
	return &StubLLMClient{}
}

func (StubLLMClient) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	last := req.LastUserMessage()
	if last == "" {
		last = "your dating life"
	}
	if r := []rune(last); len(r) > 80 {
		last = string(r[:80]) + "..."
	}

	text := fmt.Sprintf(`<suggestions>[{"text":"Tell me about your goals","description":"Share what you're looking for"},{"text":"Help me write a first message","description":"Craft an opener that gets replies"}]</suggestions>
Thanks for sharing. You asked about **%s**. Start small: pick one concrete step you can take this week, and we'll build from there.`, last)

	return LLMResponse{
		Text:       text,
		StopReason: "end_turn",
		Provider:   "stub",
	}, nil
}
