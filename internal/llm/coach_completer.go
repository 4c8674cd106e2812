package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	"github.com/wolfman30/coach-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

var llmTracer = otel.Tracer("coach.internal.llm")

// DefaultCallTimeout bounds a provider call when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

const defaultTemperature = 0.7

// CoachCompleter turns a coach.CompletionRequest into a provider call and
// classifies every failure as a chaterr.Error.
type CoachCompleter struct {
	client      LLMClient
	model       string
	timeout     time.Duration
	temperature float32
	metrics     *metrics.LLMMetrics
	logger      *logging.Logger
}

// CompleterOption configures a CoachCompleter.
type CompleterOption func(*CoachCompleter)

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) CompleterOption {
	return func(c *CoachCompleter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTemperature overrides the sampling temperature. Negative omits it.
func WithTemperature(t float32) CompleterOption {
	return func(c *CoachCompleter) {
		c.temperature = t
	}
}

// WithLLMMetrics attaches latency and token metrics.
func WithLLMMetrics(m *metrics.LLMMetrics) CompleterOption {
	return func(c *CoachCompleter) {
		c.metrics = m
	}
}

func NewCoachCompleter(client LLMClient, model string, logger *logging.Logger, opts ...CompleterOption) *CoachCompleter {
	if client == nil {
		panic("llm: client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &CoachCompleter{
		client:      client,
		model:       model,
		timeout:     DefaultCallTimeout,
		temperature: defaultTemperature,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete satisfies coach.Completer.
func (c *CoachCompleter) Complete(ctx context.Context, req coach.CompletionRequest) (string, error) {
	ctx, span := llmTracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Bool("coach.premium", req.IsPremium),
	)

	system, messages := splitMessages(req.Messages)
	llmReq := LLMRequest{
		Model:       c.model,
		System:      append(system, BuildSystemAddendum(req)),
		Messages:    messages,
		MaxTokens:   maxTokensFor(req.Preferences, req.IsPremium),
		Temperature: c.temperature,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(callCtx, llmReq)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		ce := ClassifyError(err)
		c.metrics.ObserveLatency(c.model, string(ce.Kind), elapsed)
		span.RecordError(err)
		span.SetAttributes(attribute.String("llm.error_kind", string(ce.Kind)))
		c.logger.Warn("llm: completion failed", "model", c.model, "kind", ce.Kind, "error", err)
		return "", ce
	}

	c.metrics.ObserveLatency(c.model, "ok", elapsed)
	c.metrics.ObserveTokens(c.model, resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("llm.provider", resp.Provider),
			attribute.String("llm.stop_reason", resp.StopReason),
			attribute.Int("llm.output_tokens", int(resp.Usage.OutputTokens)),
		)
	}

	if strings.TrimSpace(resp.Text) == "" {
		return "", chaterr.New(chaterr.KindEmptyResponse, msgEmptyResponse)
	}
	return resp.Text, nil
}

// splitMessages separates system prompts from the conversation turns.
func splitMessages(in []coach.ChatMessage) ([]string, []ChatMessage) {
	var system []string
	out := make([]ChatMessage, 0, len(in))
	for _, m := range in {
		if m.Role == coach.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		out = append(out, ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return system, out
}

func maxTokensFor(prefs *coach.Preferences, premium bool) int32 {
	tokens := int32(600)
	if prefs != nil {
		switch prefs.Length {
		case coach.LengthShort:
			tokens = 300
		case coach.LengthLong:
			tokens = 1000
		}
	}
	if premium {
		tokens += tokens / 2
	}
	return tokens
}

var toneGuidance = map[coach.Tone]string{
	coach.ToneSupportive: "Be warm and encouraging.",
	coach.ToneDirect:     "Be candid and get to the point.",
	coach.TonePlayful:    "Keep it light and playful, with a touch of humor.",
	coach.ToneEmpathetic: "Lead with empathy and validate feelings before advising.",
}

var lengthGuidance = map[coach.Length]string{
	coach.LengthShort:  "Keep replies to two or three sentences.",
	coach.LengthMedium: "Keep replies to a short paragraph or two.",
	coach.LengthLong:   "Detailed replies are welcome when useful.",
}

var styleGuidance = map[coach.Style]string{
	coach.StyleConversational: "Write like a friend texting back.",
	coach.StyleStructured:     "Use short bullet points for steps.",
	coach.StyleCoaching:       "End with a question that helps them reflect.",
}

const suggestionTagInstruction = `After your reply, include up to three follow-up questions the user might ask next as a JSON array of {"text","description"} objects inside <suggestions></suggestions> tags.`

// BuildSystemAddendum describes the user, their preferences and tier so the
// provider can tailor the reply. The caller's system prompt stays first.
func BuildSystemAddendum(req coach.CompletionRequest) string {
	var b strings.Builder

	if uc := req.Context; uc != nil {
		if uc.Name != "" || uc.Type != "" {
			fmt.Fprintf(&b, "You are talking with %s", orDefault(uc.Name, "someone"))
			if uc.Type != "" {
				fmt.Fprintf(&b, " (%s)", uc.Type)
			}
			b.WriteString(".\n")
		}
		if len(uc.Interests) > 0 {
			fmt.Fprintf(&b, "Interests: %s.\n", strings.Join(uc.Interests, ", "))
		}
		if len(uc.Goals) > 0 {
			fmt.Fprintf(&b, "Goals: %s.\n", strings.Join(uc.Goals, ", "))
		}
	}

	if p := req.Profile; p != nil {
		if p.RelationshipStatus != "" {
			fmt.Fprintf(&b, "Relationship status: %s.\n", p.RelationshipStatus)
		}
		if req.MessageCount > 0 {
			fmt.Fprintf(&b, "They have sent %d messages to you before; build on earlier advice rather than repeating basics.\n", req.MessageCount)
		}
		if req.IsPremium {
			b.WriteString("They are a premium member: multi-step plans and deeper follow-up are appropriate.\n")
		} else {
			b.WriteString("They are on the free plan: focus on the single most useful next step.\n")
		}
	}

	if prefs := req.Preferences; prefs != nil {
		for _, line := range []string{toneGuidance[prefs.Tone], lengthGuidance[prefs.Length], styleGuidance[prefs.Style]} {
			if line != "" {
				b.WriteString(line)
				b.WriteString("\n")
			}
		}
	}

	if !mentionsSuggestionTag(req.Messages) {
		b.WriteString(suggestionTagInstruction)
	}
	return strings.TrimSpace(b.String())
}

func mentionsSuggestionTag(msgs []coach.ChatMessage) bool {
	for _, m := range msgs {
		if m.Role == coach.RoleSystem && strings.Contains(strings.ToLower(m.Content), "<suggestions>") {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
