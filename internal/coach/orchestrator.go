package coach

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_collaborators.go -package=mocks github.com/wolfman30/coach-ai-platform/internal/coach Completer,RateLimiter

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

// Rate limiter categories consulted before each orchestrated call.
const (
	CategoryDemo = "demo"
	CategoryChat = "chat"
)

const (
	// DefaultMaxAttempts is one initial attempt plus two retries.
	DefaultMaxAttempts = 3

	msgEmptyContent  = "Message content cannot be empty"
	msgInvalidConfig = "Invalid demo configuration"
	msgEmptyResponse = "The coach didn't come up with a reply. Please try rephrasing your message."
)

// DefaultBackoff is the wait after attempt 1 and attempt 2 respectively.
var DefaultBackoff = []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}

var tracer = otel.Tracer("coach.internal.coach")

// CompletionRequest is everything the completion collaborator needs for one call.
type CompletionRequest struct {
	Messages     []ChatMessage
	Context      *UserContext
	Profile      *Profile
	Preferences  *Preferences
	MessageCount int
	IsPremium    bool
}

// Completer is the LLM boundary. Failures should be *chaterr.Error values so
// the retry policy can classify them; untyped errors are never retried.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RateLimiter throttles calls per key and category. Any error aborts the call.
type RateLimiter interface {
	CheckLimit(ctx context.Context, key, category string) error
}

type sleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts overrides the total attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoff overrides the delay schedule between attempts.
func WithBackoff(delays ...time.Duration) Option {
	return func(s *Service) {
		s.backoff = append([]time.Duration(nil), delays...)
	}
}

// WithSleeper replaces the context-aware sleep used between attempts.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *metrics.CoachMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger overrides the logger passed to NewService.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service orchestrates validated, rate-limited, retried completions and
// turns the reply into a DemoResponse.
type Service struct {
	completer   Completer
	limiter     RateLimiter
	logger      *logging.Logger
	metrics     *metrics.CoachMetrics
	maxAttempts int
	backoff     []time.Duration
	sleep       sleepFunc
}

// NewService wires the orchestrator. A nil limiter disables throttling.
func NewService(completer Completer, limiter RateLimiter, logger *logging.Logger, opts ...Option) *Service {
	if completer == nil {
		panic("coach: completer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		completer:   completer,
		limiter:     limiter,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetDemoResponse answers one anonymous demo message. sessionKey identifies
// the demo session to the rate limiter.
func (s *Service) GetDemoResponse(ctx context.Context, sessionKey, content string, cfg DemoConfig, history []ChatMessage) (*DemoResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, chaterr.New(chaterr.KindInvalidRequest, msgEmptyContent)
	}
	if !cfg.Complete() {
		return nil, chaterr.New(chaterr.KindInvalidRequest, msgInvalidConfig)
	}
	if err := cfg.Preferences.Validate(); err != nil {
		return nil, chaterr.Wrap(chaterr.KindInvalidRequest, msgInvalidConfig, err)
	}

	req := CompletionRequest{
		Messages:     buildMessages(cfg.SystemPrompt, history, content),
		Context:      cfg.Context,
		Profile:      nil,
		Preferences:  cfg.Preferences,
		MessageCount: 0,
		IsPremium:    false,
	}
	return s.respond(ctx, CategoryDemo, sessionKey, req, content)
}

// CoachRequest is an authenticated member's chat turn.
type CoachRequest struct {
	Content      string
	History      []ChatMessage
	Profile      *Profile
	SystemPrompt string
	Preferences  *Preferences
	Context      *UserContext
}

// GetCoachResponse runs the same pipeline for a signed-in member, passing
// the member's profile, message count and subscription tier through.
func (s *Service) GetCoachResponse(ctx context.Context, req CoachRequest) (*DemoResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, chaterr.New(chaterr.KindInvalidRequest, msgEmptyContent)
	}
	if req.Profile == nil || strings.TrimSpace(req.Profile.ID) == "" {
		return nil, chaterr.New(chaterr.KindInvalidRequest, "A member profile is required")
	}
	prefs := req.Preferences
	if prefs == nil {
		prefs = &DefaultPreferences
	}
	if err := prefs.Validate(); err != nil {
		return nil, chaterr.Wrap(chaterr.KindInvalidRequest, "Invalid chat preferences", err)
	}
	system := req.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = MemberSystemPrompt
	}
	userCtx := req.Context
	if userCtx == nil {
		userCtx = &UserContext{Name: req.Profile.DisplayName, Type: "member", Goals: req.Profile.Goals}
	}

	creq := CompletionRequest{
		Messages:     buildMessages(system, req.History, req.Content),
		Context:      userCtx,
		Profile:      req.Profile,
		Preferences:  prefs,
		MessageCount: req.Profile.MessageCount,
		IsPremium:    req.Profile.Premium,
	}
	return s.respond(ctx, CategoryChat, req.Profile.ID, creq, req.Content)
}

func (s *Service) respond(ctx context.Context, category, key string, req CompletionRequest, trigger string) (*DemoResponse, error) {
	ctx, span := tracer.Start(ctx, "coach.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("coach.category", category),
		attribute.Int("coach.history_messages", len(req.Messages)),
		attribute.Bool("coach.premium", req.IsPremium),
	)

	start := time.Now()
	status := "ok"
	defer func() {
		s.metrics.ObserveResponse(category, status, time.Since(start).Seconds())
	}()

	if s.limiter != nil {
		if err := s.limiter.CheckLimit(ctx, key, category); err != nil {
			ce := asChatError(err)
			status = string(ce.Kind)
			span.RecordError(err)
			s.logger.Warn("coach: rate limiter rejected call", "category", category, "kind", ce.Kind, "error", err)
			return nil, ce
		}
	}

	text, err := s.completeWithRetry(ctx, category, req)
	if err != nil {
		ce := asChatError(err)
		status = string(ce.Kind)
		span.RecordError(err)
		return nil, ce
	}

	suggestions, source := extractSuggestions(text, trigger)
	s.metrics.ObserveSuggestions(string(source), len(suggestions))
	span.SetAttributes(
		attribute.String("coach.suggestion_source", string(source)),
		attribute.Int("coach.suggestions", len(suggestions)),
	)
	s.logger.Debug("coach: response assembled",
		"category", category,
		"suggestion_source", source,
		"suggestions", len(suggestions),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &DemoResponse{Message: text, Suggestions: suggestions}, nil
}

func (s *Service) completeWithRetry(ctx context.Context, category string, req CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		text, err := s.attempt(ctx, category, req, attempt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		kind, typed := chaterr.KindOf(err)
		if !typed || !kind.Retryable() || attempt == s.maxAttempts {
			break
		}

		delay := s.delayAfter(attempt)
		s.metrics.ObserveRetry(string(kind))
		s.logger.Warn("coach: completion failed, retrying",
			"category", category,
			"attempt", attempt,
			"kind", kind,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := s.sleep(ctx, delay); err != nil {
			s.logger.Info("coach: retry abandoned", "category", category, "attempt", attempt, "error", err)
			break
		}
	}
	return "", lastErr
}

func (s *Service) attempt(ctx context.Context, category string, req CompletionRequest, attempt int) (string, error) {
	ctx, span := tracer.Start(ctx, "coach.completion_attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("coach.attempt", attempt)),
	)
	defer span.End()

	text, err := s.completer.Complete(ctx, req)
	if err == nil && strings.TrimSpace(text) == "" {
		err = chaterr.New(chaterr.KindEmptyResponse, msgEmptyResponse)
	}
	if err != nil {
		outcome := "untyped"
		if kind, ok := chaterr.KindOf(err); ok {
			outcome = string(kind)
		}
		s.metrics.ObserveAttempt(category, outcome)
		span.RecordError(err)
		span.SetAttributes(attribute.String("coach.outcome", outcome))
		return "", err
	}
	s.metrics.ObserveAttempt(category, "ok")
	return text, nil
}

// WorstCaseLatency is the longest one call can run when every attempt uses
// its full callTimeout and every backoff is slept.
func (s *Service) WorstCaseLatency(callTimeout time.Duration) time.Duration {
	total := time.Duration(s.maxAttempts) * callTimeout
	for attempt := 1; attempt < s.maxAttempts; attempt++ {
		total += s.delayAfter(attempt)
	}
	return total
}

func (s *Service) delayAfter(attempt int) time.Duration {
	if len(s.backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(s.backoff) {
		idx = len(s.backoff) - 1
	}
	return s.backoff[idx]
}

// buildMessages assembles system prompt, prior turns and the new user turn.
func buildMessages(systemPrompt string, history []ChatMessage, content string) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: strings.TrimSpace(systemPrompt)})
	messages = append(messages, history...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: strings.TrimSpace(content)})
	return messages
}

// asChatError keeps typed errors as-is and wraps anything else as service_error.
func asChatError(err error) *chaterr.Error {
	if ce, ok := chaterr.As(err); ok {
		return ce
	}
	return chaterr.Wrap(chaterr.KindServiceError, err.Error(), err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
