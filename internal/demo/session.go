package demo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/coach-ai-platform/internal/coach"
	"github.com/wolfman30/coach-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

var (
	// ErrSignupRequired means the session spent its free budget.
	ErrSignupRequired = errors.New("demo: free interactions used up, signup required")
	// ErrExchangeInProgress means another message for the session is still being answered.
	ErrExchangeInProgress = errors.New("demo: an exchange is already in progress for this session")
	// ErrUnknownVariant means no demo configuration exists for the requested slug.
	ErrUnknownVariant = errors.New("demo: unknown variant")
	// ErrSessionNotFound means the session id is unknown or expired.
	ErrSessionNotFound = errors.New("demo: session not found")
)

const maxHistoryMessages = 20

// Responder produces one orchestrated demo reply. *coach.Service satisfies it.
type Responder interface {
	GetDemoResponse(ctx context.Context, sessionKey, content string, cfg coach.DemoConfig, history []coach.ChatMessage) (*coach.DemoResponse, error)
}

// Session is one anonymous visitor's conversation with a demo variant.
type Session struct {
	ID      string
	Variant string
	Gate    *Gate

	cfg     coach.DemoConfig
	metrics *metrics.CoachMetrics
	now     func() time.Time

	exchange sync.Mutex

	mu       sync.Mutex
	history  []coach.ChatMessage
	lastSeen time.Time
}

// ExchangeResult is a successful reply plus the gate state after it.
type ExchangeResult struct {
	Response        *coach.DemoResponse
	Interactions    int
	ShowSuggestions bool
	AllowInput      bool
}

// Snapshot is a read-only view of the session for status endpoints.
type Snapshot struct {
	SessionID       string              `json:"session_id"`
	Variant         string              `json:"variant"`
	Interactions    int                 `json:"interactions"`
	ShowSuggestions bool                `json:"show_suggestions"`
	AllowInput      bool                `json:"allow_input"`
	History         []coach.ChatMessage `json:"history"`
}

// Exchange sends content through the responder under the session's budget.
// The responder is not called once input is closed. Only a successful reply
// is counted and appended to history.
func (s *Session) Exchange(ctx context.Context, responder Responder, content string) (*ExchangeResult, error) {
	if !s.exchange.TryLock() {
		return nil, ErrExchangeInProgress
	}
	defer s.exchange.Unlock()

	s.touch()
	if !s.Gate.ShouldAllowInput() {
		s.metrics.ObserveGate("signup_required")
		return nil, ErrSignupRequired
	}
	showSuggestions := s.Gate.ShouldShowSuggestions()

	resp, err := responder.GetDemoResponse(ctx, s.ID, content, s.cfg, s.History())
	if err != nil {
		return nil, err
	}

	count := s.Gate.RecordInteraction()
	s.appendTurns(
		coach.ChatMessage{Role: coach.RoleUser, Content: strings.TrimSpace(content)},
		coach.ChatMessage{Role: coach.RoleAssistant, Content: coach.StripSuggestions(resp.Message)},
	)

	if showSuggestions {
		s.metrics.ObserveGate("allowed")
	} else {
		s.metrics.ObserveGate("suggestions_hidden")
		resp.Suggestions = []coach.FollowUpSuggestion{}
	}

	return &ExchangeResult{
		Response:        resp,
		Interactions:    count,
		ShowSuggestions: showSuggestions,
		AllowInput:      s.Gate.ShouldAllowInput(),
	}, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []coach.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coach.ChatMessage(nil), s.history...)
}

// Snapshot reports the session's current state.
func (s *Session) Snapshot() Snapshot {
	history := s.History()
	if history == nil {
		history = []coach.ChatMessage{}
	}
	return Snapshot{
		SessionID:       s.ID,
		Variant:         s.Variant,
		Interactions:    s.Gate.Count(),
		ShowSuggestions: s.Gate.ShouldShowSuggestions(),
		AllowInput:      s.Gate.ShouldAllowInput(),
		History:         history,
	}
}

func (s *Session) appendTurns(turns ...coach.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
	if over := len(s.history) - maxHistoryMessages; over > 0 {
		s.history = append([]coach.ChatMessage(nil), s.history[over:]...)
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// RegistryConfig holds the session limits applied to new sessions.
type RegistryConfig struct {
	SuggestionLimit int
	InputLimit      int
	TTL             time.Duration
}

// Registry keeps live demo sessions in memory and evicts idle ones.
type Registry struct {
	catalog *Catalog
	cfg     RegistryConfig
	metrics *metrics.CoachMetrics
	logger  *logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry over the variant catalog.
func NewRegistry(catalog *Catalog, cfg RegistryConfig, m *metrics.CoachMetrics, logger *logging.Logger) *Registry {
	if catalog == nil {
		panic("demo: catalog cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	return &Registry{
		catalog:  catalog,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func sessionKey(variant, id string) string {
	return variant + ":" + id
}

// Open returns the session for (variant, id), creating it when id is empty
// or unknown. A new session gets a fresh id when none was supplied.
func (r *Registry) Open(variant, id string) (*Session, error) {
	cfg, ok := r.catalog.Lookup(variant)
	if !ok {
		return nil, ErrUnknownVariant
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey(variant, id)
	if s, ok := r.sessions[key]; ok {
		return s, nil
	}
	s := &Session{
		ID:       id,
		Variant:  variant,
		Gate:     NewGate(r.cfg.SuggestionLimit, r.cfg.InputLimit),
		cfg:      cfg,
		metrics:  r.metrics,
		now:      r.now,
		lastSeen: r.now(),
	}
	r.sessions[key] = s
	r.logger.Debug("demo: session opened", "variant", variant, "session_id", id)
	return s, nil
}

// Get looks up an existing session without creating one.
func (r *Registry) Get(variant, id string) (*Session, error) {
	if _, ok := r.catalog.Lookup(variant); !ok {
		return nil, ErrUnknownVariant
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionKey(variant, id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the TTL and returns how many were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.TTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			delete(r.sessions, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle sessions on interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("demo: evicted idle sessions", "count", n, "remaining", r.Len())
			}
		}
	}
}
