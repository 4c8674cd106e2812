// Package demo serves the anonymous coaching demo: per-session interaction
// budgets, the variant catalog and the HTTP/WebSocket surface.
package demo

import "sync"

// Default interaction budget for an anonymous session.
const (
	DefaultSuggestionLimit = 2
	DefaultInputLimit      = 3
)

// Gate counts successful exchanges in one session and decides what the
// visitor may still do. It is safe for concurrent use.
type Gate struct {
	mu              sync.Mutex
	count           int
	suggestionLimit int
	inputLimit      int
}

// NewGate returns a gate with the given limits. Non-positive limits fall
// back to the defaults.
func NewGate(suggestionLimit, inputLimit int) *Gate {
	if suggestionLimit <= 0 {
		suggestionLimit = DefaultSuggestionLimit
	}
	if inputLimit <= 0 {
		inputLimit = DefaultInputLimit
	}
	return &Gate{suggestionLimit: suggestionLimit, inputLimit: inputLimit}
}

// ShouldShowSuggestions reports whether follow-up suggestions are still offered.
func (g *Gate) ShouldShowSuggestions() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count < g.suggestionLimit
}

// ShouldAllowInput reports whether the visitor may send another message.
// Once false the session must be redirected to signup.
func (g *Gate) ShouldAllowInput() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count < g.inputLimit
}

// RecordInteraction counts one successful exchange and returns the new total.
func (g *Gate) RecordInteraction() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	return g.count
}

// Count returns the number of recorded exchanges.
func (g *Gate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Limits returns the suggestion and input limits.
func (g *Gate) Limits() (suggestions, input int) {
	return g.suggestionLimit, g.inputLimit
}
