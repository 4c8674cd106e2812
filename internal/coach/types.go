// Package coach holds the relationship-coaching chat pipeline: message
// assembly, completion with retries, and follow-up suggestion extraction.
package coach

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ChatMessage is one turn of a conversation. Order is significant.
type ChatMessage struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Tone, Length and Style are closed enumerations for response preferences.
type (
	Tone   string
	Length string
	Style  string
)

const (
	ToneSupportive Tone = "supportive"
	ToneDirect     Tone = "direct"
	TonePlayful    Tone = "playful"
	ToneEmpathetic Tone = "empathetic"

	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"

	StyleConversational Style = "conversational"
	StyleStructured     Style = "structured"
	StyleCoaching       Style = "coaching"
)

// Preferences shapes how the coach answers.
type Preferences struct {
	Tone   Tone   `json:"tone" yaml:"tone"`
	Length Length `json:"length" yaml:"length"`
	Style  Style  `json:"style" yaml:"style"`
}

// Validate checks every field against its enumeration.
func (p Preferences) Validate() error {
	var errs []error
	switch p.Tone {
	case ToneSupportive, ToneDirect, TonePlayful, ToneEmpathetic:
	default:
		errs = append(errs, fmt.Errorf("unknown tone %q", p.Tone))
	}
	switch p.Length {
	case LengthShort, LengthMedium, LengthLong:
	default:
		errs = append(errs, fmt.Errorf("unknown length %q", p.Length))
	}
	switch p.Style {
	case StyleConversational, StyleStructured, StyleCoaching:
	default:
		errs = append(errs, fmt.Errorf("unknown style %q", p.Style))
	}
	return errors.Join(errs...)
}

// UserContext describes who the coach is talking to in a given variant.
type UserContext struct {
	Name      string   `json:"name" yaml:"name"`
	Type      string   `json:"type" yaml:"type"`
	Interests []string `json:"interests" yaml:"interests"`
	Goals     []string `json:"goals" yaml:"goals"`
}

// DemoConfig is the read-only configuration of one demo variant.
// Nil Preferences or Context mean the configuration is incomplete.
type DemoConfig struct {
	SystemPrompt string       `json:"system_prompt" yaml:"system_prompt"`
	Preferences  *Preferences `json:"preferences" yaml:"preferences"`
	Context      *UserContext `json:"context" yaml:"context"`
}

// Complete reports whether all required parts are present.
func (c DemoConfig) Complete() bool {
	return strings.TrimSpace(c.SystemPrompt) != "" && c.Preferences != nil && c.Context != nil
}

// Profile is an authenticated member's coaching profile. Demo sessions have none.
type Profile struct {
	ID                 string   `json:"id"`
	DisplayName        string   `json:"display_name"`
	RelationshipStatus string   `json:"relationship_status"`
	Goals              []string `json:"goals"`
	MessageCount       int      `json:"message_count"`
	Premium            bool     `json:"premium"`
}

// Icon is the visual category of a follow-up suggestion.
type Icon string

const (
	IconProfile    Icon = "profile"
	IconMessage    Icon = "message"
	IconDate       Icon = "date"
	IconConfidence Icon = "confidence"
	IconStrategy   Icon = "strategy"
)

// FollowUpSuggestion is a clickable prompt offered after a reply.
type FollowUpSuggestion struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Icon        Icon   `json:"icon"`
}

// DemoResponse is the result of one orchestrated call.
type DemoResponse struct {
	Message     string               `json:"message"`
	Suggestions []FollowUpSuggestion `json:"suggestions"`
}
