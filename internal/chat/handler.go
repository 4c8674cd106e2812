// Package chat serves the signed-in member's coaching conversation.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	"github.com/wolfman30/coach-ai-platform/internal/http/middleware"
	"github.com/wolfman30/coach-ai-platform/internal/profiles"
	"github.com/wolfman30/coach-ai-platform/internal/render"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

const (
	maxContentBytes = 4000
	maxHistory      = 40
)

// ProfileStore loads profiles and records member usage.
type ProfileStore interface {
	GetByID(ctx context.Context, id string) (*coach.Profile, error)
	IncrementMessageCount(ctx context.Context, id string) (int, error)
}

// Coach answers a member's chat turn.
type Coach interface {
	GetCoachResponse(ctx context.Context, req coach.CoachRequest) (*coach.DemoResponse, error)
}

// Handler serves POST /api/chat.
type Handler struct {
	profiles ProfileStore
	coach    Coach
	markdown *render.Markdown
	logger   *logging.Logger
}

func NewHandler(store ProfileStore, svc Coach, logger *logging.Logger) *Handler {
	if store == nil || svc == nil {
		panic("chat: profile store and coach are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{profiles: store, coach: svc, markdown: render.NewMarkdown(), logger: logger}
}

// Request is one member turn. History is the client-held transcript.
type Request struct {
	Content     string              `json:"content"`
	History     []coach.ChatMessage `json:"history"`
	Preferences *coach.Preferences  `json:"preferences,omitempty"`
}

// Response is the coach's answer to one member turn.
type Response struct {
	Message      string                     `json:"message"`
	MessageHTML  string                     `json:"message_html"`
	Suggestions  []coach.FollowUpSuggestion `json:"suggestions"`
	MessageCount int                        `json:"message_count"`
	Premium      bool                       `json:"premium"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handle answers one chat turn for the authenticated member.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	profileID := middleware.ProfileIDFromContext(r.Context())
	if profileID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Sign in to chat with your coach", Code: "unauthorized"})
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Code: string(chaterr.KindInvalidRequest)})
		return
	}
	if msg := validate(req); msg != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: string(chaterr.KindInvalidRequest)})
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), profileID)
	if err != nil {
		if errors.Is(err, profiles.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "Profile not found", Code: "profile_not_found"})
			return
		}
		h.logger.Error("chat: profile lookup failed", "profile_id", profileID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Something went wrong. Please try again.", Code: string(chaterr.KindUnknown)})
		return
	}

	resp, err := h.coach.GetCoachResponse(r.Context(), coach.CoachRequest{
		Content:     req.Content,
		History:     req.History,
		Profile:     profile,
		Preferences: req.Preferences,
	})
	if err != nil {
		h.writeChatError(w, profileID, err)
		return
	}

	count := profile.MessageCount + 1
	if n, err := h.profiles.IncrementMessageCount(r.Context(), profileID); err != nil {
		h.logger.Warn("chat: increment message count failed", "profile_id", profileID, "error", err)
	} else {
		count = n
	}

	message := coach.StripSuggestions(resp.Message)
	html, err := h.markdown.HTML(message)
	if err != nil {
		h.logger.Warn("chat: markdown render failed", "error", err)
	}
	suggestions := resp.Suggestions
	if suggestions == nil {
		suggestions = []coach.FollowUpSuggestion{}
	}

	h.logger.Info("chat: reply sent",
		"profile_id", profileID,
		"message_count", count,
		"premium", profile.Premium,
		"suggestions", len(suggestions),
	)
	writeJSON(w, http.StatusOK, Response{
		Message:      message,
		MessageHTML:  html,
		Suggestions:  suggestions,
		MessageCount: count,
		Premium:      profile.Premium,
	})
}

func validate(req Request) string {
	if strings.TrimSpace(req.Content) == "" {
		return "Message content cannot be empty"
	}
	if len(req.Content) > maxContentBytes {
		return "Message is too long"
	}
	if len(req.History) > maxHistory {
		return "Conversation history is too long"
	}
	for _, m := range req.History {
		if m.Role != coach.RoleUser && m.Role != coach.RoleAssistant {
			return "History may only contain user and assistant messages"
		}
	}
	return ""
}

func (h *Handler) writeChatError(w http.ResponseWriter, profileID string, err error) {
	ce, ok := chaterr.As(err)
	if !ok {
		h.logger.Error("chat: untyped coach error", "profile_id", profileID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Something went wrong. Please try again.", Code: string(chaterr.KindUnknown)})
		return
	}
	h.logger.Warn("chat: coach failed", "profile_id", profileID, "kind", ce.Kind, "error", err)
	writeJSON(w, chaterr.HTTPStatus(ce.Kind), errorBody{Error: ce.Error(), Code: string(ce.Kind)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
