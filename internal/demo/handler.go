package demo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/coach-ai-platform/internal/chaterr"
	"github.com/wolfman30/coach-ai-platform/internal/coach"
	"github.com/wolfman30/coach-ai-platform/internal/render"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

const maxContentBytes = 4000

// Handler serves the anonymous demo chat over HTTP and WebSocket.
type Handler struct {
	registry  *Registry
	responder Responder
	signupURL string
	markdown  *render.Markdown
	logger    *logging.Logger
}

// MessageRequest is the body of POST /api/demo/{variant}/messages.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// MessageResponse is one answered demo message.
type MessageResponse struct {
	SessionID       string                     `json:"session_id"`
	Message         string                     `json:"message"`
	MessageHTML     string                     `json:"message_html"`
	Suggestions     []coach.FollowUpSuggestion `json:"suggestions"`
	Interactions    int                        `json:"interactions"`
	ShowSuggestions bool                       `json:"show_suggestions"`
	AllowInput      bool                       `json:"allow_input"`
	SignupURL       string                     `json:"signup_url,omitempty"`
}

// ErrorResponse carries a display-ready message and a machine-readable code.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	SessionID string `json:"session_id,omitempty"`
	SignupURL string `json:"signup_url,omitempty"`
}

// NewHandler wires the demo surface. signupURL is where visitors are sent
// once the free budget is spent.
func NewHandler(registry *Registry, responder Responder, signupURL string, logger *logging.Logger) *Handler {
	if registry == nil || responder == nil {
		panic("demo: registry and responder are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(signupURL) == "" {
		signupURL = "/signup"
	}
	return &Handler{
		registry:  registry,
		responder: responder,
		signupURL: signupURL,
		markdown:  render.NewMarkdown(),
		logger:    logger,
	}
}

// Routes returns the demo endpoints, mounted under /api/demo.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/variants", h.HandleVariants)
	r.Get("/ws", h.HandleWebSocket)
	r.Post("/{variant}/messages", h.HandleMessage)
	r.Get("/{variant}/sessions/{sessionID}", h.HandleSession)
	return r
}

// HandleVariants lists the available demo variants.
func (h *Handler) HandleVariants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"variants": h.registry.catalog.Slugs()})
}

// HandleMessage answers one demo message.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")

	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: string(chaterr.KindInvalidRequest)})
		return
	}
	if len(req.Content) > maxContentBytes {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Message is too long", Code: string(chaterr.KindInvalidRequest)})
		return
	}

	sess, err := h.registry.Open(variant, req.SessionID)
	if err != nil {
		status, body := h.errorResponse(err)
		writeJSON(w, status, body)
		return
	}

	resp, err := h.exchange(r.Context(), sess, req.Content)
	if err != nil {
		status, body := h.errorResponse(err)
		body.SessionID = sess.ID
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSession reports the gate state and history of a session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.registry.Get(chi.URLParam(r, "variant"), chi.URLParam(r, "sessionID"))
	if err != nil {
		status, body := h.errorResponse(err)
		writeJSON(w, status, body)
		return
	}
	snap := sess.Snapshot()
	out := struct {
		Snapshot
		SignupURL string `json:"signup_url,omitempty"`
	}{Snapshot: snap}
	if !snap.AllowInput {
		out.SignupURL = h.signupURL
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) exchange(ctx context.Context, sess *Session, content string) (*MessageResponse, error) {
	res, err := sess.Exchange(ctx, h.responder, content)
	if err != nil {
		h.logExchangeError(sess, err)
		return nil, err
	}

	message := coach.StripSuggestions(res.Response.Message)
	suggestions := res.Response.Suggestions
	if suggestions == nil {
		suggestions = []coach.FollowUpSuggestion{}
	}
	out := &MessageResponse{
		SessionID:       sess.ID,
		Message:         message,
		MessageHTML:     h.renderMarkdown(message),
		Suggestions:     suggestions,
		Interactions:    res.Interactions,
		ShowSuggestions: res.ShowSuggestions,
		AllowInput:      res.AllowInput,
	}
	if !res.AllowInput {
		out.SignupURL = h.signupURL
	}
	h.logger.Info("demo: exchange completed",
		"variant", sess.Variant,
		"session_id", sess.ID,
		"interactions", res.Interactions,
		"suggestions", len(suggestions),
	)
	return out, nil
}

func (h *Handler) logExchangeError(sess *Session, err error) {
	switch {
	case errors.Is(err, ErrSignupRequired), errors.Is(err, ErrExchangeInProgress):
		h.logger.Debug("demo: exchange refused", "session_id", sess.ID, "error", err)
	default:
		kind, _ := chaterr.KindOf(err)
		h.logger.Warn("demo: exchange failed", "variant", sess.Variant, "session_id", sess.ID, "kind", kind, "error", err)
	}
}

func (h *Handler) renderMarkdown(src string) string {
	out, err := h.markdown.HTML(src)
	if err != nil {
		h.logger.Warn("demo: markdown render failed", "error", err)
		return ""
	}
	return out
}

// errorResponse maps session and chat errors to an HTTP status and body.
func (h *Handler) errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, ErrUnknownVariant):
		return http.StatusNotFound, ErrorResponse{Error: "Unknown demo", Code: "unknown_variant"}
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Session not found", Code: "session_not_found"}
	case errors.Is(err, ErrSignupRequired):
		return http.StatusForbidden, ErrorResponse{
			Error:     "You've used your free messages. Sign up to keep chatting with your coach.",
			Code:      "signup_required",
			SignupURL: h.signupURL,
		}
	case errors.Is(err, ErrExchangeInProgress):
		return http.StatusConflict, ErrorResponse{Error: "Still working on your last message", Code: "exchange_in_progress"}
	}

	ce, ok := chaterr.As(err)
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Error: "Something went wrong. Please try again.", Code: string(chaterr.KindUnknown)}
	}
	return chaterr.HTTPStatus(ce.Kind), ErrorResponse{Error: ce.Error(), Code: string(ce.Kind)}
}

// InboundFrame is what the demo widget sends over the socket.
type InboundFrame struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundFrame is what the server sends back.
type OutboundFrame struct {
	Type      string           `json:"type"` // "session", "typing", "message", "error", "signup_required", "pong"
	SessionID string           `json:"session_id,omitempty"`
	Code      string           `json:"code,omitempty"`
	Text      string           `json:"text,omitempty"`
	SignupURL string           `json:"signup_url,omitempty"`
	Reply     *MessageResponse `json:"reply,omitempty"`
}

// HandleWebSocket upgrades to a WebSocket carrying the same exchange as
// HandleMessage. Query parameters: variant (required), session (optional).
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	// The hijacked socket keeps the server's request deadlines otherwise.
	_ = conn.SetDeadline(time.Time{})

	variant := r.URL.Query().Get("variant")
	sess, err := h.registry.Open(variant, r.URL.Query().Get("session"))
	if err != nil {
		_, body := h.errorResponse(err)
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "error", Code: body.Code, Text: body.Error})
		return
	}

	_ = websocket.JSON.Send(conn, OutboundFrame{Type: "session", SessionID: sess.ID})
	if !sess.Gate.ShouldAllowInput() {
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "signup_required", SessionID: sess.ID, SignupURL: h.signupURL})
		return
	}
	h.logger.Info("demo: websocket opened", "variant", variant, "session_id", sess.ID)

	for {
		var frame InboundFrame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			h.logger.Debug("demo: websocket closed", "session_id", sess.ID, "error", err)
			return
		}

		switch frame.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundFrame{Type: "pong"})
			continue
		case "message":
		default:
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "typing", SessionID: sess.ID})
		reply, err := h.exchange(r.Context(), sess, frame.Text)
		if err != nil {
			_, body := h.errorResponse(err)
			out := OutboundFrame{Type: "error", SessionID: sess.ID, Code: body.Code, Text: body.Error}
			if errors.Is(err, ErrSignupRequired) {
				out.Type = "signup_required"
				out.SignupURL = h.signupURL
			}
			_ = websocket.JSON.Send(conn, out)
			if out.Type == "signup_required" {
				return
			}
			continue
		}
		_ = websocket.JSON.Send(conn, OutboundFrame{Type: "message", SessionID: sess.ID, Reply: reply})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
