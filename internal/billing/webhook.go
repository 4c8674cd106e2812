// Package billing applies Stripe subscription events to member profiles.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/coach-ai-platform/internal/profiles"
	"github.com/wolfman30/coach-ai-platform/pkg/logging"
)

const (
	providerStripe  = "stripe"
	maxPayloadBytes = 64 << 10
)

// SubscriptionStore is the part of profiles.Repository the webhook writes to.
type SubscriptionStore interface {
	LinkCustomer(ctx context.Context, profileID, customerID string) error
	UpdateSubscription(ctx context.Context, customerID, status string) error
}

// StripeWebhookHandler handles Stripe subscription and checkout events.
type StripeWebhookHandler struct {
	webhookSecret string
	profiles      SubscriptionStore
	processed     ProcessedTracker
	now           func() time.Time
	logger        *logging.Logger
}

func NewStripeWebhookHandler(webhookSecret string, store SubscriptionStore, processed ProcessedTracker, logger *logging.Logger) *StripeWebhookHandler {
	if store == nil || processed == nil {
		panic("billing: subscription store and processed tracker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeWebhookHandler{
		webhookSecret: webhookSecret,
		profiles:      store,
		processed:     processed,
		now:           time.Now,
		logger:        logger,
	}
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSession struct {
	ID                string `json:"id"`
	Mode              string `json:"mode"`
	Customer          string `json:"customer"`
	ClientReferenceID string `json:"client_reference_id"`
	Subscription      string `json:"subscription"`
}

type subscription struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

// Handle processes incoming Stripe webhook events.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !verifyStripeSignature(h.webhookSecret, payload, r.Header.Get("Stripe-Signature"), h.now()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("billing: failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	var apply func(context.Context, json.RawMessage) error
	switch evt.Type {
	case "checkout.session.completed":
		apply = h.applyCheckout
	case "customer.subscription.created", "customer.subscription.updated":
		apply = h.applySubscription(false)
	case "customer.subscription.deleted":
		apply = h.applySubscription(true)
	default:
		w.WriteHeader(http.StatusOK)
		return
	}

	if processed, err := h.processed.AlreadyProcessed(r.Context(), providerStripe, evt.ID); err != nil {
		h.logger.Error("billing: processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if processed {
		h.logger.Debug("billing: duplicate stripe event", "event_id", evt.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := apply(r.Context(), evt.Data.Object); err != nil {
		if errors.Is(err, profiles.ErrNotFound) || errors.Is(err, errIncompleteEvent) {
			// Acknowledge so Stripe stops retrying; nothing we hold matches.
			h.logger.Warn("billing: stripe event not applied", "event_id", evt.ID, "type", evt.Type, "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("billing: failed to apply stripe event", "event_id", evt.ID, "type", evt.Type, "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), providerStripe, evt.ID); err != nil {
		h.logger.Error("billing: failed to record processed event", "error", err)
	}
	h.logger.Info("billing: stripe event applied", "event_id", evt.ID, "type", evt.Type)
	w.WriteHeader(http.StatusOK)
}

var errIncompleteEvent = errors.New("billing: event is missing required fields")

func (h *StripeWebhookHandler) applyCheckout(ctx context.Context, raw json.RawMessage) error {
	var session checkoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("%w: %v", errIncompleteEvent, err)
	}
	if session.Mode != "" && session.Mode != "subscription" {
		return nil
	}
	if session.ClientReferenceID == "" || session.Customer == "" {
		return errIncompleteEvent
	}
	if err := h.profiles.LinkCustomer(ctx, session.ClientReferenceID, session.Customer); err != nil {
		return err
	}
	return h.profiles.UpdateSubscription(ctx, session.Customer, "active")
}

func (h *StripeWebhookHandler) applySubscription(deleted bool) func(context.Context, json.RawMessage) error {
	return func(ctx context.Context, raw json.RawMessage) error {
		var sub subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return fmt.Errorf("%w: %v", errIncompleteEvent, err)
		}
		if sub.Customer == "" {
			return errIncompleteEvent
		}
		status := sub.Status
		if deleted {
			status = "canceled"
		}
		return h.profiles.UpdateSubscription(ctx, sub.Customer, status)
	}
}
