package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/observability/metrics"
	"github.com/divinetalks/platform/pkg/logging"
)

// processedTracker is the idempotency surface for webhook events.
type processedTracker interface {
	AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// WebhookHandler handles processor webhook events for payment intents.
type WebhookHandler struct {
	webhookSecret string
	reconciler    *Reconciler
	processed     processedTracker
	logger        *logging.Logger
	metrics       *metrics.BookingMetrics
}

// NewWebhookHandler creates a handler for Stripe payment webhooks.
func NewWebhookHandler(webhookSecret string, reconciler *Reconciler, processed processedTracker, logger *logging.Logger, m *metrics.BookingMetrics) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		reconciler:    reconciler,
		processed:     processed,
		logger:        logger,
		metrics:       m,
	}
}

// webhookEvent is the processor's event envelope.
type webhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object Intent `json:"object"`
	} `json:"data"`
}

// Handle processes incoming processor webhook events. Unverifiable payloads
// are rejected; verified events we don't care about are acknowledged so the
// processor stops retrying them.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if !verifyStripeSignature(h.webhookSecret, payload, sigHeader) {
		h.metrics.ObserveWebhookEvent("unknown", "bad_signature")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode webhook event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	switch evt.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
	default:
		h.metrics.ObserveWebhookEvent(evt.Type, "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	if done, err := h.processed.AlreadyProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("processed lookup failed", "error", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	} else if done {
		h.metrics.ObserveWebhookEvent(evt.Type, "duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	intent := evt.Data.Object
	bookingID, err := uuid.Parse(intent.Metadata["booking_id"])
	if err != nil {
		// Not one of ours; acknowledge so the processor stops retrying.
		h.logger.Warn("webhook intent missing booking_id metadata",
			"event_id", evt.ID, "intent_id", intent.ID)
		h.metrics.ObserveWebhookEvent(evt.Type, "no_booking")
		w.WriteHeader(http.StatusOK)
		return
	}

	switch evt.Type {
	case "payment_intent.succeeded":
		_, err = h.reconciler.ConfirmByWebhook(r.Context(), bookingID, &intent)
	case "payment_intent.payment_failed":
		err = h.reconciler.FailByWebhook(r.Context(), bookingID, &intent)
	}
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			// Booking never existed here; acknowledge so the processor
			// stops redelivering.
			h.logger.Warn("webhook event for unknown booking",
				"event_id", evt.ID, "booking_id", bookingID, "intent_id", intent.ID)
			h.metrics.ObserveWebhookEvent(evt.Type, "no_booking")
			w.WriteHeader(http.StatusOK)
			return
		}
		h.logger.Error("webhook event application failed",
			"event_id", evt.ID, "booking_id", bookingID, "error", err)
		h.metrics.ObserveWebhookEvent(evt.Type, "error")
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	if _, err := h.processed.MarkProcessed(r.Context(), "stripe", evt.ID); err != nil {
		h.logger.Error("failed to record processed event", "error", err)
	}

	h.metrics.ObserveWebhookEvent(evt.Type, "processed")
	h.metrics.ObserveWebhookLatency(evt.Type, time.Since(started).Seconds())
	w.WriteHeader(http.StatusOK)
}

// verifyStripeSignature verifies a Stripe webhook signature.
// Stripe signs with HMAC-SHA256 and sends the signature in the
// Stripe-Signature header as: t=<timestamp>,v1=<signature>[,v0=<test_signature>]
func verifyStripeSignature(secret string, payload []byte, header string) bool {
	if secret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string

	parts := strings.Split(header, ",")
	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Check timestamp tolerance (5 minutes)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(time.Now().Unix()-ts) > 300 {
		return false
	}

	// Compute expected signature: HMAC-SHA256(secret, "timestamp.payload")
	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
