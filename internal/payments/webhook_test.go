package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/divinetalks/platform/pkg/logging"
)

type stubProcessedTracker struct {
	seen   map[string]bool
	marked []string
}

func newStubProcessedTracker() *stubProcessedTracker {
	return &stubProcessedTracker{seen: make(map[string]bool)}
}

func (s *stubProcessedTracker) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	return s.seen[provider+":"+eventID], nil
}

func (s *stubProcessedTracker) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key := provider + ":" + eventID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	s.marked = append(s.marked, eventID)
	return true, nil
}

func buildEventPayload(t *testing.T, eventID, eventType, intentID string, amount int64, metadata map[string]string) []byte {
	t.Helper()
	evt := map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":       intentID,
				"status":   "succeeded",
				"amount":   amount,
				"currency": "usd",
				"metadata": metadata,
			},
		},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return data
}

func signPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	sig := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%s,v1=%s", ts, sig)
}

func newWebhookFixture(t *testing.T, b *uuid.UUID) (*WebhookHandler, *stubConfirmer, *stubProcessedTracker) {
	t.Helper()
	owner := uuid.New()
	booking := pendingBooking(owner)
	if b != nil {
		*b = booking.ID
	}
	store := newStubBookingStore(booking)
	confirmer := newStubConfirmer()
	confirmer.known[booking.ID] = true
	rec := NewReconciler(store, confirmer, newStubIntentClient(), logging.Default(), nil)
	processed := newStubProcessedTracker()
	return NewWebhookHandler("whsec_test123", rec, processed, logging.Default(), nil), confirmer, processed
}

func postWebhook(handler *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://example.com/webhooks/stripe", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	handler.Handle(rr, req)
	return rr
}

func TestWebhookSuccessAppliesPayment(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, processed := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_1", "payment_intent.succeeded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})
	rr := postWebhook(handler, body, signPayload(body, "whsec_test123"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if len(confirmer.applied) != 1 || confirmer.applied[0] != "pi_123" {
		t.Errorf("applied = %v, want [pi_123]", confirmer.applied)
	}
	if len(processed.marked) != 1 || processed.marked[0] != "evt_1" {
		t.Errorf("marked = %v, want [evt_1]", processed.marked)
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_1", "payment_intent.succeeded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})

	if rr := postWebhook(handler, body, ""); rr.Code != http.StatusForbidden {
		t.Errorf("no signature: status = %d, want 403", rr.Code)
	}
	if rr := postWebhook(handler, body, signPayload(body, "whsec_wrong")); rr.Code != http.StatusForbidden {
		t.Errorf("wrong secret: status = %d, want 403", rr.Code)
	}
	if len(confirmer.applied) != 0 {
		t.Error("nothing should be applied on signature failure")
	}
}

func TestWebhookStaleTimestamp(t *testing.T) {
	var bookingID uuid.UUID
	handler, _, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_1", "payment_intent.succeeded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})

	ts := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).Unix())
	mac := hmac.New(sha256.New, []byte("whsec_test123"))
	mac.Write([]byte(ts + "." + string(body)))
	stale := fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	if rr := postWebhook(handler, body, stale); rr.Code != http.StatusForbidden {
		t.Errorf("stale timestamp: status = %d, want 403", rr.Code)
	}
}

func TestWebhookDuplicateEventIsNoop(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_dup", "payment_intent.succeeded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})

	for i := 0; i < 2; i++ {
		if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i+1, rr.Code)
		}
	}
	if len(confirmer.applied) != 1 {
		t.Errorf("applied %d times, want exactly 1", len(confirmer.applied))
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, processed := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_other", "charge.refunded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(confirmer.applied) != 0 {
		t.Error("ignored event must not apply payment")
	}
	if len(processed.marked) != 0 {
		t.Error("ignored event should not be marked processed")
	}
}

func TestWebhookUnknownBookingAcknowledged(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_nometa", "payment_intent.succeeded", "pi_123", 9700, nil)
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
		t.Fatalf("missing metadata: status = %d, want 200", rr.Code)
	}

	// Well-formed booking_id that matches no booking of ours.
	body = buildEventPayload(t, "evt_stray", "payment_intent.succeeded", "pi_456", 9700,
		map[string]string{"booking_id": uuid.NewString()})
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
		t.Fatalf("unknown booking: status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	body = buildEventPayload(t, "evt_stray_fail", "payment_intent.payment_failed", "pi_456", 9700,
		map[string]string{"booking_id": uuid.NewString()})
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
		t.Fatalf("unknown booking failure: status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	if len(confirmer.applied) != 0 {
		t.Error("unattributable events must not apply payment")
	}
	if len(confirmer.failed) != 0 {
		t.Error("unattributable events must not record failures")
	}
}

func TestWebhookPaymentFailed(t *testing.T) {
	var bookingID uuid.UUID
	handler, confirmer, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "evt_fail", "payment_intent.payment_failed", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if len(confirmer.failed) != 1 || confirmer.failed[0] != bookingID {
		t.Errorf("failed = %v, want [%s]", confirmer.failed, bookingID)
	}
	if len(confirmer.failedIntents) != 1 || confirmer.failedIntents[0] != "pi_123" {
		t.Errorf("failed intents = %v, want [pi_123]", confirmer.failedIntents)
	}
	if len(confirmer.applied) != 0 {
		t.Error("failure event must not apply payment")
	}
}

func TestWebhookMissingEventID(t *testing.T) {
	var bookingID uuid.UUID
	handler, _, _ := newWebhookFixture(t, &bookingID)

	body := buildEventPayload(t, "", "payment_intent.succeeded", "pi_123", 9700,
		map[string]string{"booking_id": bookingID.String()})
	if rr := postWebhook(handler, body, signPayload(body, "whsec_test123")); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
