package payments

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/pkg/logging"
)

// Handler exposes the payment endpoints for the booking frontend.
type Handler struct {
	reconciler *Reconciler
	logger     *logging.Logger
}

// NewHandler creates a payments handler.
func NewHandler(reconciler *Reconciler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{reconciler: reconciler, logger: logger}
}

// Begin handles POST /bookings/{bookingID}/payments: it opens or reuses a
// processor intent and returns the client secret for the payment form.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	session, err := h.reconciler.BeginPayment(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// ConfirmRequest is the payload for the client confirmation endpoint.
type ConfirmRequest struct {
	IntentID string `json:"intent_id"`
}

// ConfirmResponse reports whether this confirmation applied the payment.
// Applied is false when the webhook got there first; either way the booking
// is paid.
type ConfirmResponse struct {
	BookingID uuid.UUID `json:"booking_id"`
	Paid      bool      `json:"paid"`
	Applied   bool      `json:"applied"`
}

// Confirm handles POST /bookings/{bookingID}/payments/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	applied, err := h.reconciler.ConfirmByClient(r.Context(), actor, id, req.IntentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConfirmResponse{BookingID: id, Paid: true, Applied: applied})
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (identity.Actor, uuid.UUID, bool) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return identity.Actor{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return identity.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bookings.ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, bookings.ErrForbidden):
		http.Error(w, "you can only pay for your own bookings", http.StatusForbidden)
	case errors.Is(err, ErrAlreadyPaid):
		http.Error(w, "this booking is already paid", http.StatusConflict)
	case errors.Is(err, ErrBookingCancelled):
		http.Error(w, "cancelled bookings cannot be paid", http.StatusConflict)
	case errors.Is(err, ErrIntentMismatch):
		http.Error(w, "payment does not match this booking", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrNotSucceeded):
		http.Error(w, "payment has not completed", http.StatusPaymentRequired)
	case errors.Is(err, ErrNoIntent):
		http.Error(w, "no payment has been started for this booking", http.StatusBadRequest)
	case errors.Is(err, ErrProcessorUnavailable):
		http.Error(w, "payment processor unavailable, try again", http.StatusBadGateway)
	default:
		h.logger.Error("payment request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
