package access

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/pkg/logging"
)

// bookingLoader is the slice of the bookings repository the gate needs.
type bookingLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*bookings.Booking, error)
}

// Handler serves the session room endpoint behind the gate.
type Handler struct {
	gate         *Gate
	store        bookingLoader
	companionKey string
	logger       *logging.Logger
}

// NewHandler creates the session access handler. companionKey is handed to
// clients allowed into the room so they can start the video companion.
func NewHandler(gate *Gate, store bookingLoader, companionKey string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{gate: gate, store: store, companionKey: companionKey, logger: logger}
}

// SessionResponse is the gate's answer to a join attempt. CompanionKey is
// only present when the decision is open.
type SessionResponse struct {
	BookingID    uuid.UUID `json:"booking_id"`
	Decision     Decision  `json:"decision"`
	Window       Window    `json:"window"`
	SessionKind  string    `json:"session_kind"`
	CompanionKey string    `json:"companion_key,omitempty"`
}

// Session handles GET /sessions/{bookingID}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return
	}

	b, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			http.Error(w, "booking not found", http.StatusNotFound)
		default:
			h.logger.Error("session lookup failed", "booking_id", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	if !actor.CanAccess(b.UserID) {
		http.Error(w, "this session is not yours", http.StatusForbidden)
		return
	}

	decision, window := h.gate.Check(b)
	resp := SessionResponse{
		BookingID:   b.ID,
		Decision:    decision,
		Window:      window,
		SessionKind: string(b.SessionKind),
	}

	status := http.StatusOK
	switch decision {
	case DecisionOpen:
		resp.CompanionKey = h.companionKey
	case DecisionUnpaid:
		status = http.StatusPaymentRequired
	case DecisionTooEarly, DecisionTooLate, DecisionBlocked:
		status = http.StatusForbidden
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
