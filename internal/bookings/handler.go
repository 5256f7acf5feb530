package bookings

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/catalog"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/schedule"
	"github.com/divinetalks/platform/pkg/logging"
)

// Handler handles HTTP requests for bookings.
type Handler struct {
	ledger *Ledger
	loc    *time.Location
	logger *logging.Logger
}

// NewHandler creates a bookings handler.
func NewHandler(ledger *Ledger, loc *time.Location, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ledger: ledger, loc: loc, logger: logger}
}

// CreateBookingRequest is the payload for POST /bookings.
type CreateBookingRequest struct {
	SessionKind     string `json:"session_kind"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	SpecialRequests string `json:"special_requests,omitempty"`
}

// BookingView is the JSON shape of a booking.
type BookingView struct {
	ID              uuid.UUID  `json:"id"`
	SessionKind     string     `json:"session_kind"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	Label           string     `json:"label"`
	DurationMinutes int        `json:"duration_minutes"`
	PriceCents      int64      `json:"price_cents"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	SpecialRequests string     `json:"special_requests,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (h *Handler) view(b *Booking) BookingView {
	return BookingView{
		ID:              b.ID,
		SessionKind:     string(b.SessionKind),
		Date:            schedule.FormatDate(b.Date),
		StartTime:       b.StartTime.String(),
		Label:           b.StartTime.Label(h.loc),
		DurationMinutes: b.DurationMinutes,
		PriceCents:      b.PriceCents,
		Status:          string(b.Status),
		PaymentStatus:   string(b.PaymentStatus),
		PaidAt:          b.PaidAt,
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt,
	}
}

// Create handles POST /bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	date, err := schedule.ParseDate(req.Date)
	if err != nil {
		http.Error(w, "invalid date format, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	start, err := schedule.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time format, want HH:MM", http.StatusBadRequest)
		return
	}

	b, err := h.ledger.Create(r.Context(), actor, CreateParams{
		SessionKind:     catalog.Kind(req.SessionKind),
		Date:            date,
		StartTime:       start,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.view(b))
}

// Get handles GET /bookings/{bookingID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	b, err := h.ledger.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.view(b))
}

// ListResponse wraps a booking list.
type ListResponse struct {
	Bookings []BookingView `json:"bookings"`
	Count    int           `json:"count"`
}

// ListUpcoming handles GET /bookings/upcoming.
func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	bs, err := h.ledger.ListUpcoming(r.Context(), actor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeList(w, bs)
}

// ListPast handles GET /bookings/past?limit=N.
func (h *Handler) ListPast(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	limit := 5
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}
	bs, err := h.ledger.ListPast(r.Context(), actor, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeList(w, bs)
}

// Cancel handles POST /bookings/{bookingID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	b, err := h.ledger.Cancel(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.view(b))
}

// Delete handles DELETE /bookings/{bookingID}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	if err := h.ledger.Delete(r.Context(), actor, id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete handles POST /admin/bookings/{bookingID}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	b, err := h.ledger.Complete(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.view(b))
}

// ListRecent handles GET /admin/bookings/recent.
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	bs, err := h.ledger.ListRecent(r.Context(), actor, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeList(w, bs)
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

func (h *Handler) writeList(w http.ResponseWriter, bs []*Booking) {
	resp := ListResponse{Bookings: make([]BookingView, 0, len(bs)), Count: len(bs)}
	for _, b := range bs {
		resp.Bookings = append(resp.Bookings, h.view(b))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "you can only manage your own bookings", http.StatusForbidden)
	case errors.Is(err, schedule.ErrPastDate):
		http.Error(w, "this date is in the past", http.StatusBadRequest)
	case errors.Is(err, ErrSlotUnavailable):
		http.Error(w, "this time slot is not available", http.StatusConflict)
	case errors.Is(err, ErrUnknownSessionKind):
		http.Error(w, "unknown session type", http.StatusBadRequest)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, "this booking cannot be moved to that state", http.StatusConflict)
	case errors.Is(err, ErrHasPayment):
		http.Error(w, "payment already attempted; cancel instead", http.StatusConflict)
	default:
		h.logger.Error("booking request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
