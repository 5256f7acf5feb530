package bookings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/schedule"
)

func newTestHandler(t *testing.T, store Store) (*Handler, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	grid := schedule.NewGrid(schedule.DefaultTemplate(loc)).WithNow(func() time.Time {
		return time.Date(2025, time.June, 2, 12, 0, 0, 0, loc)
	})
	ledger := NewLedger(store, grid, nil, nil, nil)
	return NewHandler(ledger, loc, nil), loc
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/bookings", h.Create)
	r.Get("/bookings/upcoming", h.ListUpcoming)
	r.Get("/bookings/past", h.ListPast)
	r.Get("/bookings/{bookingID}", h.Get)
	r.Post("/bookings/{bookingID}/cancel", h.Cancel)
	r.Delete("/bookings/{bookingID}", h.Delete)
	return r
}

func doRequest(t *testing.T, router http.Handler, actor identity.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(identity.WithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateBooking(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	actor := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, actor, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive",
		Date:        "2025-06-04",
		StartTime:   "18:00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var view BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if view.SessionKind != "deep_dive" || view.DurationMinutes != 30 || view.PriceCents != 9700 {
		t.Errorf("unexpected view: %+v", view)
	}
	if view.StartTime != "18:00" {
		t.Errorf("start_time = %q, want 18:00", view.StartTime)
	}
	if view.Label != "06:00 PM CST" {
		t.Errorf("label = %q, want 06:00 PM CST", view.Label)
	}
	if view.Status != "pending" || view.PaymentStatus != "pending" {
		t.Errorf("new booking status = %s/%s, want pending/pending", view.Status, view.PaymentStatus)
	}
}

func TestHandlerCreateBookingValidation(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	actor := identity.Actor{UserID: uuid.New()}

	cases := []struct {
		name string
		req  CreateBookingRequest
		code int
	}{
		{"bad date", CreateBookingRequest{SessionKind: "deep_dive", Date: "06/04/2025", StartTime: "18:00"}, http.StatusBadRequest},
		{"bad time", CreateBookingRequest{SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "6pm"}, http.StatusBadRequest},
		{"past date", CreateBookingRequest{SessionKind: "deep_dive", Date: "2025-06-01", StartTime: "18:00"}, http.StatusBadRequest},
		{"unknown kind", CreateBookingRequest{SessionKind: "marathon", Date: "2025-06-04", StartTime: "18:00"}, http.StatusBadRequest},
		{"off grid", CreateBookingRequest{SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "09:00"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, actor, http.MethodPost, "/bookings", tc.req)
			if rec.Code != tc.code {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.code, rec.Body.String())
			}
		})
	}
}

func TestHandlerCreateBookingSlotHeld(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)

	first := doRequest(t, router, identity.Actor{UserID: uuid.New()}, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "quick_guidance", Date: "2025-06-04", StartTime: "18:00",
	})
	if first.Code != http.StatusCreated {
		t.Fatalf("first booking: status = %d", first.Code)
	}
	second := doRequest(t, router, identity.Actor{UserID: uuid.New()}, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	if second.Code != http.StatusConflict {
		t.Errorf("second booking: status = %d, want 409", second.Code)
	}
}

func TestHandlerGetBooking(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	owner := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, owner, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	var created BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec := doRequest(t, router, owner, http.MethodGet, "/bookings/"+created.ID.String(), nil); rec.Code != http.StatusOK {
		t.Errorf("owner get: status = %d, want 200", rec.Code)
	}
	stranger := identity.Actor{UserID: uuid.New()}
	if rec := doRequest(t, router, stranger, http.MethodGet, "/bookings/"+created.ID.String(), nil); rec.Code != http.StatusForbidden {
		t.Errorf("stranger get: status = %d, want 403", rec.Code)
	}
	admin := identity.Actor{UserID: uuid.New(), IsAdmin: true}
	if rec := doRequest(t, router, admin, http.MethodGet, "/bookings/"+created.ID.String(), nil); rec.Code != http.StatusOK {
		t.Errorf("admin get: status = %d, want 200", rec.Code)
	}
	if rec := doRequest(t, router, owner, http.MethodGet, "/bookings/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing get: status = %d, want 404", rec.Code)
	}
	if rec := doRequest(t, router, owner, http.MethodGet, "/bookings/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", rec.Code)
	}
}

func TestHandlerCancelBooking(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	owner := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, owner, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	var created BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	cancel := doRequest(t, router, owner, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", created.ID), nil)
	if cancel.Code != http.StatusOK {
		t.Fatalf("cancel: status = %d: %s", cancel.Code, cancel.Body.String())
	}
	var cancelled BookingView
	if err := json.Unmarshal(cancel.Body.Bytes(), &cancelled); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}

	// Cancelling again is a no-op, not an error.
	again := doRequest(t, router, owner, http.MethodPost, fmt.Sprintf("/bookings/%s/cancel", created.ID), nil)
	if again.Code != http.StatusOK {
		t.Errorf("repeat cancel: status = %d, want 200", again.Code)
	}
}

func TestHandlerDeleteBooking(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	owner := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, owner, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	var created BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	del := doRequest(t, router, owner, http.MethodDelete, "/bookings/"+created.ID.String(), nil)
	if del.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d: %s", del.Code, del.Body.String())
	}
	if rec := doRequest(t, router, owner, http.MethodGet, "/bookings/"+created.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestHandlerDeleteBookingWithPayment(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	owner := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, owner, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	var created BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	store.bookings[created.ID].PaymentIntentID = "pi_123"

	del := doRequest(t, router, owner, http.MethodDelete, "/bookings/"+created.ID.String(), nil)
	if del.Code != http.StatusConflict {
		t.Errorf("delete with intent: status = %d, want 409", del.Code)
	}
}

func TestHandlerListsRequireActor(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/bookings/upcoming", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no actor: status = %d, want 401", rec.Code)
	}
}

func TestHandlerListUpcoming(t *testing.T) {
	store := newStubStore()
	h, _ := newTestHandler(t, store)
	router := newTestRouter(h)
	owner := identity.Actor{UserID: uuid.New()}

	rec := doRequest(t, router, owner, http.MethodPost, "/bookings", CreateBookingRequest{
		SessionKind: "deep_dive", Date: "2025-06-04", StartTime: "18:00",
	})
	var created BookingView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Unpaid bookings do not show on the upcoming list.
	list := doRequest(t, router, owner, http.MethodGet, "/bookings/upcoming", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list: status = %d", list.Code)
	}
	var resp ListResponse
	if err := json.Unmarshal(list.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("count = %d, want 0 before payment", resp.Count)
	}

	store.bookings[created.ID].PaymentStatus = PaymentSucceeded
	list = doRequest(t, router, owner, http.MethodGet, "/bookings/upcoming", nil)
	if err := json.Unmarshal(list.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1 after payment", resp.Count)
	}
}
