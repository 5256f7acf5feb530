package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/divinetalks/platform/pkg/logging"
)

// Handler serves the availability query endpoint.
type Handler struct {
	grid   *Grid
	cache  *SlotCache
	logger *logging.Logger
}

// NewHandler creates an availability handler. The cache may be nil.
func NewHandler(grid *Grid, cache *SlotCache, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{grid: grid, cache: cache, logger: logger}
}

type slotView struct {
	Start string `json:"start"`
	Label string `json:"label"`
}

// AvailabilityResponse is the payload for GET /availability.
type AvailabilityResponse struct {
	Date  string     `json:"date"`
	Times []slotView `json:"times"`
}

// GetAvailability handles GET /availability?date=YYYY-MM-DD.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	date, err := ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date format, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if date.Before(h.grid.Today()) {
		http.Error(w, "this date is in the past", http.StatusBadRequest)
		return
	}

	slots, hit := h.cache.Get(r.Context(), date)
	if !hit {
		slots, err = h.grid.SlotsFor(date)
		if errors.Is(err, ErrPastDate) {
			http.Error(w, "this date is in the past", http.StatusBadRequest)
			return
		}
		if err != nil {
			h.logger.Error("slot computation failed", "error", err, "date", dateStr)
			http.Error(w, "failed to compute availability", http.StatusInternalServerError)
			return
		}
		if err := h.cache.Put(r.Context(), date, slots); err != nil {
			h.logger.Warn("slot cache write failed", "error", err, "date", dateStr)
		}
	}

	resp := AvailabilityResponse{Date: FormatDate(date), Times: make([]slotView, 0, len(slots))}
	for _, s := range slots {
		resp.Times = append(resp.Times, slotView{Start: s.Start.String(), Label: s.Label})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
