package admin

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/divinetalks/platform/pkg/logging"
)

// DashboardHandler serves the provider's revenue and booking overview.
type DashboardHandler struct {
	db     *sql.DB
	loc    *time.Location
	logger *logging.Logger
	now    func() time.Time
}

// NewDashboardHandler creates a new admin dashboard handler.
func NewDashboardHandler(db *sql.DB, loc *time.Location, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardHandler{db: db, loc: loc, logger: logger, now: time.Now}
}

// WithNow overrides the clock source, for tests.
func (h *DashboardHandler) WithNow(now func() time.Time) *DashboardHandler {
	h.now = now
	return h
}

// StatsResponse contains the dashboard overview metrics.
type StatsResponse struct {
	TotalRevenueCents   int64          `json:"total_revenue_cents"`
	MonthlyRevenueCents int64          `json:"monthly_revenue_cents"`
	TotalBookings       int            `json:"total_bookings"`
	PaidBookings        int            `json:"paid_bookings"`
	UpcomingBookings    int            `json:"upcoming_bookings"`
	CancelledBookings   int            `json:"cancelled_bookings"`
	ConversionRate      float64        `json:"conversion_rate"`
	BookingsByKind      map[string]int `json:"bookings_by_kind"`
}

// GetStats returns the dashboard overview.
// GET /admin/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := StatsResponse{BookingsByKind: make(map[string]int)}

	now := h.now().In(h.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	h.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price_cents), 0) FROM bookings WHERE payment_status = 'succeeded'`,
	).Scan(&stats.TotalRevenueCents)

	h.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price_cents), 0) FROM bookings WHERE payment_status = 'succeeded' AND paid_at >= $1`,
		monthStart,
	).Scan(&stats.MonthlyRevenueCents)

	h.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE payment_status = 'succeeded') FROM bookings`,
	).Scan(&stats.TotalBookings, &stats.PaidBookings)

	h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE payment_status = 'succeeded' AND booking_date >= $1`,
		today,
	).Scan(&stats.UpcomingBookings)

	h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE status = 'cancelled'`,
	).Scan(&stats.CancelledBookings)

	if stats.TotalBookings > 0 {
		stats.ConversionRate = float64(stats.PaidBookings) / float64(stats.TotalBookings) * 100
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT session_kind, COUNT(*) FROM bookings WHERE payment_status = 'succeeded' GROUP BY session_kind`,
	)
	if err != nil {
		h.logger.Error("failed to query bookings by kind", "error", err)
	} else {
		defer rows.Close()
		for rows.Next() {
			var kind string
			var count int
			if err := rows.Scan(&kind, &count); err != nil {
				h.logger.Error("failed to scan kind row", "error", err)
				continue
			}
			stats.BookingsByKind[kind] = count
		}
		if err := rows.Err(); err != nil {
			h.logger.Error("error iterating kind rows", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		h.logger.Error("failed to encode stats response", "error", err)
	}
}
