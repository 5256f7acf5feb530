package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/divinetalks/platform/internal/access"
	"github.com/divinetalks/platform/internal/admin"
	"github.com/divinetalks/platform/internal/bookings"
	"github.com/divinetalks/platform/internal/catalog"
	httpmiddleware "github.com/divinetalks/platform/internal/http/middleware"
	"github.com/divinetalks/platform/internal/identity"
	"github.com/divinetalks/platform/internal/payments"
	"github.com/divinetalks/platform/internal/schedule"
	"github.com/divinetalks/platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	CatalogHandler   *catalog.Handler
	ScheduleHandler  *schedule.Handler
	BookingsHandler  *bookings.Handler
	PaymentsHandler  *payments.Handler
	PaymentsWebhook  *payments.WebhookHandler
	AccessHandler    *access.Handler
	AdminDashboard   *admin.DashboardHandler
	MetricsHandler   http.Handler
	SessionJWTSecret string

	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.PaymentsWebhook != nil {
			public.Post("/webhooks/stripe", cfg.PaymentsWebhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.CatalogHandler != nil {
			public.Get("/session-types", cfg.CatalogHandler.List)
		}
	})

	// Authenticated customer endpoints
	r.Group(func(authed chi.Router) {
		authed.Use(identity.SessionAuth(cfg.SessionJWTSecret))

		authed.Get("/availability", cfg.ScheduleHandler.GetAvailability)

		authed.Route("/bookings", func(b chi.Router) {
			b.Post("/", cfg.BookingsHandler.Create)
			b.Get("/upcoming", cfg.BookingsHandler.ListUpcoming)
			b.Get("/past", cfg.BookingsHandler.ListPast)
			b.Route("/{bookingID}", func(one chi.Router) {
				one.Get("/", cfg.BookingsHandler.Get)
				one.Post("/cancel", cfg.BookingsHandler.Cancel)
				one.Delete("/", cfg.BookingsHandler.Delete)
				if cfg.PaymentsHandler != nil {
					one.Post("/payments", cfg.PaymentsHandler.Begin)
					one.Post("/payments/confirm", cfg.PaymentsHandler.Confirm)
				}
			})
		})

		if cfg.AccessHandler != nil {
			authed.Get("/sessions/{bookingID}", cfg.AccessHandler.Session)
		}

		// Admin endpoints
		authed.Route("/admin", func(adm chi.Router) {
			adm.Use(identity.RequireAdmin)
			if cfg.AdminDashboard != nil {
				adm.Get("/stats", cfg.AdminDashboard.GetStats)
			}
			adm.Get("/bookings/recent", cfg.BookingsHandler.ListRecent)
			adm.Post("/bookings/{bookingID}/complete", cfg.BookingsHandler.Complete)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
