package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/campus-logistics/delivery-tracker-api/internal/platform/metrics"
)

var publicRoutes = []string{
	"GET /",
	"GET /healthz",
	"GET /metrics",
	"POST /login",
	"POST /auth/login",
	"POST /auth/register",
	"POST /auth/logout",
	"GET /auth/me",
	"GET /dashboard",
	"GET /deliveries",
	"POST /deliveries",
	"GET /deliveries/{deliveryId}",
	"GET /deliveries/{deliveryId}/history",
	"POST /deliveries/{deliveryId}/accept",
	"POST /deliveries/{deliveryId}/reject",
	"POST /deliveries/{deliveryId}/advance",
	"PUT /deliveries/{deliveryId}/status",
	"GET /admin/stats",
	"GET /admin/staff",
	"POST /admin/staff",
	"PATCH /admin/staff/{staffId}",
	"POST /admin/staff/import",
	"GET /admin/export.xlsx",
}

type RouterOptions struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// AuthMiddleware replaces session-token auth when set.
	AuthMiddleware func(http.Handler) http.Handler
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = s.Log
	}
	auth := opts.AuthMiddleware
	if auth == nil {
		auth = NewAuthMiddleware(s.Sessions, log)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	if opts.Metrics != nil {
		r.Use(instrument(opts.Metrics))
	}
	r.Use(recoverer(log))

	r.NotFound(s.NotFound)
	r.MethodNotAllowed(s.NotFound)

	r.Get("/", s.Landing)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Post("/login", s.Login)
	r.Post("/auth/login", s.Login)
	r.Post("/auth/register", s.Register)

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/auth/logout", s.Logout)
		r.Get("/auth/me", s.Me)
		r.Get("/dashboard", s.GetDashboard)

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", s.ListDeliveries)
			r.Post("/", s.CreateDelivery)
			r.Route("/{deliveryId}", func(r chi.Router) {
				r.Get("/", s.GetDelivery)
				r.Get("/history", s.GetDeliveryHistory)
				r.Post("/accept", s.AcceptDelivery)
				r.Post("/reject", s.RejectDelivery)
				r.Post("/advance", s.AdvanceDelivery)
				r.Put("/status", s.UpdateDeliveryStatus)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.GetStats)
			r.Get("/staff", s.ListStaff)
			r.Post("/staff", s.AddStaff)
			r.Post("/staff/import", s.ImportStaff)
			r.Patch("/staff/{staffId}", s.UpdateStaff)
			r.Get("/export.xlsx", s.ExportWorkbook)
		})
	})
	return r
}
