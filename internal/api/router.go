package api

import (
	"fraud_monitor/internal/auth"
	"fraud_monitor/pkg/metrics"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter wires the middleware stack and every route of the service.
func NewRouter(h *APIHandler, authenticator *auth.Authenticator, cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(h.logger, h.metrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.HealthCheckHandler)

	router.Route("/api", func(r chi.Router) {
		r.Post("/fraud-detection", h.DetectFraudHandler)
		r.Get("/fraud-detection", h.ListTransactionsHandler)
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Get("/transactions/search", h.SearchTransactionsHandler)
			r.Get("/reports/{id}", h.GetReportHandler)
			r.Get("/alerts", h.ListAlertsHandler)
			r.Post("/alerts", h.CreateAlertHandler)
			r.Post("/alerts/send", h.SendTestAlertHandler)
			r.Get("/analytics", h.AnalyticsHandler)
			r.Post("/auth/logout", h.LogoutHandler)
			r.Get("/auth/session", h.SessionHandler)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.sendError(w, r, "Not found", http.StatusNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.sendError(w, r, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return router
}

// RequestLogger logs each request once and counts it by route pattern.
func RequestLogger(logger *slog.Logger, metricsCollector *metrics.MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				metricsCollector.RecordHTTPRequest(route, status)
				logger.InfoContext(r.Context(), "HTTP request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
