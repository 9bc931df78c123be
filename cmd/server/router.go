package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter mounts the API under /api and the event stream at /ws.
func NewRouter(h *APIHandler, stream http.Handler, allowedOrigins []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/health", h.HealthHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.RegisterHandler)
			r.Post("/login", h.LoginHandler)
			r.Post("/logout", h.LogoutHandler)
			r.Get("/me", h.MeHandler)
		})

		r.Get("/markets", h.MarketsHandler)
		r.Get("/portfolio", h.PortfolioHandler)
		r.Get("/transactions", h.TransactionsHandler)
		r.Post("/invest", h.InvestHandler)
		r.Get("/invest/preview", h.InvestPreviewHandler)
		r.Post("/sell", h.SellHandler)
		r.Post("/withdraw", h.WithdrawHandler)
		r.Post("/deposit", h.DepositHandler)

		r.Get("/simulator", h.SimulatorHandler)
		r.Post("/simulator/start", h.SimulatorStartHandler)
		r.Post("/simulator/stop", h.SimulatorStopHandler)
	})

	if stream != nil {
		r.Get("/ws", stream.ServeHTTP)
	}

	return r
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
