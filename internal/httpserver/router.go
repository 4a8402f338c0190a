package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

func newRouter(logger *zap.Logger, h *handler, ws *wsHandler, metrics Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(zapRequestLogger(logger))

	// Websocket connections outlive any request timeout.
	r.Get("/ws", ws.serveWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/health", h.handleHealth)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", h.handleReviewList)
			r.Get("/{reviewID}", h.handleReviewGet)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.handleSessionList)
			r.Get("/{sessionID}", h.handleSessionGet)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.handleEventList)
			r.Post("/", h.handleEventPublish)
		})
	})

	return r
}

func zapRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info(
				"http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
