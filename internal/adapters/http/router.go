package http

import (
	"log/slog"
	"net/http"
)

// NewRouter creates the HTTP router with all routes. metricsHandler serves
// the Prometheus exposition and limiter may be nil.
func NewRouter(h *Handler, metricsHandler http.Handler, limiter *RateLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	// Prices
	mux.HandleFunc("GET /price", h.GetPrice)
	mux.HandleFunc("GET /price/history", h.GetHistoricalPrice)

	// Observations
	mux.HandleFunc("GET /observations", h.ListObservations)
	mux.HandleFunc("GET /observations/archive", h.ListArchivedObservations)

	// Manual update
	mux.HandleFunc("POST /update", h.TriggerUpdate)

	// Metrics
	mux.HandleFunc("GET /stats", h.GetStats)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}

	// Apply middleware chain (order matters: outer -> inner)
	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Handler(handler)
	}
	handler = ContentTypeMiddleware(handler)
	handler = CORSMiddleware(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger)(handler)

	return handler
}
