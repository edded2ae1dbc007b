package chi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"

	"github.com/hookrelay/hookrelay/delivery"
	"github.com/hookrelay/hookrelay/replay"
)

// Handlers sets up the webhook ingestion routes.
func Handlers(processor delivery.UseCase, queue replay.Queue, provider string, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("hookrelay-api", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Post("/webhooks", postWebhook(processor, queue, provider).ServeHTTP)

	return r
}
