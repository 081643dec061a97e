package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chat-relay/internal/handlers"
	"chat-relay/internal/metrics"
	"chat-relay/internal/middleware"
)

// RelayPath is the single inbound endpoint of the relay.
const RelayPath = "/api/proxy/chat/completions"

type Options struct {
	MaxBodyBytes int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, relayHandler *handlers.RelayHandler, opts Options) {
	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	// No request timeout middleware: streamed responses stay open for as
	// long as the upstream keeps sending.
	relayRoute := r.With()
	if opts.MaxBodyBytes > 0 {
		relayRoute = r.With(chimw.RequestSize(opts.MaxBodyBytes))
	}
	relayRoute.Post(RelayPath, relayHandler.ChatCompletion)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
