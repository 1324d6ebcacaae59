package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/repogate/repogate/metrics"
	"github.com/repogate/repogate/provision"
	"github.com/repogate/repogate/provision/signature"
)

// Handlers sets up the payment webhook API routes.
// provisioner may be nil when the GitHub credentials are not configured;
// the webhook handler then serves the misconfiguration warning path
// instead of crashing.
func Handlers(ctx context.Context, provisioner provision.UseCase, secret *signature.Secret, recorder *metrics.Recorder) *chi.Mux {
	logger := httplog.NewLogger("repogate-api", httplog.Options{
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

	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	// Payment provider webhook
	r.Post("/api/webhooks/dodo", postPaymentWebhook(provisioner, secret, recorder).ServeHTTP)

	return r
}
