package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/repogate/repogate/metrics"
	"github.com/repogate/repogate/provision"
	"github.com/repogate/repogate/provision/signature"
)

/* HTTP layer DTOs for the payment webhook
 * Separate from domain entities to avoid leaking internal structure
 */

// paymentWebhookResponse is the acknowledgement returned to the payment
// provider. Everything past authentication and parsing answers 200: the
// provider's retry machinery cannot fix an unresolvable purchaser or a
// rejected invite, and repeated failures would only get the endpoint
// disabled. Warnings exist for the operator, not the sender.
type paymentWebhookResponse struct {
	Received bool   `json:"received"`
	Success  bool   `json:"success,omitempty"`
	Username string `json:"username,omitempty"`
	Source   string `json:"source,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Error    string `json:"error,omitempty"`
}

// errorResponse is returned on the two retry-triggering failures
type errorResponse struct {
	Error string `json:"error"`
}

const (
	headerSignature = "webhook-signature"
	headerID        = "webhook-id"
	headerTimestamp = "webhook-timestamp"
)

// postPaymentWebhook handles POST /api/webhooks/dodo
func postPaymentWebhook(provisioner provision.UseCase, secret *signature.Secret, recorder *metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oplog := httplog.LogEntry(r.Context())

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
			return
		}
		defer r.Body.Close()

		deliveryID := r.Header.Get(headerID)

		// Verification runs against the raw bytes before anything parses
		// them; re-encoding would change the signed byte sequence.
		if secret != nil {
			sigHeader := r.Header.Get(headerSignature)
			timestamp := r.Header.Get(headerTimestamp)
			if sigHeader == "" || deliveryID == "" || timestamp == "" {
				recorder.DeliveryUnauthorized(r.Context())
				oplog.Warn().Str("delivery_id", deliveryID).Msg("missing webhook signature headers")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
				return
			}
			if !signature.Verify(*secret, deliveryID, timestamp, body, sigHeader) {
				recorder.DeliveryUnauthorized(r.Context())
				oplog.Warn().Str("delivery_id", deliveryID).Msg("webhook signature verification failed")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
				return
			}
		} else {
			recorder.DeliveryUnverified(r.Context())
			oplog.Warn().Msg("no webhook secret configured; accepting unverified delivery")
		}

		if deliveryID == "" {
			deliveryID = uuid.New().String()
		}
		httplog.LogEntrySetField(r.Context(), "delivery_id", deliveryID)

		event, err := provision.ParseEvent(body)
		if err != nil {
			oplog.Warn().Err(err).Msg("failed to parse webhook payload")
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON payload"})
			return
		}

		recorder.DeliveryReceived(r.Context(), event.Type)

		if event.Type != provision.EventPaymentSucceeded {
			oplog.Info().Str("event_type", event.Type).Msg("ignoring event type")
			writeJSON(w, http.StatusOK, paymentWebhookResponse{Received: true})
			return
		}

		if provisioner == nil {
			oplog.Error().Msg("github credentials not configured; cannot provision access")
			writeJSON(w, http.StatusOK, paymentWebhookResponse{
				Received: true,
				Warning:  "server misconfiguration - GitHub credentials not set",
			})
			return
		}

		email := event.Data.CustomerEmail()

		identity, err := provisioner.Resolve(r.Context(), event.Data)
		if err != nil {
			recorder.IdentityUnresolved(r.Context())
			if !errors.Is(err, provision.ErrIdentityNotFound) {
				oplog.Error().Err(err).Msg("identity resolution failed")
			}
			display := email
			if display == "" {
				display = "(none)"
			}
			oplog.Warn().Str("email", email).Msg("could not determine github user; manual invite required")
			writeJSON(w, http.StatusOK, paymentWebhookResponse{
				Received: true,
				Warning:  fmt.Sprintf("GitHub user not found (email: %s) - manual invite required", display),
			})
			return
		}

		recorder.IdentityResolved(r.Context(), identity.Source.String())

		if err := provisioner.Grant(r.Context(), identity.Username); err != nil {
			recorder.Grant(r.Context(), false)
			oplog.Error().Err(err).Str("username", identity.Username).Msg("failed to send github invite")
			writeJSON(w, http.StatusOK, paymentWebhookResponse{
				Received: true,
				Warning:  "failed to send GitHub invite",
				Error:    providerDetail(err),
			})
			return
		}

		recorder.Grant(r.Context(), true)
		oplog.Info().
			Str("username", identity.Username).
			Str("source", identity.Source.String()).
			Msg("invited github user to repository")
		writeJSON(w, http.StatusOK, paymentWebhookResponse{
			Received: true,
			Success:  true,
			Username: identity.Username,
			Source:   identity.Source.String(),
		})
	})
}

// providerDetail surfaces the provider's own error message when one exists
func providerDetail(err error) string {
	var provErr *provision.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Error()
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
