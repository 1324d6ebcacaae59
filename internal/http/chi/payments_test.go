package chi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/repogate/repogate/internal/http/chi"
	"github.com/repogate/repogate/metrics"
	"github.com/repogate/repogate/provision"
	"github.com/repogate/repogate/provision/mocks"
	"github.com/repogate/repogate/provision/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	secret   signature.Secret
	searcher *mocks.UserSearcher
	inviter  *mocks.CollaboratorInviter
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	secret, err := signature.GenerateSecret(32)
	require.NoError(t, err)

	searcher := mocks.NewUserSearcher(t)
	inviter := mocks.NewCollaboratorInviter(t)
	service := provision.NewService(searcher, inviter)

	recorder, err := metrics.NewRecorder()
	require.NoError(t, err)

	return &fixture{
		secret:   secret,
		searcher: searcher,
		inviter:  inviter,
		handler:  chi.Handlers(context.Background(), service, &secret, recorder),
	}
}

// signedRequest builds a delivery with valid Standard Webhooks headers
func signedRequest(t *testing.T, secret signature.Secret, body string) *http.Request {
	t.Helper()

	deliveryID := "msg_2b3c4d"
	timestamp := "1704110400"
	sig := signature.Sign(secret, deliveryID, timestamp, []byte(body))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/dodo", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("webhook-id", deliveryID)
	req.Header.Set("webhook-timestamp", timestamp)
	req.Header.Set("webhook-signature", sig.String())
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestPaymentWebhook_Authentication(t *testing.T) {
	t.Run("missing signature headers - 401, body never parsed", func(t *testing.T) {
		f := newFixture(t)

		// Deliberately unparseable body: reaching the parser would 400,
		// not 401, so the status also proves ordering.
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/dodo", strings.NewReader(`{broken`))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, "invalid signature", body["error"])
		f.searcher.AssertNotCalled(t, "SearchByEmail")
		f.inviter.AssertNotCalled(t, "Invite")
	})

	t.Run("wrong signature - 401", func(t *testing.T) {
		f := newFixture(t)

		payload := `{"type": "payment.succeeded", "data": {"email": "a@b.com"}}`
		req := signedRequest(t, f.secret, payload)
		req.Header.Set("webhook-signature", "v1,AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("tampered body - 401", func(t *testing.T) {
		f := newFixture(t)

		req := signedRequest(t, f.secret, `{"type": "payment.succeeded", "data": {}}`)
		req.Body = http.NoBody
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no secret configured - unverified delivery is processed", func(t *testing.T) {
		searcher := mocks.NewUserSearcher(t)
		inviter := mocks.NewCollaboratorInviter(t)
		service := provision.NewService(searcher, inviter)
		recorder, err := metrics.NewRecorder()
		require.NoError(t, err)

		handler := chi.Handlers(context.Background(), service, nil, recorder)

		inviter.On("Invite", mock.Anything, "octocat").Return(nil)

		payload := `{"type": "payment.succeeded", "data": {"metadata": {"github_username": "octocat"}}}`
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/dodo", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["success"])
	})
}

func TestPaymentWebhook_Parsing(t *testing.T) {
	t.Run("malformed JSON - 400", func(t *testing.T) {
		f := newFixture(t)

		req := signedRequest(t, f.secret, `{not json`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, "invalid JSON payload", body["error"])
	})

	t.Run("missing event type - 400", func(t *testing.T) {
		f := newFixture(t)

		req := signedRequest(t, f.secret, `{"data": {"email": "a@b.com"}}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentWebhook_EventFilter(t *testing.T) {
	t.Run("payment.failed - neutral ack, no outbound calls", func(t *testing.T) {
		f := newFixture(t)

		req := signedRequest(t, f.secret, `{"type": "payment.failed", "data": {"email": "a@b.com"}}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["received"])
		assert.NotContains(t, body, "warning")
		assert.NotContains(t, body, "success")
		f.searcher.AssertNotCalled(t, "SearchByEmail")
		f.inviter.AssertNotCalled(t, "Invite")
	})
}

func TestPaymentWebhook_Misconfiguration(t *testing.T) {
	t.Run("no github credentials - 200 with warning", func(t *testing.T) {
		secret, err := signature.GenerateSecret(32)
		require.NoError(t, err)
		recorder, err := metrics.NewRecorder()
		require.NoError(t, err)

		handler := chi.Handlers(context.Background(), nil, &secret, recorder)

		req := signedRequest(t, secret, `{"type": "payment.succeeded", "data": {"email": "a@b.com"}}`)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["received"])
		assert.Contains(t, body["warning"], "server misconfiguration")
	})
}

func TestPaymentWebhook_Provisioning(t *testing.T) {
	t.Run("metadata username - search never called", func(t *testing.T) {
		f := newFixture(t)

		f.inviter.On("Invite", mock.Anything, "octocat").Return(nil)

		payload := `{"type": "payment.succeeded", "data": {
			"customer": {"email": "a@b.com"},
			"metadata": {"github_username": "octocat"}
		}}`
		req := signedRequest(t, f.secret, payload)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "octocat", body["username"])
		assert.Equal(t, "metadata", body["source"])
		f.searcher.AssertNotCalled(t, "SearchByEmail")
	})

	t.Run("email search hit - success with email_search source", func(t *testing.T) {
		f := newFixture(t)

		f.searcher.On("SearchByEmail", mock.Anything, "a@b.com").Return("user1", true, nil)
		f.inviter.On("Invite", mock.Anything, "user1").Return(nil)

		req := signedRequest(t, f.secret, `{"type": "payment.succeeded", "data": {"email": "a@b.com"}}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "user1", body["username"])
		assert.Equal(t, "email_search", body["source"])
	})

	t.Run("unresolved - warning references the email", func(t *testing.T) {
		f := newFixture(t)

		f.searcher.On("SearchByEmail", mock.Anything, "a@b.com").Return("", false, nil)

		req := signedRequest(t, f.secret, `{"type": "payment.succeeded", "data": {"email": "a@b.com"}}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["received"])
		assert.Contains(t, body["warning"], "a@b.com")
		assert.Contains(t, body["warning"], "manual invite required")
		f.inviter.AssertNotCalled(t, "Invite")
	})

	t.Run("unresolved - no identity context at all", func(t *testing.T) {
		f := newFixture(t)

		req := signedRequest(t, f.secret, `{"type": "payment.succeeded", "data": {}}`)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Contains(t, body["warning"], "(none)")
	})

	t.Run("grant fails - 200 with provider detail", func(t *testing.T) {
		f := newFixture(t)

		provErr := &provision.ProviderError{StatusCode: 422, Message: "Validation Failed"}
		f.inviter.On("Invite", mock.Anything, "octocat").Return(provErr)

		payload := `{"type": "payment.succeeded", "data": {"metadata": {"github_username": "octocat"}}}`
		req := signedRequest(t, f.secret, payload)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeResponse(t, rec)
		assert.Equal(t, true, body["received"])
		assert.Equal(t, "failed to send GitHub invite", body["warning"])
		assert.Equal(t, "Validation Failed", body["error"])
		assert.NotContains(t, body, "success")
	})
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	t.Run("health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	})

	t.Run("metrics endpoint serves prometheus format", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
