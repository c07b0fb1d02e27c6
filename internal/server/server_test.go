package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/credits"
	"jobpilot-edge/internal/identity"
	"jobpilot-edge/internal/middleware"
	"jobpilot-edge/internal/models"
	"jobpilot-edge/internal/relay"
	"jobpilot-edge/internal/server"
	"jobpilot-edge/internal/testutil"
	"jobpilot-edge/pkg/logger"
)

const secret = "0123456789abcdef0123"

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func router(t *testing.T, auth bool) (http.Handler, *testutil.MemStore) {
	t.Helper()
	store := testutil.NewMemStore()
	store.AddProfile(models.UserProfile{ID: "p1", UserID: "u1"})
	store.AddRecord("resume_requests", models.FeatureRecord{ID: "r1", UserID: "p1"})
	store.SetBalance("u1", "5")

	deps := server.Deps{
		Catalog: credits.DefaultCatalog(),
		Charger: credits.NewCharger(identity.NewResolver(store), store, logger.NewNop()),
		Relay:   relay.New(relay.Routes{}, nil, "", logger.NewNop()),
		DB:      pinger{},
	}
	if auth {
		a, err := middleware.NewBearerAuth(secret, "")
		require.NoError(t, err)
		deps.Auth = a
	}
	return server.NewRouter(deps, logger.NewNop()), store
}

func do(h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func code(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	s, _ := body["error"].(string)
	return s
}

func TestEveryFeatureIsRouted(t *testing.T) {
	h, _ := router(t, false)
	for _, key := range credits.DefaultCatalog().Keys() {
		rec := do(h, http.MethodPost, "/deduct/"+key, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, key)
		assert.Equal(t, apperror.CodeMissingParameter, code(t, rec), key)
	}
}

func TestDeductThroughRouter(t *testing.T) {
	h, store := router(t, false)

	rec := do(h, http.MethodPost, "/deduct/resume", `{"resume_id":"r1"}`, "Origin", "https://app.example")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "3", store.Balance("u1").String())
}

func TestPreflightOnAnyRoute(t *testing.T) {
	h, _ := router(t, true)
	for _, path := range []string{"/deduct/resume", "/relay", "/nowhere"} {
		rec := do(h, http.MethodOptions, path, "",
			"Origin", "https://app.example",
			"Access-Control-Request-Method", http.MethodPost)
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}
}

func TestWrongMethod(t *testing.T) {
	h, _ := router(t, false)

	rec := do(h, http.MethodGet, "/deduct/resume", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, apperror.CodeMethodNotAllowed, code(t, rec))
}

func TestUnknownRoute(t *testing.T) {
	h, _ := router(t, false)

	rec := do(h, http.MethodPost, "/deduct/horoscope", `{}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperror.CodeRouteNotFound, code(t, rec))
}

func TestRelayRequiresBearerWhenConfigured(t *testing.T) {
	h, _ := router(t, true)
	body := `{"webhook_type":"resume","resume_request":{"id":"r1"}}`

	rec := do(h, http.MethodPost, "/relay", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperror.CodeUnauthorized, code(t, rec))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	// Authorized, but no downstream URL is configured for resume.
	rec = do(h, http.MethodPost, "/relay", body, "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeConfiguration, code(t, rec))
}

func TestBillingRoutesAbsentWithoutStripe(t *testing.T) {
	h, _ := router(t, false)

	rec := do(h, http.MethodPost, "/webhook/stripe", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := router(t, false)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)

	down := server.NewRouter(server.Deps{
		Catalog: credits.DefaultCatalog(),
		DB:      pinger{err: errors.New("down")},
	}, logger.NewNop())
	assert.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/health", "").Code)
}
