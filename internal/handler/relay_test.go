package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/handler"
	"jobpilot-edge/internal/relay"
	"jobpilot-edge/pkg/logger"
)

const jobAnalysisBody = `{"webhook_type":"job_analysis","job_analysis":{"id":"j1"}}`

func relayHandler(routes relay.Routes) http.Handler {
	return http.HandlerFunc(handler.NewRelayHandler(relay.New(routes, nil, "web-app", logger.NewNop()), logger.NewNop()).Handle)
}

func TestRelayMirrorsStatusAndBody(t *testing.T) {
	var execID string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		execID = r.Header.Get(relay.HeaderExecutionID)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"analysis_id":"a1"}`))
	}))
	defer downstream.Close()

	h := relayHandler(relay.Routes{relay.KindJobAnalysis: downstream.URL})
	req := httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader(jobAnalysisBody))
	req.Header.Set("x-execution-id", "exec-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 201, body["status"])
	assert.Equal(t, map[string]interface{}{"analysis_id": "a1"}, body["data"])
	meta := body["relay"].(map[string]interface{})
	assert.Equal(t, "exec-42", meta["execution_id"])
	assert.Equal(t, "job_analysis", meta["webhook_type"])
	assert.Equal(t, relay.Fingerprint([]byte(jobAnalysisBody)), meta["fingerprint"])
	assert.Equal(t, "exec-42", execID)
}

func TestRelayDownstreamErrorText(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}))
	defer downstream.Close()

	rec := post(relayHandler(relay.Routes{relay.KindJobAnalysis: downstream.URL}), jobAnalysisBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "busy", body["data"])
}

func TestRelayMissingURL(t *testing.T) {
	rec := post(relayHandler(relay.Routes{}), jobAnalysisBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeConfiguration, decode(t, rec)["error"])
}

func TestRelayBadPayload(t *testing.T) {
	rec := post(relayHandler(relay.Routes{}), `{"job_analysis":{}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperror.CodeMissingParameter, decode(t, rec)["error"])
}

func TestRelayUnreachable(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := downstream.URL
	downstream.Close()

	rec := post(relayHandler(relay.Routes{relay.KindJobAnalysis: url}), jobAnalysisBody)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, apperror.CodeUpstream, decode(t, rec)["error"])
}

func TestRelayTextBodyStaysText(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("42"))
	}))
	defer downstream.Close()

	rec := post(relayHandler(relay.Routes{relay.KindJobAnalysis: downstream.URL}), jobAnalysisBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "42", body["data"])
	assert.Equal(t, "text/plain; charset=utf-8", body["content_type"])
}
