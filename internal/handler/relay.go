package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/relay"
	"jobpilot-edge/pkg/logger"
)

const maxRelayBody = 10 << 20

type Forwarder interface {
	Forward(ctx context.Context, p *relay.Payload, meta relay.Metadata) (*relay.Response, error)
}

type RelayHandler struct {
	relay  Forwarder
	logger *logger.Logger
}

func NewRelayHandler(f Forwarder, logger *logger.Logger) *RelayHandler {
	return &RelayHandler{relay: f, logger: logger}
}

type relayResponse struct {
	Success     bool           `json:"success"`
	Status      int            `json:"status"`
	ContentType string         `json:"content_type,omitempty"`
	Data        interface{}    `json:"data"`
	Relay       relay.Metadata `json:"relay"`
}

// Handle forwards the body to the workflow engine and mirrors its status.
func (h *RelayHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRelayBody))
	if err != nil {
		WriteError(w, apperror.InvalidBody(err))
		return
	}

	payload, err := relay.Parse(body)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp, err := h.relay.Forward(r.Context(), payload, relay.Metadata{
		Fingerprint: r.Header.Get(relay.HeaderFingerprint),
		Source:      r.Header.Get(relay.HeaderSource),
		ExecutionID: r.Header.Get(relay.HeaderExecutionID),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, resp.Status, relayResponse{
		Success:     resp.Status < http.StatusBadRequest,
		Status:      resp.Status,
		ContentType: resp.ContentType,
		Data:        decodeData(resp.Body, resp.ContentType),
		Relay:       resp.Metadata,
	})
}

// decodeData returns JSON bodies as-is and anything else as a string. A
// text/* content type is always passed through as a string.
func decodeData(body []byte, contentType string) interface{} {
	if len(body) == 0 {
		return nil
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "text/") {
		return string(body)
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
