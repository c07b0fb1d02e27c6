// Package relay forwards front-end requests to the external workflow engine.
package relay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/pkg/logger"
)

// Headers carried through to the downstream call.
const (
	HeaderFingerprint = "X-Fingerprint"
	HeaderSource      = "X-Source"
	HeaderWebhookType = "X-Webhook-Type"
	HeaderExecutionID = "X-Execution-Id"
	HeaderTimestamp   = "X-Relay-Timestamp"
)

const maxResponseBytes = 10 << 20

// Routes maps a kind to its downstream URL.
type Routes map[Kind]string

// Metadata is attached to every forwarded call so the workflow engine can
// trace and de-duplicate. The relay itself stores nothing.
type Metadata struct {
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	ExecutionID string    `json:"execution_id"`
	WebhookType Kind      `json:"webhook_type"`
	ForwardedAt time.Time `json:"forwarded_at"`
}

// Response mirrors what the workflow engine returned.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	Metadata    Metadata
}

type Relay struct {
	routes Routes
	client *http.Client
	source string
	logger *logger.Logger
	now    func() time.Time
}

func New(routes Routes, client *http.Client, source string, logger *logger.Logger) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	if source == "" {
		source = "web-app"
	}
	return &Relay{
		routes: routes,
		client: client,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// Forward sends p to the configured URL for its kind. A missing URL is a
// configuration error and no outbound call is made.
func (r *Relay) Forward(ctx context.Context, p *Payload, meta Metadata) (*Response, error) {
	url := strings.TrimSpace(r.routes[p.Kind])
	if url == "" {
		r.logger.Error("webhook URL not configured", "webhook_type", p.Kind, "env", p.Kind.EnvVar())
		return nil, apperror.Configuration(fmt.Sprintf("no webhook URL configured for %s (set %s)", p.Kind, p.Kind.EnvVar()))
	}

	meta = r.fill(p, meta)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(p.Raw))
	if err != nil {
		return nil, apperror.Configuration(fmt.Sprintf("invalid webhook URL for %s: %v", p.Kind, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderFingerprint, meta.Fingerprint)
	req.Header.Set(HeaderSource, meta.Source)
	req.Header.Set(HeaderWebhookType, string(p.Kind))
	req.Header.Set(HeaderExecutionID, meta.ExecutionID)
	req.Header.Set(HeaderTimestamp, meta.ForwardedAt.Format(time.RFC3339Nano))

	start := r.now()
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("workflow call failed", "webhook_type", p.Kind, "execution_id", meta.ExecutionID, "error", err)
		return nil, apperror.Upstream("workflow engine unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperror.Upstream("reading workflow engine response", err)
	}

	r.logger.Info("webhook relayed",
		"webhook_type", p.Kind,
		"execution_id", meta.ExecutionID,
		"fingerprint", meta.Fingerprint,
		"status", resp.StatusCode,
		"duration", r.now().Sub(start),
	)

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Metadata:    meta,
	}, nil
}

func (r *Relay) fill(p *Payload, meta Metadata) Metadata {
	meta.WebhookType = p.Kind
	if meta.Fingerprint == "" {
		meta.Fingerprint = Fingerprint(p.Raw)
	}
	if meta.Source == "" {
		meta.Source = r.source
	}
	if meta.ExecutionID == "" {
		meta.ExecutionID = uuid.NewString()
	}
	if meta.ForwardedAt.IsZero() {
		meta.ForwardedAt = r.now().UTC()
	}
	return meta
}

// Fingerprint is the hex SHA-256 of the payload bytes.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
