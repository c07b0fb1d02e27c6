// Package client calls the edge service over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/credits"
)

// Tokens supplies bearer tokens. *session.Manager satisfies it.
type Tokens interface {
	ValidToken(ctx context.Context) (string, error)
	Invalidate()
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  Tokens
	idField map[string]string
}

// New returns a client for baseURL. tokens may be nil for open routes.
func New(baseURL string, httpClient *http.Client, tokens Tokens) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	fields := make(map[string]string)
	for key, f := range credits.DefaultCatalog() {
		fields[key] = f.IDField
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		tokens:  tokens,
		idField: fields,
	}
}

// APIError is a non-2xx answer from the service.
type APIError struct {
	Status  int
	Code    string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jobpilot: %d %s: %s", e.Status, e.Code, e.Message)
}

type DeductResult struct {
	Feature         string          `json:"feature"`
	ProfileID       string          `json:"user_profile_id"`
	Pool            string          `json:"pool"`
	Deducted        decimal.Decimal `json:"credits_deducted"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	CompanyName     string          `json:"company_name"`
	JobTitle        string          `json:"job_title"`
	Description     string          `json:"description"`
}

// Deduct charges feature (a route key such as "cover-letter") for id.
func (c *Client) Deduct(ctx context.Context, feature, id, description string) (*DeductResult, error) {
	field, ok := c.idField[feature]
	if !ok {
		return nil, fmt.Errorf("jobpilot: unknown feature %q", feature)
	}
	body := map[string]string{field: id}
	if description != "" {
		body["description"] = description
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var out DeductResult
	if _, err := c.do(ctx, "/deduct/"+feature, payload, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type RelayMetadata struct {
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	ExecutionID string    `json:"execution_id"`
	WebhookType string    `json:"webhook_type"`
	ForwardedAt time.Time `json:"forwarded_at"`
}

type RelayResult struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Relay   RelayMetadata   `json:"relay"`
}

// Relay forwards a raw relay payload. A downstream non-2xx status is
// reported in the result, not as an error.
func (c *Client) Relay(ctx context.Context, payload []byte, source string) (*RelayResult, error) {
	headers := http.Header{}
	if source != "" {
		headers.Set("X-Source", source)
	}

	var out RelayResult
	status, err := c.do(ctx, "/relay", payload, headers, &out)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && out.Relay.ExecutionID != "" {
			out.Status = apiErr.Status
			return &out, nil
		}
		return nil, err
	}
	out.Status = status
	return &out, nil
}

func (c *Client) do(ctx context.Context, path string, payload []byte, headers http.Header, out interface{}) (int, error) {
	status, body, err := c.send(ctx, path, payload, headers)
	if err != nil {
		return 0, err
	}
	if status == http.StatusUnauthorized && c.tokens != nil {
		c.tokens.Invalidate()
		if status, body, err = c.send(ctx, path, payload, headers); err != nil {
			return 0, err
		}
	}

	if status >= 300 {
		// Relay mirrors downstream failures with a normal result body.
		if out != nil {
			_ = json.Unmarshal(body, out)
		}
		apiErr := &APIError{Status: status}
		if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(status)
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return status, apiErr
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return status, fmt.Errorf("jobpilot: decoding response: %w", err)
		}
	}
	return status, nil
}

func (c *Client) send(ctx context.Context, path string, payload []byte, headers http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}

	if c.tokens != nil {
		tok, err := c.tokens.ValidToken(ctx)
		if err != nil {
			return 0, nil, fmt.Errorf("jobpilot: getting token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("jobpilot: POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("jobpilot: reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}
