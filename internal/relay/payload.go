package relay

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"jobpilot-edge/internal/apperror"
)

// Kind is the explicit discriminator of a relay payload.
type Kind string

const (
	KindJobAnalysis     Kind = "job_analysis"
	KindCoverLetter     Kind = "cover_letter"
	KindLinkedInPost    Kind = "linkedin_post"
	KindCompanyAnalysis Kind = "company_analysis"
	KindInterviewPrep   Kind = "interview_prep"
	KindResume          Kind = "resume"
)

type kindRoute struct {
	field string // payload field carrying the typed data
	env   string // environment variable naming the downstream URL
}

var kinds = map[Kind]kindRoute{
	KindJobAnalysis:     {field: "job_analysis", env: "N8N_JG_WEBHOOK_URL"},
	KindCoverLetter:     {field: "job_cover_letter", env: "N8N_COVER_LETTER_WEBHOOK_URL"},
	KindLinkedInPost:    {field: "job_linkedin", env: "N8N_LINKEDIN_WEBHOOK_URL"},
	KindCompanyAnalysis: {field: "company_role_analysis", env: "N8N_COMPANY_WEBHOOK_URL"},
	KindInterviewPrep:   {field: "interview_prep", env: "N8N_INTERVIEW_WEBHOOK_URL"},
	KindResume:          {field: "resume_request", env: "N8N_RESUME_WEBHOOK_URL"},
}

// Kinds returns every known kind in stable order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DataField is the payload field that carries data for k.
func (k Kind) DataField() string { return kinds[k].field }

// EnvVar is the environment variable that configures k's downstream URL.
func (k Kind) EnvVar() string { return kinds[k].env }

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Payload is a decoded relay request. Raw is forwarded untouched.
type Payload struct {
	Kind      Kind
	EventType string
	Timestamp string
	User      json.RawMessage
	Data      json.RawMessage
	Raw       []byte
}

type envelope struct {
	WebhookType string          `json:"webhook_type"`
	EventType   string          `json:"event_type"`
	Timestamp   string          `json:"timestamp"`
	User        json.RawMessage `json:"user"`
}

// Parse decodes body into a Payload. webhook_type is required and the
// matching data object must be present; no other kind's data may be.
func Parse(body []byte) (*Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperror.InvalidBody(err)
	}

	kind := Kind(strings.TrimSpace(env.WebhookType))
	if kind == "" {
		return nil, apperror.MissingParameter("webhook_type")
	}
	if !kind.Valid() {
		return nil, apperror.Validation(apperror.CodeInvalidBody, fmt.Sprintf("unknown webhook_type %q", kind))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, apperror.InvalidBody(err)
	}

	data, ok := fields[kind.DataField()]
	if !ok || isNull(data) {
		return nil, apperror.MissingParameter(kind.DataField())
	}
	for other, route := range kinds {
		if other == kind {
			continue
		}
		if v, present := fields[route.field]; present && !isNull(v) {
			return nil, apperror.Validation(apperror.CodeInvalidBody,
				fmt.Sprintf("webhook_type %s does not match payload field %s", kind, route.field))
		}
	}

	return &Payload{
		Kind:      kind,
		EventType: env.EventType,
		Timestamp: env.Timestamp,
		User:      env.User,
		Data:      data,
		Raw:       body,
	}, nil
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || string(v) == "null"
}
