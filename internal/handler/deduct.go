// Package handler holds the HTTP handlers of the edge service.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/credits"
	"jobpilot-edge/pkg/logger"
)

const maxDeductBody = 1 << 20

type Charger interface {
	Charge(ctx context.Context, f credits.Feature, req credits.Request) (*credits.Result, error)
}

type DeductHandler struct {
	charger Charger
	logger  *logger.Logger
}

func NewDeductHandler(charger Charger, logger *logger.Logger) *DeductHandler {
	return &DeductHandler{charger: charger, logger: logger}
}

// Handle returns the handler for one priced feature. The body is
// {"<id field>": "...", "description": "..."}.
func (h *DeductHandler) Handle(f credits.Feature) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDeductBody)).Decode(&body); err != nil {
			WriteError(w, apperror.InvalidBody(err))
			return
		}

		id, _ := body[f.IDField].(string)
		if strings.TrimSpace(id) == "" {
			WriteError(w, apperror.MissingParameter(f.IDField))
			return
		}
		desc, _ := body["description"].(string)

		result, err := h.charger.Charge(r.Context(), f, credits.Request{ID: id, Description: desc})
		if err != nil {
			h.logFailure(f, id, err)
			WriteError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, deductResponse(f, id, result))
	}
}

func (h *DeductHandler) logFailure(f credits.Feature, id string, err error) {
	status := StatusOf(err)
	args := []interface{}{"feature", f.Key, f.IDField, id, "code", apperror.CodeOf(err), "error", err}
	if status >= http.StatusInternalServerError {
		h.logger.Error("deduction failed", args...)
		return
	}
	h.logger.Warn("deduction rejected", args...)
}

func deductResponse(f credits.Feature, id string, r *credits.Result) map[string]interface{} {
	resp := map[string]interface{}{
		"success":          true,
		"feature":          r.Feature,
		f.IDField:          id,
		"user_profile_id":  r.ProfileID,
		"pool":             r.Pool,
		"credits_deducted": number(r.Deducted),
		"previous_balance": number(r.PreviousBalance),
		"new_balance":      number(r.NewBalance),
		"description":      r.Description,
	}
	if r.CompanyName != "" {
		resp["company_name"] = r.CompanyName
	}
	if r.JobTitle != "" {
		resp["job_title"] = r.JobTitle
	}
	return resp
}
