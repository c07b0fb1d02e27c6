package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"MissingParameter is validation", MissingParameter("resume_id"), ErrValidation, true},
		{"RecordNotFound is not found", RecordNotFound("resume request", "r1"), ErrNotFound, true},
		{"ProfileNotFound is not found", ProfileNotFound("p1"), ErrNotFound, true},
		{"CreditsRecordNotFound is not found", CreditsRecordNotFound("u1"), ErrNotFound, true},
		{"InsufficientCredits kind", InsufficientCredits(decimal.NewFromInt(1), decimal.NewFromInt(6)), ErrInsufficientCredits, true},
		{"DeductionFailed is upstream", DeductionFailed(errors.New("boom")), ErrUpstream, true},
		{"Configuration kind", Configuration("missing url"), ErrConfiguration, true},
		{"NotFound is not validation", RecordNotFound("x", "1"), ErrValidation, false},
		{"wrapped still matches", fmt.Errorf("credits: charging: %w", ProfileNotFound("p1")), ErrNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestCauseIsReachable(t *testing.T) {
	cause := errors.New("connection reset")
	err := DeductionFailed(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestInsufficientCreditsDetails(t *testing.T) {
	err := InsufficientCredits(decimal.RequireFromString("1.0"), decimal.RequireFromString("6.0"))

	require.Equal(t, CodeInsufficientCredits, err.Code)
	assert.True(t, decimal.RequireFromString("5").Equal(err.Details["shortfall"].(decimal.Decimal)))
	assert.True(t, decimal.RequireFromString("1").Equal(err.Details["current_balance"].(decimal.Decimal)))
}

func TestNotFoundCodesAreDistinct(t *testing.T) {
	codes := map[string]bool{
		RecordNotFound("cover letter", "c1").Code: true,
		ProfileNotFound("p1").Code:                true,
		CreditsRecordNotFound("u1").Code:          true,
	}
	assert.Len(t, codes, 3)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeProfileNotFound, CodeOf(fmt.Errorf("wrap: %w", ProfileNotFound("p"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
