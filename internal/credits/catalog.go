package credits

import (
	"sort"

	"github.com/shopspring/decimal"

	"jobpilot-edge/internal/identity"
)

// Pool selects which balance a feature is charged against.
type Pool string

const (
	PoolGeneral     Pool = "general"
	PoolAIInterview Pool = "ai_interview"
)

// Feature is the configuration record for one charged feature.
type Feature struct {
	Key         string          // route key, e.g. "cover-letter"
	Tag         string          // feature_used written to the ledger
	Price       decimal.Decimal // fixed price per request
	Pool        Pool
	IDField     string // request body field carrying the identifier
	Lookup      identity.Lookup
	Telegram    bool   // request originates from the Telegram bot
	Description string // default ledger description
}

func record(table, resource string) identity.Lookup {
	return identity.Lookup{Kind: identity.KindFeatureRecord, Table: table, Resource: resource}
}

var profileLookup = identity.Lookup{Kind: identity.KindProfile, Resource: "user profile"}

// Catalog indexes features by route key.
type Catalog map[string]Feature

// DefaultCatalog returns the priced feature set.
func DefaultCatalog() Catalog {
	features := []Feature{
		{
			Key:         "resume",
			Tag:         "resume_generation",
			Price:       decimal.RequireFromString("2"),
			Pool:        PoolGeneral,
			IDField:     "resume_id",
			Lookup:      record("resume_requests", "resume request"),
			Description: "Resume generation",
		},
		{
			Key:         "cover-letter",
			Tag:         "cover_letter",
			Price:       decimal.RequireFromString("1.5"),
			Pool:        PoolGeneral,
			IDField:     "cover_letter_id",
			Lookup:      record("job_cover_letter", "cover letter"),
			Description: "Cover letter generation",
		},
		{
			Key:         "job-analysis",
			Tag:         "job_analysis",
			Price:       decimal.RequireFromString("1.0"),
			Pool:        PoolGeneral,
			IDField:     "job_analysis_id",
			Lookup:      record("job_analysis", "job analysis"),
			Description: "Job analysis",
		},
		{
			Key:         "interview-prep",
			Tag:         "interview_prep",
			Price:       decimal.RequireFromString("2.0"),
			Pool:        PoolGeneral,
			IDField:     "interview_prep_id",
			Lookup:      record("interview_prep", "interview prep"),
			Description: "Interview preparation",
		},
		{
			Key:         "interview-prep-telegram",
			Tag:         "interview_prep_telegram",
			Price:       decimal.RequireFromString("6.0"),
			Pool:        PoolGeneral,
			IDField:     "user_profile_id",
			Lookup:      profileLookup,
			Telegram:    true,
			Description: "Interview preparation (Telegram)",
		},
		{
			Key:         "linkedin-image",
			Tag:         "linkedin_image",
			Price:       decimal.RequireFromString("1.5"),
			Pool:        PoolGeneral,
			IDField:     "linkedin_post_id",
			Lookup:      record("job_linkedin", "LinkedIn post"),
			Description: "LinkedIn post image",
		},
		{
			Key:         "visa-info",
			Tag:         "visa_sponsorship",
			Price:       decimal.RequireFromString("2.0"),
			Pool:        PoolGeneral,
			IDField:     "user_profile_id",
			Lookup:      profileLookup,
			Telegram:    true,
			Description: "Visa sponsorship lookup (Telegram)",
		},
		{
			Key:         "ai-phone-interview",
			Tag:         "ai_phone_interview",
			Price:       decimal.RequireFromString("1"),
			Pool:        PoolAIInterview,
			IDField:     "user_profile_id",
			Lookup:      profileLookup,
			Description: "AI phone interview",
		},
	}

	c := make(Catalog, len(features))
	for _, f := range features {
		c[f.Key] = f
	}
	return c
}

// Get returns the feature registered under key.
func (c Catalog) Get(key string) (Feature, bool) {
	f, ok := c[key]
	return f, ok
}

// Keys returns the registered route keys in stable order.
func (c Catalog) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
