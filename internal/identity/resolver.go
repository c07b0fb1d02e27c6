// Package identity walks feature record -> profile -> user to find the
// account that owns a request.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jobpilot-edge/internal/apperror"
	"jobpilot-edge/internal/models"
)

// ErrNoRows is returned by a Store when the looked-up row does not exist.
var ErrNoRows = errors.New("identity: no rows")

// Kind tells the resolver what an incoming identifier points at.
type Kind string

const (
	KindFeatureRecord Kind = "feature_record"
	KindProfile       Kind = "profile"
)

// Lookup describes where an identifier lives.
type Lookup struct {
	Kind     Kind
	Table    string // feature table, ignored for KindProfile
	Resource string // human name used in error messages
}

// Store is the read-only persistence the chain needs.
type Store interface {
	FeatureRecord(ctx context.Context, table, id string) (*models.FeatureRecord, error)
	Profile(ctx context.Context, id string) (*models.UserProfile, error)
	ProfileByTelegramChat(ctx context.Context, chatID int64) (*models.UserProfile, error)
}

// Owner is a fully resolved chain. Record is nil for profile lookups.
type Owner struct {
	UserID  string
	Profile *models.UserProfile
	Record  *models.FeatureRecord
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps id to its owning user. It returns exactly one Owner or an
// *apperror.AppError with RECORD_NOT_FOUND or PROFILE_NOT_FOUND.
func (r *Resolver) Resolve(ctx context.Context, lookup Lookup, id string) (*Owner, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.MissingParameter(idField(lookup))
	}

	switch lookup.Kind {
	case KindFeatureRecord:
		return r.resolveRecord(ctx, lookup, id)
	case KindProfile:
		profile, err := r.profile(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Owner{UserID: profile.UserID, Profile: profile}, nil
	default:
		return nil, apperror.Internal(fmt.Errorf("identity: unknown lookup kind %q", lookup.Kind))
	}
}

// ResolveTelegramChat finds the owner of the profile bound to a Telegram chat.
func (r *Resolver) ResolveTelegramChat(ctx context.Context, chatID int64) (*Owner, error) {
	profile, err := r.store.ProfileByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, apperror.ProfileNotFound(fmt.Sprintf("telegram:%d", chatID))
		}
		return nil, apperror.Internal(fmt.Errorf("identity: profile for chat %d: %w", chatID, err))
	}
	if profile.UserID == "" {
		return nil, apperror.ProfileNotFound(profile.ID)
	}
	return &Owner{UserID: profile.UserID, Profile: profile}, nil
}

func (r *Resolver) resolveRecord(ctx context.Context, lookup Lookup, id string) (*Owner, error) {
	record, err := r.store.FeatureRecord(ctx, lookup.Table, id)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, apperror.RecordNotFound(resourceName(lookup), id)
		}
		return nil, apperror.Internal(fmt.Errorf("identity: %s %s: %w", lookup.Table, id, err))
	}

	// user_id on a feature table is a profile id.
	profile, err := r.profile(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	return &Owner{UserID: profile.UserID, Profile: profile, Record: record}, nil
}

func (r *Resolver) profile(ctx context.Context, id string) (*models.UserProfile, error) {
	if id == "" {
		return nil, apperror.ProfileNotFound(id)
	}
	profile, err := r.store.Profile(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, apperror.ProfileNotFound(id)
		}
		return nil, apperror.Internal(fmt.Errorf("identity: profile %s: %w", id, err))
	}
	if profile.UserID == "" {
		return nil, apperror.ProfileNotFound(id)
	}
	return profile, nil
}

func resourceName(l Lookup) string {
	if l.Resource != "" {
		return l.Resource
	}
	return l.Table
}

func idField(l Lookup) string {
	if l.Kind == KindProfile {
		return "user_profile_id"
	}
	return resourceName(l) + " id"
}
