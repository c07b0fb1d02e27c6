package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// State is where a cached token sits in its lifetime.
type State int

const (
	StateAbsent State = iota
	StateValid
	StateExpiringSoon
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateExpiringSoon:
		return "expiring-soon"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrNoExpiry = errors.New("session: token has no exp claim")

// Expiry decodes the exp claim of a JWT without verifying its signature.
// The identity provider verifies; the cache only needs to know when to refresh.
func Expiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("session: decoding token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("session: reading exp: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrNoExpiry
	}
	return exp.Time, nil
}

func stateAt(token string, expiry, now time.Time, buffer time.Duration) State {
	switch {
	case token == "":
		return StateAbsent
	case !now.Before(expiry):
		return StateExpired
	case !now.Add(buffer).Before(expiry):
		return StateExpiringSoon
	default:
		return StateValid
	}
}
