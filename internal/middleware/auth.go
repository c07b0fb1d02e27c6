package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"jobpilot-edge/internal/apperror"
)

type contextKey string

const subjectKey contextKey = "subject"

// BearerAuth validates HS256 tokens issued by the identity provider.
type BearerAuth struct {
	secret []byte
	issuer string
}

func NewBearerAuth(secret, issuer string) (*BearerAuth, error) {
	if len(secret) < 16 {
		return nil, errors.New("middleware: JWT secret must be at least 16 characters")
	}
	return &BearerAuth{secret: []byte(secret), issuer: issuer}, nil
}

// Validate returns the token subject if tokenStr is valid.
func (a *BearerAuth) Validate(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("token expired")
		}
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// RequireBearer rejects requests without a valid Authorization bearer token.
// deny writes the rejection so responses keep the service's error shape.
func RequireBearer(auth *BearerAuth, deny func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				deny(w, apperror.Unauthorized("bearer token required"))
				return
			}
			subject, err := auth.Validate(raw)
			if err != nil {
				deny(w, apperror.Unauthorized(err.Error()))
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}
