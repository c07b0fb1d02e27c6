package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource issues a fresh access token from the identity provider.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// OAuth2Source fetches tokens with the client-credentials grant.
type OAuth2Source struct {
	Config clientcredentials.Config
}

func NewOAuth2Source(tokenURL, clientID, clientSecret string, scopes ...string) *OAuth2Source {
	return &OAuth2Source{Config: clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}}
}

func (s *OAuth2Source) Token(ctx context.Context) (string, error) {
	tok, err := s.Config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("session: token endpoint: %w", err)
	}
	return tok.AccessToken, nil
}

// Store persists the cached token between process runs.
type Store interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct {
	Path string
}

type storedToken struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

func (f FileStore) Load() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("session: reading %s: %w", f.Path, err)
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("session: decoding %s: %w", f.Path, err)
	}
	return st.AccessToken, nil
}

func (f FileStore) Save(token string) error {
	data, err := json.Marshal(storedToken{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("session: creating cache dir: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o600)
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: removing %s: %w", f.Path, err)
	}
	return nil
}
