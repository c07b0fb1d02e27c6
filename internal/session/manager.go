// Package session caches an identity-provider token and refreshes it once
// for all concurrent callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"jobpilot-edge/pkg/logger"
)

var (
	ErrBackoff   = errors.New("session: refresh backing off")
	ErrReconnect = errors.New("session: reconnect required")
)

type Backoff struct {
	Base           time.Duration
	Max            time.Duration
	ReconnectAfter int // consecutive failures before Reconnecting reports true
}

type Options struct {
	Store       Store
	Buffer      time.Duration
	JoinTimeout time.Duration
	Backoff     Backoff
	Logger      *logger.Logger
	Now         func() time.Time
}

func (o *Options) setDefaults() {
	if o.Buffer == 0 {
		o.Buffer = 5 * time.Minute
	}
	if o.JoinTimeout == 0 {
		o.JoinTimeout = 2 * time.Second
	}
	if o.Backoff.Base == 0 {
		o.Backoff.Base = time.Second
	}
	if o.Backoff.Max == 0 {
		o.Backoff.Max = 30 * time.Second
	}
	if o.Backoff.ReconnectAfter == 0 {
		o.Backoff.ReconnectAfter = 3
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

type Manager struct {
	source TokenSource
	opts   Options
	group  singleflight.Group

	mu          sync.Mutex
	token       string
	expiry      time.Time
	refreshing  bool
	failures    int
	nextAttempt time.Time
}

// NewManager builds a manager, seeding the cache from opts.Store if set.
func NewManager(source TokenSource, opts Options) *Manager {
	opts.setDefaults()
	m := &Manager{source: source, opts: opts}

	if opts.Store != nil {
		tok, err := opts.Store.Load()
		if err != nil {
			opts.Logger.Warn("could not load cached token", "error", err)
		} else if tok != "" {
			if exp, err := Expiry(tok); err == nil {
				m.token, m.expiry = tok, exp
			}
		}
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stateAt(m.token, m.expiry, m.opts.Now(), m.opts.Buffer)
}

// Reconnecting reports whether refresh has failed often enough that the
// caller should offer a reconnect instead of retrying silently.
func (m *Manager) Reconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures >= m.opts.Backoff.ReconnectAfter
}

// Invalidate drops the cached token, for example after a 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token, m.expiry = "", time.Time{}
	m.mu.Unlock()

	if m.opts.Store != nil {
		if err := m.opts.Store.Clear(); err != nil {
			m.opts.Logger.Warn("could not clear cached token", "error", err)
		}
	}
}

// ValidToken returns a token that is not expiring soon, refreshing once if
// needed. Callers that join an in-flight refresh wait at most JoinTimeout
// before falling back to a cached token that has not yet expired.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	now := m.opts.Now()
	cached := m.token
	state := stateAt(m.token, m.expiry, now, m.opts.Buffer)
	if state == StateValid {
		m.mu.Unlock()
		return cached, nil
	}
	if now.Before(m.nextAttempt) {
		err := m.backoffErrLocked(m.nextAttempt.Sub(now))
		m.mu.Unlock()
		if state == StateExpiringSoon {
			return cached, nil
		}
		return "", err
	}
	joining := m.refreshing
	m.mu.Unlock()

	usable := state == StateExpiringSoon

	// The refresh outlives any single caller's context so joiners are not
	// failed by the leader giving up.
	ch := m.group.DoChan("refresh", func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	var timeout <-chan time.Time
	if joining && usable {
		timer := time.NewTimer(m.opts.JoinTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			if usable {
				return cached, nil
			}
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-timeout:
		return cached, nil
	case <-ctx.Done():
		if usable {
			return cached, nil
		}
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.refreshing = true
	m.mu.Unlock()

	tok, err := m.source.Token(ctx)
	var exp time.Time
	if err == nil {
		exp, err = Expiry(tok)
	}

	m.mu.Lock()
	m.refreshing = false
	if err != nil {
		m.failures++
		wait := m.delay(m.failures)
		m.nextAttempt = m.opts.Now().Add(wait)
		failures := m.failures
		reconnect := failures >= m.opts.Backoff.ReconnectAfter
		m.mu.Unlock()

		m.opts.Logger.Warn("token refresh failed", "failures", failures, "retry_in", wait, "error", err)
		if reconnect {
			return "", fmt.Errorf("%w: %w", ErrReconnect, err)
		}
		return "", fmt.Errorf("session: refreshing token: %w", err)
	}

	m.token, m.expiry = tok, exp
	m.failures = 0
	m.nextAttempt = time.Time{}
	m.mu.Unlock()

	if m.opts.Store != nil {
		if err := m.opts.Store.Save(tok); err != nil {
			m.opts.Logger.Warn("could not persist token", "error", err)
		}
	}
	return tok, nil
}

// delay is min(Base * 2^(n-1), Max).
func (m *Manager) delay(n int) time.Duration {
	b := m.opts.Backoff
	if n < 1 {
		return 0
	}
	if n > 31 {
		return b.Max
	}
	d := b.Base << (n - 1)
	if d <= 0 || d > b.Max {
		return b.Max
	}
	return d
}

func (m *Manager) backoffErrLocked(wait time.Duration) error {
	if m.failures >= m.opts.Backoff.ReconnectAfter {
		return fmt.Errorf("%w: %w: retry in %s", ErrReconnect, ErrBackoff, wait)
	}
	return fmt.Errorf("%w: retry in %s", ErrBackoff, wait)
}
