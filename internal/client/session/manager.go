// Package session keeps the client's authenticated session: it restores
// tokens at startup, attaches the bearer to every call and silently renews an
// expired access token once before giving up.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"go-social-feed/internal/client/credstore"
	"go-social-feed/internal/model"
)

const defaultTimeout = 15 * time.Second

// ErrUnauthorized means the session is gone: the refresh failed or there was
// nothing to refresh with. Tokens have been cleared.
var ErrUnauthorized = errors.New("session: unauthorized")

// APIError is a non-2xx reply other than the 401s handled by the manager.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Session struct {
	User            *model.PublicUser
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	IsLoading       bool
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithTimeout bounds every network call, refreshes included.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithOnLogout registers a callback run after the session is cleared.
func WithOnLogout(fn func()) Option {
	return func(m *Manager) { m.onLogout = fn }
}

type Manager struct {
	baseURL  string
	client   *http.Client
	store    credstore.Store
	timeout  time.Duration
	onLogout func()

	mu        sync.RWMutex
	session   Session
	refreshes singleflight.Group
}

func New(baseURL string, store credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
		store:   store,
		timeout: defaultTimeout,
		session: Session{IsLoading: true},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Restore runs once at startup. With both tokens stored it refreshes
// proactively; otherwise, or when that refresh fails, the store is cleared and
// the session stays unauthenticated. Only store I/O errors are returned.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	m.session.IsLoading = true
	m.mu.Unlock()

	access, hasAccess, err := m.store.Get(ctx, credstore.KeyAccessToken)
	if err != nil {
		m.reset()
		return fmt.Errorf("load access token: %w", err)
	}
	refresh, hasRefresh, err := m.store.Get(ctx, credstore.KeyRefreshToken)
	if err != nil {
		m.reset()
		return fmt.Errorf("load refresh token: %w", err)
	}

	if !hasAccess || !hasRefresh || access == "" || refresh == "" {
		m.reset()
		return credstore.Clear(ctx, m.store)
	}

	pair, err := m.requestRefresh(ctx, refresh)
	if err != nil {
		slog.Debug("session restore failed", "error", err)
		m.reset()
		return credstore.Clear(ctx, m.store)
	}

	if err := m.persist(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		m.reset()
		return err
	}

	m.mu.Lock()
	m.session = Session{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, IsAuthenticated: true}
	m.mu.Unlock()

	var user model.PublicUser
	if err := m.Do(ctx, http.MethodGet, "/auth/me", nil, &user); err == nil {
		m.mu.Lock()
		m.session.User = &user
		m.mu.Unlock()
	}

	return nil
}

func (m *Manager) Signup(ctx context.Context, req model.SignupRequest) (model.PublicUser, error) {
	return m.authenticate(ctx, "/auth/signup", req)
}

func (m *Manager) Login(ctx context.Context, req model.LoginRequest) (model.PublicUser, error) {
	return m.authenticate(ctx, "/auth/login", req)
}

// Logout revokes the refresh token on the server when it can, then always
// clears local state.
func (m *Manager) Logout(ctx context.Context) error {
	s := m.Session()
	if s.AccessToken != "" && s.RefreshToken != "" {
		if _, _, err := m.roundTrip(ctx, http.MethodPost, "/auth/logout", model.RefreshRequest{RefreshToken: s.RefreshToken}, s.AccessToken); err != nil {
			slog.Debug("server logout failed", "error", err)
		}
	}

	return m.expire(ctx)
}

// Do calls the API with the current bearer and decodes data into out.
func (m *Manager) Do(ctx context.Context, method string, path string, body any, out any) error {
	_, err := m.DoPage(ctx, method, path, body, out)
	return err
}

// DoPage is Do for list endpoints that also return pagination.
func (m *Manager) DoPage(ctx context.Context, method string, path string, body any, out any) (*model.Pagination, error) {
	token := m.Session().AccessToken

	status, env, err := m.roundTrip(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		if err := m.refresh(ctx, token); err != nil {
			return nil, ErrUnauthorized
		}

		status, env, err = m.roundTrip(ctx, method, path, body, m.Session().AccessToken)
		if err != nil {
			return nil, err
		}
		// One replay only.
		if status == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
	}

	if status >= 400 || !env.Success {
		return nil, &APIError{Status: status, Code: env.Code, Message: env.Error}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return env.Pagination, nil
}

// refresh coalesces concurrent renewals into one request. failedToken is the
// access token the caller was rejected with; if it has already been replaced
// the caller just retries.
func (m *Manager) refresh(ctx context.Context, failedToken string) error {
	// Detached so one caller's cancellation does not fail everyone sharing the flight.
	ctx = context.WithoutCancel(ctx)

	_, err, _ := m.refreshes.Do("refresh", func() (any, error) {
		current := m.Session()
		if current.AccessToken != "" && current.AccessToken != failedToken {
			return nil, nil
		}

		refreshToken := current.RefreshToken
		if refreshToken == "" {
			stored, ok, err := m.store.Get(ctx, credstore.KeyRefreshToken)
			if err == nil && ok {
				refreshToken = stored
			}
		}
		if refreshToken == "" {
			if current.IsAuthenticated {
				_ = m.expire(ctx)
			}
			return nil, ErrUnauthorized
		}

		pair, err := m.requestRefresh(ctx, refreshToken)
		if err != nil {
			slog.Debug("token refresh failed", "error", err)
			_ = m.expire(ctx)
			return nil, ErrUnauthorized
		}

		if err := m.persist(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
			slog.Warn("could not persist refreshed tokens", "error", err)
		}

		m.mu.Lock()
		m.session.AccessToken = pair.AccessToken
		m.session.RefreshToken = pair.RefreshToken
		m.session.IsAuthenticated = true
		m.mu.Unlock()

		return nil, nil
	})
	return err
}

func (m *Manager) requestRefresh(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	status, env, err := m.roundTrip(ctx, http.MethodPost, "/auth/refresh", model.RefreshRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return model.TokenPair{}, err
	}
	if status != http.StatusOK || !env.Success {
		return model.TokenPair{}, &APIError{Status: status, Code: env.Code, Message: env.Error}
	}

	var pair model.TokenPair
	if err := json.Unmarshal(env.Data, &pair); err != nil || pair.AccessToken == "" || pair.RefreshToken == "" {
		return model.TokenPair{}, fmt.Errorf("malformed refresh response")
	}
	return pair, nil
}

func (m *Manager) authenticate(ctx context.Context, path string, body any) (model.PublicUser, error) {
	status, env, err := m.roundTrip(ctx, http.MethodPost, path, body, "")
	if err != nil {
		return model.PublicUser{}, err
	}
	if status >= 400 || !env.Success {
		return model.PublicUser{}, &APIError{Status: status, Code: env.Code, Message: env.Error}
	}

	var result model.AuthResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return model.PublicUser{}, fmt.Errorf("decode auth response: %w", err)
	}

	if err := m.persist(ctx, result.AccessToken, result.RefreshToken); err != nil {
		return model.PublicUser{}, err
	}

	user := result.User
	m.mu.Lock()
	m.session = Session{
		User:            &user,
		AccessToken:     result.AccessToken,
		RefreshToken:    result.RefreshToken,
		IsAuthenticated: true,
	}
	m.mu.Unlock()

	return user, nil
}

func (m *Manager) persist(ctx context.Context, access string, refresh string) error {
	if err := m.store.Set(ctx, credstore.KeyAccessToken, access); err != nil {
		return err
	}
	return m.store.Set(ctx, credstore.KeyRefreshToken, refresh)
}

// reset reports whether the session was authenticated before it was cleared.
func (m *Manager) reset() bool {
	m.mu.Lock()
	wasAuthenticated := m.session.IsAuthenticated
	m.session = Session{}
	m.mu.Unlock()
	return wasAuthenticated
}

// expire clears tokens everywhere. The host is notified only on the
// transition out of an authenticated session.
func (m *Manager) expire(ctx context.Context) error {
	wasAuthenticated := m.reset()
	err := credstore.Clear(ctx, m.store)
	if wasAuthenticated && m.onLogout != nil {
		m.onLogout()
	}
	return err
}

type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Error      string            `json:"error"`
	Code       string            `json:"code"`
	Pagination *model.Pagination `json:"pagination"`
}

// roundTrip performs one request under the manager's timeout. Transport
// failures, timeouts included, come back as err.
func (m *Manager) roundTrip(ctx context.Context, method string, path string, body any, token string) (int, envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return resp.StatusCode, envelope{}, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return resp.StatusCode, env, nil
}
