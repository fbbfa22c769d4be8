package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPProvider talks to a GoTrue-compatible hosted auth API and persists
// the session through a TokenStore.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      TokenStore

	mu      sync.Mutex
	current *Session
	loaded  bool

	// refreshMu serializes refresh-token exchanges; refresh tokens are single use.
	refreshMu sync.Mutex

	listeners listenerSet
}

var _ Provider = (*HTTPProvider)(nil)

// HTTPOption configures an HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithTokenStore sets where the session is persisted. Defaults to a MemoryStore.
func WithTokenStore(s TokenStore) HTTPOption {
	return func(p *HTTPProvider) {
		if s != nil {
			p.store = s
		}
	}
}

// NewHTTPProvider creates a provider for the auth API at baseURL
// (e.g. https://project.example.com/auth/v1). apiKey is the public
// project key sent with every request.
func NewHTTPProvider(baseURL, apiKey string, opts ...HTTPOption) *HTTPProvider {
	p := &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      &MemoryStore{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

func (t *tokenResponse) session() *Session {
	s := &Session{
		User:         t.User,
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0).UTC()
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

// signUpResponse is either a full token response (auto-confirmed accounts)
// or the bare user (confirmation pending).
type signUpResponse struct {
	tokenResponse
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"user_metadata"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

// SignInWithPassword exchanges credentials for a session.
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	query := url.Values{"grant_type": {"password"}}
	if err := p.do(ctx, http.MethodPost, "/token", query, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, &Error{Status: http.StatusBadGateway, Code: "invalid_response", Message: "identity provider returned no session"}
	}

	session := resp.session()
	p.setCurrent(session)
	p.listeners.emit(EventSignedIn, session)
	return session.Clone(), nil
}

// SignUp creates an account. When the provider auto-confirms the account a
// session is established and EventSignedIn is emitted.
func (p *HTTPProvider) SignUp(ctx context.Context, email, password string, metadata Metadata) (*User, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var resp signUpResponse
	body := map[string]any{"email": email, "password": password, "data": metadata}
	if err := p.do(ctx, http.MethodPost, "/signup", nil, "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" && resp.User != nil {
		session := resp.session()
		p.setCurrent(session)
		p.listeners.emit(EventSignedIn, session)
		u := *session.User
		return &u, nil
	}

	return &User{
		ID:        resp.ID,
		Email:     resp.Email,
		CreatedAt: resp.CreatedAt,
		Metadata:  resp.Metadata,
	}, nil
}

// SignOut revokes the session remotely and always clears it locally.
func (p *HTTPProvider) SignOut(ctx context.Context) error {
	current := p.snapshot()

	var remoteErr error
	if current != nil && current.AccessToken != "" {
		remoteErr = p.do(ctx, http.MethodPost, "/logout", nil, current.AccessToken, nil, nil)
	}

	p.clear()
	p.listeners.emit(EventSignedOut, nil)

	if remoteErr != nil {
		return fmt.Errorf("signing out: %w", remoteErr)
	}
	return nil
}

// GetSession returns the current session, refreshing it when expired.
// A session the provider refuses to refresh is dropped and EventSignedOut
// is emitted.
func (p *HTTPProvider) GetSession(ctx context.Context) (*Session, error) {
	current := p.snapshot()
	if current == nil {
		return nil, nil
	}
	if !current.IsExpired() {
		return current, nil
	}
	return p.refresh(ctx, current)
}

func (p *HTTPProvider) refresh(ctx context.Context, stale *Session) (*Session, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	current := p.snapshot()
	if current == nil {
		return nil, nil
	}
	if current.AccessToken != stale.AccessToken && !current.IsExpired() {
		return current, nil
	}

	if current.RefreshToken == "" {
		slog.Warn("session expired without refresh token", "user", userID(current))
		p.clear()
		p.listeners.emit(EventSignedOut, nil)
		return nil, nil
	}

	var resp tokenResponse
	body := map[string]string{"refresh_token": current.RefreshToken}
	query := url.Values{"grant_type": {"refresh_token"}}
	if err := p.do(ctx, http.MethodPost, "/token", query, "", body, &resp); err != nil {
		var idErr *Error
		if errors.As(err, &idErr) {
			slog.Warn("session refresh rejected", "user", userID(current), "error", err)
			p.clear()
			p.listeners.emit(EventSignedOut, nil)
			return nil, nil
		}
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	session := resp.session()
	if session.User == nil {
		session.User = current.User
	}
	p.setCurrent(session)
	p.listeners.emit(EventTokenRefreshed, session)
	return session.Clone(), nil
}

// OnAuthStateChange registers fn for auth-state events.
func (p *HTTPProvider) OnAuthStateChange(fn Listener) Subscription {
	return p.listeners.add(fn)
}

// UpdateUser replaces the user's metadata.
func (p *HTTPProvider) UpdateUser(ctx context.Context, metadata Metadata) (*User, error) {
	current, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoSession
	}

	var user User
	body := map[string]any{"data": metadata}
	if err := p.do(ctx, http.MethodPut, "/user", nil, current.AccessToken, body, &user); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.current == nil || p.current.AccessToken != current.AccessToken {
		p.mu.Unlock()
		return &user, nil
	}
	u := user
	p.current.User = &u
	updated := p.current.Clone()
	p.mu.Unlock()

	p.persist(updated)
	p.listeners.emit(EventUserUpdated, updated)
	return &user, nil
}

func (p *HTTPProvider) snapshot() *Session {
	p.mu.Lock()
	recovered := false
	if !p.loaded {
		p.loaded = true
		stored, err := p.store.Load()
		switch {
		case err == nil:
			p.current = stored
			recovered = true
		case !errors.Is(err, ErrNoStoredSession):
			slog.Warn("failed to load stored session", "error", err)
		}
	}
	current := p.current.Clone()
	p.mu.Unlock()

	if recovered {
		p.listeners.emit(EventInitialSession, current)
	}
	return current
}

func (p *HTTPProvider) setCurrent(session *Session) {
	p.mu.Lock()
	p.current = session.Clone()
	p.loaded = true
	p.mu.Unlock()
	p.persist(session)
}

func (p *HTTPProvider) persist(session *Session) {
	if err := p.store.Save(session); err != nil {
		slog.Warn("failed to persist session", "error", err)
	}
}

func (p *HTTPProvider) clear() {
	p.mu.Lock()
	p.current = nil
	p.loaded = true
	p.mu.Unlock()
	if err := p.store.Delete(); err != nil {
		slog.Warn("failed to delete stored session", "error", err)
	}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, query url.Values, bearer string, body, out any) error {
	endpoint := p.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("apikey", p.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = p.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}

	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(data, &body) == nil {
		e.Code = firstNonEmpty(body.ErrorCode, body.Error)
		e.Message = firstNonEmpty(body.ErrorDescription, body.Msg, body.Message)
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("identity provider returned %s", resp.Status)
	}
	return e
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func userID(s *Session) string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
