package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Op names a Fake operation for failure injection.
type Op string

const (
	OpSignIn     Op = "sign_in"
	OpSignUp     Op = "sign_up"
	OpSignOut    Op = "sign_out"
	OpGetSession Op = "get_session"
	OpUpdateUser Op = "update_user"
)

// Claims is the access-token payload minted by Fake and accepted by the
// profile service.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type fakeAccount struct {
	user         User
	passwordHash []byte
}

// Fake is an in-memory Provider. It issues HS256 access tokens signed with
// its secret, so a profile service configured with the same secret accepts
// them.
type Fake struct {
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	store      TokenStore

	mu       sync.Mutex
	accounts map[string]*fakeAccount // keyed by lower-cased email
	current  *Session
	loaded   bool
	failures map[Op]error
	calls    map[Op]int

	listeners listenerSet
}

var _ Provider = (*Fake)(nil)

// FakeOption configures a Fake.
type FakeOption func(*Fake)

// WithSigningSecret sets the HS256 secret used for access tokens.
func WithSigningSecret(secret string) FakeOption {
	return func(f *Fake) {
		if secret != "" {
			f.secret = []byte(secret)
		}
	}
}

// WithTokenTTL sets the access-token lifetime.
func WithTokenTTL(ttl time.Duration) FakeOption {
	return func(f *Fake) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) FakeOption {
	return func(f *Fake) {
		f.bcryptCost = cost
	}
}

// WithFakeTokenStore persists the fake's session so it survives restarts.
func WithFakeTokenStore(s TokenStore) FakeOption {
	return func(f *Fake) {
		f.store = s
	}
}

// NewFake creates an empty Fake.
func NewFake(opts ...FakeOption) *Fake {
	f := &Fake{
		secret:     []byte("fake-identity-secret"),
		ttl:        time.Hour,
		bcryptCost: bcrypt.MinCost,
		accounts:   make(map[string]*fakeAccount),
		failures:   make(map[Op]error),
		calls:      make(map[Op]int),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// AddUser registers an account without signing it in.
func (f *Fake) AddUser(email, password string, metadata Metadata) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), f.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	key := strings.ToLower(email)

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.accounts[key]; exists {
		return nil, &Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	acct := &fakeAccount{
		user: User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: time.Now().UTC(),
			Metadata:  metadata,
		},
		passwordHash: hash,
	}
	f.accounts[key] = acct

	u := acct.user
	return &u, nil
}

// Fail makes every subsequent call of op return err. A nil err clears it.
func (f *Fake) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Revoke drops the current session as if it had been revoked server-side
// and notifies subscribers.
func (f *Fake) Revoke() {
	f.mu.Lock()
	f.current = nil
	f.loaded = true
	f.mu.Unlock()
	f.deleteStored()
	f.listeners.emit(EventSignedOut, nil)
}

// RefreshNow re-mints the access token and emits EventTokenRefreshed.
func (f *Fake) RefreshNow() (*Session, error) {
	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return nil, ErrNoSession
	}
	session, err := f.mintLocked(*f.current.User)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.current = session
	f.mu.Unlock()

	f.saveStored(session)
	f.listeners.emit(EventTokenRefreshed, session)
	return session.Clone(), nil
}

func (f *Fake) SignInWithPassword(_ context.Context, email, password string) (*Session, error) {
	if err := f.begin(OpSignIn); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	f.mu.Lock()
	acct, ok := f.accounts[strings.ToLower(email)]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		f.mu.Unlock()
		return nil, &Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	session, err := f.mintLocked(acct.user)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.current = session
	f.loaded = true
	f.mu.Unlock()

	f.saveStored(session)
	f.listeners.emit(EventSignedIn, session)
	return session.Clone(), nil
}

// SignUp registers the account and signs it in immediately.
func (f *Fake) SignUp(ctx context.Context, email, password string, metadata Metadata) (*User, error) {
	if err := f.begin(OpSignUp); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if _, err := f.AddUser(email, password, metadata); err != nil {
		return nil, err
	}

	session, err := f.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	u := *session.User
	return &u, nil
}

func (f *Fake) SignOut(_ context.Context) error {
	err := f.begin(OpSignOut)

	f.mu.Lock()
	f.current = nil
	f.loaded = true
	f.mu.Unlock()
	f.deleteStored()
	f.listeners.emit(EventSignedOut, nil)

	return err
}

func (f *Fake) GetSession(_ context.Context) (*Session, error) {
	if err := f.begin(OpGetSession); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if !f.loaded {
		f.loaded = true
		f.current = f.loadStoredLocked()
	}
	current := f.current.Clone()
	f.mu.Unlock()

	if current != nil && current.IsExpired() {
		f.Revoke()
		return nil, nil
	}
	return current, nil
}

func (f *Fake) OnAuthStateChange(fn Listener) Subscription {
	return f.listeners.add(fn)
}

func (f *Fake) UpdateUser(_ context.Context, metadata Metadata) (*User, error) {
	if err := f.begin(OpUpdateUser); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if f.current == nil {
		f.mu.Unlock()
		return nil, ErrNoSession
	}
	f.current.User.Metadata = metadata
	if acct, ok := f.accounts[strings.ToLower(f.current.User.Email)]; ok {
		acct.user.Metadata = metadata
	}
	updated := f.current.Clone()
	f.mu.Unlock()

	f.saveStored(updated)
	f.listeners.emit(EventUserUpdated, updated)
	u := *updated.User
	return &u, nil
}

// ParseAccessToken validates a token minted by this fake.
func (f *Fake) ParseAccessToken(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return f.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return &claims, nil
}

func (f *Fake) begin(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failures[op]
}

func (f *Fake) mintLocked(user User) (*Session, error) {
	now := time.Now().UTC()
	expires := now.Add(f.ttl)
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.New().String(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	u := user
	return &Session{
		User:         &u,
		AccessToken:  signed,
		TokenType:    "Bearer",
		RefreshToken: uuid.New().String(),
		ExpiresAt:    expires,
	}, nil
}

func (f *Fake) loadStoredLocked() *Session {
	if f.store == nil {
		return nil
	}
	stored, err := f.store.Load()
	if err != nil {
		return nil
	}
	claims, err := f.ParseAccessToken(stored.AccessToken)
	if err != nil || stored.User == nil || claims.Subject != stored.User.ID {
		return nil
	}
	return stored
}

func (f *Fake) saveStored(s *Session) {
	if f.store == nil {
		return
	}
	if err := f.store.Save(s); err != nil {
		slog.Warn("failed to persist fake session", "error", err)
	}
}

func (f *Fake) deleteStored() {
	if f.store == nil {
		return
	}
	if err := f.store.Delete(); err != nil {
		slog.Warn("failed to delete fake session", "error", err)
	}
}
