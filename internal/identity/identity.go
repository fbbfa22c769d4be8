// Package identity is the client side of the hosted identity provider:
// credential sign-in, account creation, session tokens and auth-state
// notifications.
package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrMissingCredentials is returned when an email or password is empty.
var ErrMissingCredentials = errors.New("email and password are required")

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("no active session")

// Metadata is the free-form user metadata kept by the identity provider.
type Metadata struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// User is the identity provider's view of an account. It is read-only for
// the rest of the application.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"user_metadata"`
}

// Session pairs an authenticated user with its tokens.
type Session struct {
	User         *User     `json:"user"`
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Token converts the session to an oauth2 token.
func (s *Session) Token() *oauth2.Token {
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    tokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// IsExpired reports whether the access token is expired or about to expire.
// A zero ExpiresAt never expires.
func (s *Session) IsExpired() bool {
	return !s.Token().Valid()
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	return &c
}

// Event names an auth-state transition reported to subscribers.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
	// EventInitialSession is emitted once when a persisted session is loaded.
	EventInitialSession Event = "INITIAL_SESSION"
)

// Listener receives auth-state changes. The session is nil for EventSignedOut.
// Listeners are invoked synchronously from inside provider calls and must not
// call back into the provider.
type Listener func(event Event, session *Session)

// Subscription is returned by OnAuthStateChange.
type Subscription interface {
	Unsubscribe()
}

// Provider is the authentication backend consumed by the session store.
// The hosted implementation and the in-memory fake both satisfy it.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata Metadata) (*User, error)
	SignOut(ctx context.Context) error
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn Listener) Subscription
	UpdateUser(ctx context.Context, metadata Metadata) (*User, error)
}

// Error is an error reported by the identity provider. Error() returns the
// provider's message verbatim so it can be shown to the user as-is.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
