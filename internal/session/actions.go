package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/daap14/affconsole/internal/identity"
	"github.com/daap14/affconsole/internal/notify"
	"github.com/daap14/affconsole/internal/profileapi"
)

// SignUpInput carries the fields collected by the sign-up form.
type SignUpInput struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	OrganizationID *int64
}

// ProfileUpdate holds the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
}

func (u ProfileUpdate) empty() bool {
	return u.FirstName == nil && u.LastName == nil
}

// SignIn authenticates with email and password. Profile hydration follows
// from the resulting session change. Provider errors are returned as-is
// after a notification.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := s.beginAuth(false); err != nil {
		return err
	}
	defer s.endAuth(false)

	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.notifier.Notify(notify.LevelError, "Sign in failed", err.Error())
		return err
	}

	s.applySession(sess)
	s.notifier.Notify(notify.LevelSuccess, "Signed in", "Welcome back, "+displayEmail(sess))
	return nil
}

// SignUp creates an account, then tries to create the matching profile.
// A failed profile sync does not fail the sign-up; it is logged and
// reported through the notifier.
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*identity.User, error) {
	if err := s.beginAuth(true); err != nil {
		return nil, err
	}
	defer s.endAuth(true)

	user, err := s.auth.SignUp(ctx, in.Email, in.Password, identity.Metadata{
		FirstName: in.FirstName,
		LastName:  in.LastName,
	})
	if err != nil {
		s.notifier.Notify(notify.LevelError, "Sign up failed", err.Error())
		return nil, err
	}
	s.notifier.Notify(notify.LevelSuccess, "Account created", user.Email)

	s.syncProfile(ctx, user, in)
	return user, nil
}

func (s *Store) syncProfile(ctx context.Context, user *identity.User, in SignUpInput) {
	p, err := s.profiles.CreateProfile(ctx, profileapi.CreateProfileInput{
		Email:          user.Email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		OrganizationID: in.OrganizationID,
	})
	if err != nil {
		slog.Error("failed to sync profile after sign-up", "user", user.ID, "error", err)
		s.notifier.Notify(notify.LevelWarning, "Profile setup incomplete", err.Error())
		return
	}

	s.mu.Lock()
	if s.closed || s.session == nil || s.session.User.ID != user.ID {
		s.mu.Unlock()
		return
	}
	gen := s.generation
	s.setProfileLocked(p)
	orgID, fetchOrg := s.pendingOrganizationLocked()
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	if fetchOrg {
		s.loadOrganization(ctx, gen, orgID, false)
	}
}

// SignOut ends the session. Local state is cleared whatever the provider
// answers, so nothing from the old session stays visible.
func (s *Store) SignOut(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}

	err := s.auth.SignOut(ctx)
	s.applySession(nil)

	if err != nil {
		s.notifier.Notify(notify.LevelError, "Sign out failed", err.Error())
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, "Signed out", "See you soon")
	return nil
}

// UpdateProfile writes the given fields to the profile service and to the
// identity provider's user metadata, then re-fetches the profile. The local
// profile is merged as soon as either write succeeds; any failed write is
// returned.
func (s *Store) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.session == nil {
		s.mu.Unlock()
		s.notifier.Notify(notify.LevelError, "Profile update failed", ErrNotAuthenticated.Error())
		return ErrNotAuthenticated
	}
	gen := s.generation
	profile := s.profile.Clone()
	metadata := s.session.User.Metadata
	s.mu.Unlock()

	if update.empty() {
		return nil
	}
	if update.FirstName != nil {
		metadata.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		metadata.LastName = *update.LastName
	}

	var errs []error

	profileWritten := false
	if profile == nil {
		errs = append(errs, ErrNoProfile)
	} else {
		_, err := s.profiles.UpdateProfile(ctx, profile.ID, profileapi.UpdateProfileInput{
			FirstName: update.FirstName,
			LastName:  update.LastName,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("updating profile: %w", err))
		} else {
			profileWritten = true
		}
	}

	user, authErr := s.auth.UpdateUser(ctx, metadata)
	if authErr != nil {
		errs = append(errs, fmt.Errorf("updating user metadata: %w", authErr))
	}

	if profileWritten || authErr == nil {
		s.mu.Lock()
		if gen == s.generation {
			if s.profile != nil {
				if update.FirstName != nil {
					s.profile.FirstName = *update.FirstName
				}
				if update.LastName != nil {
					s.profile.LastName = *update.LastName
				}
			}
			if user != nil && s.session != nil {
				u := *user
				s.session.User = &u
			}
		}
		st := s.commitLocked()
		s.mu.Unlock()
		s.publish(st)
	}

	if profileWritten {
		s.FetchBackendProfile(ctx)
	}

	if err := errors.Join(errs...); err != nil {
		s.notifier.Notify(notify.LevelError, "Profile update failed", err.Error())
		return err
	}
	s.notifier.Notify(notify.LevelSuccess, "Profile updated", "Your changes were saved")
	return nil
}

// FetchBackendProfile reads the signed-in user's profile and stores it.
// It returns nil when signed out, when no profile exists, or on any
// failure; nil means "unknown", not "error".
func (s *Store) FetchBackendProfile(ctx context.Context) *profileapi.Profile {
	s.mu.Lock()
	if s.closed || s.session == nil {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.profileFetches++
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	p, _ := s.readProfile(ctx)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return p.Clone()
	}
	s.profileFetches--
	if p != nil {
		s.setProfileLocked(p)
	}
	orgID, fetchOrg := s.pendingOrganizationLocked()
	st = s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	if fetchOrg {
		s.loadOrganization(ctx, gen, orgID, false)
	}
	return p.Clone()
}

// FetchOption tunes FetchOrganization.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	withExtra bool
}

// WithExtra asks for the organization's extra info.
func WithExtra() FetchOption {
	return func(o *fetchOptions) {
		o.withExtra = true
	}
}

// FetchOrganization reads an organization by id and, while signed in,
// stores it as the current organization. It returns nil on failure.
func (s *Store) FetchOrganization(ctx context.Context, id int64, opts ...FetchOption) *profileapi.Organization {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	s.orgFetches++
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	return s.loadOrganization(ctx, gen, id, o.withExtra)
}

// loadOrganization expects orgFetches to have been incremented for gen.
func (s *Store) loadOrganization(ctx context.Context, gen uint64, id int64, withExtra bool) *profileapi.Organization {
	org, err := s.profiles.GetOrganization(ctx, id, withExtra)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("failed to fetch organization", "organizationId", id, "error", err)
		}
		org = nil
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return org.Clone()
	}
	s.orgFetches--
	if org != nil && s.session != nil {
		s.organization = org.Clone()
	}
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	return org.Clone()
}

func (s *Store) beginAuth(signUp bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.pendingAuth++
	if signUp {
		s.pendingSignUps++
	}
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)
	return nil
}

func (s *Store) endAuth(signUp bool) {
	s.mu.Lock()
	s.pendingAuth--
	if signUp {
		s.pendingSignUps--
	}
	if s.closed {
		s.mu.Unlock()
		return
	}
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func displayEmail(sess *identity.Session) string {
	if sess == nil || sess.User == nil {
		return ""
	}
	return sess.User.Email
}
