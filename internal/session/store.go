// Package session bootstraps and holds the console's view of who is signed
// in: the identity session, the business profile, the organization and the
// permission set derived from them.
//
// A Store is the only writer of that view. Consumers read consistent
// snapshots through State, Subscribe or WaitSettled and change it only
// through the Store's operations.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/daap14/affconsole/internal/identity"
	"github.com/daap14/affconsole/internal/notify"
	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profileapi"
)

var (
	// ErrAlreadyStarted is returned by Start on a store that was already started.
	ErrAlreadyStarted = errors.New("session store already started")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("session store is closed")
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrNoProfile is returned when a profile write is requested before a profile exists.
	ErrNoProfile = errors.New("no profile to update")
)

// ProfileService is the profile backend used by the store.
type ProfileService interface {
	GetMe(ctx context.Context) (*profileapi.Profile, error)
	UpdateProfile(ctx context.Context, id string, in profileapi.UpdateProfileInput) (*profileapi.Profile, error)
	CreateProfile(ctx context.Context, in profileapi.CreateProfileInput) (*profileapi.Profile, error)
	GetOrganization(ctx context.Context, id int64, withExtra bool) (*profileapi.Organization, error)
}

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets where user-visible notifications go.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithPolicy sets the role policy used to derive permissions.
func WithPolicy(p *permission.Policy) Option {
	return func(s *Store) {
		if p != nil {
			s.policy = p
		}
	}
}

// Store owns the session/profile state for one console instance.
type Store struct {
	auth     identity.Provider
	profiles ProfileService
	notifier notify.Notifier
	policy   *permission.Policy

	mu            sync.Mutex
	phase         Phase
	profileStatus ProfileStatus
	session       *identity.Session
	profile       *profileapi.Profile
	organization  *profileapi.Organization
	permissions   permission.Set

	pendingAuth    int // sign-in/sign-up calls in flight
	pendingSignUps int
	profileFetches int
	orgFetches     int

	// generation changes whenever the signed-in user changes; async results
	// started under an older generation are dropped.
	generation     uint64
	genCtx         context.Context
	cancelGen      context.CancelFunc
	fetchAttempted bool

	closed   bool
	sub      identity.Subscription
	watchers map[int]func(State)
	nextID   int
	changed  chan struct{}
	seq      uint64 // bumped by every commit

	// pubMu guards delivery. One goroutine at a time drains queued and
	// calls watchers; snapshots at or below delivered are dropped.
	pubMu      sync.Mutex
	queued     *change
	delivered  uint64
	delivering bool

	wg sync.WaitGroup
}

// change is a committed snapshot stamped with its commit order.
type change struct {
	seq   uint64
	state State
}

// New creates a Store. Nothing happens until Start is called.
func New(auth identity.Provider, profiles ProfileService, opts ...Option) *Store {
	s := &Store{
		auth:     auth,
		profiles: profiles,
		notifier: notify.Discard,
		policy:   permission.Default(),
		watchers: make(map[int]func(State)),
		changed:  make(chan struct{}),
	}
	s.genCtx, s.cancelGen = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to auth-state changes and recovers any existing session.
// Profile hydration for a recovered session runs in the background.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.phase != PhaseUninitialized {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.phase = PhaseLoading
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	sub := s.auth.OnAuthStateChange(s.onAuthEvent)
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	current, err := s.auth.GetSession(ctx)
	if err != nil {
		slog.Warn("failed to recover session", "error", err)
		current = nil
	}
	s.applySession(current)
	return nil
}

// Close detaches the store from the identity provider, abandons in-flight
// fetches and waits for background work to finish.
//
// Close may be called from a Subscribe callback. While a delivery is in
// progress Close returns without waiting, since the callback may be running
// on one of the goroutines it would wait for.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	s.cancelGen()
	sub := s.sub
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	if sub != nil {
		sub.Unsubscribe()
	}

	s.pubMu.Lock()
	inCallback := s.delivering
	s.pubMu.Unlock()
	if inCallback {
		slog.Debug("store closed during change delivery, not waiting for background work")
		return
	}
	s.wg.Wait()
}

// State returns a snapshot of the current view.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe calls fn with a snapshot after every change. Calls are never
// concurrent and arrive in commit order; a snapshot superseded while an
// earlier delivery was running is skipped in favour of the newer one, so
// the last call always carries the latest state. fn may call back into the
// store. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// WaitSettled blocks until bootstrap and every in-flight fetch has finished.
func (s *Store) WaitSettled(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		st := s.snapshotLocked()
		changed := s.changed
		closed := s.closed
		s.mu.Unlock()

		if st.Settled() || closed {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

// HasPermission reports whether the current permission set holds token.
// It never blocks on I/O and never fails.
func (s *Store) HasPermission(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permissions.Has(token)
}

func (s *Store) onAuthEvent(event identity.Event, sess *identity.Session) {
	slog.Debug("auth state changed", "event", string(event))
	if event == identity.EventSignedOut {
		s.applySession(nil)
		return
	}
	s.applySession(sess)
}

// applySession makes next the current session. A different user (or no
// user) starts a new generation and clears everything derived from the old
// one. Profile hydration is dispatched on its own goroutine, never run on
// the caller's stack, because callers include identity provider callbacks.
func (s *Store) applySession(next *identity.Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if next == nil || next.User == nil {
		if s.session != nil || s.phase != PhaseUnauthenticated {
			s.resetLocked()
		}
		s.session = nil
		s.phase = PhaseUnauthenticated
	} else {
		if s.session == nil || s.session.User.ID != next.User.ID {
			s.resetLocked()
		}
		s.session = next.Clone()
		s.phase = PhaseAuthenticated
		s.scheduleHydrationLocked()
	}

	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)
}

// resetLocked starts a new generation with no derived state.
func (s *Store) resetLocked() {
	s.generation++
	s.cancelGen()
	s.genCtx, s.cancelGen = context.WithCancel(context.Background())

	s.profile = nil
	s.organization = nil
	s.permissions = nil
	s.profileStatus = ProfileUnknown
	s.profileFetches = 0
	s.orgFetches = 0
	s.fetchAttempted = false
}

// scheduleHydrationLocked starts at most one profile fetch per generation.
func (s *Store) scheduleHydrationLocked() {
	if s.profile != nil || s.fetchAttempted {
		return
	}
	s.fetchAttempted = true
	s.profileStatus = ProfileLoading
	s.profileFetches++

	gen, ctx := s.generation, s.genCtx
	s.wg.Add(1)
	go s.hydrate(ctx, gen)
}

func (s *Store) hydrate(ctx context.Context, gen uint64) {
	defer s.wg.Done()

	profile, missing := s.readProfile(ctx)
	if missing {
		profile = s.seedProfile(ctx, gen)
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		slog.Debug("discarding stale profile fetch", "generation", gen)
		return
	}
	s.profileFetches--
	if profile != nil {
		s.setProfileLocked(profile)
	} else if s.profile == nil {
		s.profileStatus = ProfileAbsent
	}
	orgID, fetchOrg := s.pendingOrganizationLocked()
	st := s.commitLocked()
	s.mu.Unlock()
	s.publish(st)

	if fetchOrg {
		s.loadOrganization(ctx, gen, orgID, false)
	}
}

// seedProfile is the one fallback attempt to create a profile from the
// identity provider's user metadata. It is skipped while a sign-up is
// creating the profile itself.
func (s *Store) seedProfile(ctx context.Context, gen uint64) *profileapi.Profile {
	s.mu.Lock()
	if gen != s.generation || s.session == nil || s.pendingSignUps > 0 {
		s.mu.Unlock()
		return nil
	}
	user := *s.session.User
	s.mu.Unlock()

	p, err := s.profiles.CreateProfile(ctx, profileapi.CreateProfileInput{
		Email:     user.Email,
		FirstName: user.Metadata.FirstName,
		LastName:  user.Metadata.LastName,
	})
	if err != nil {
		slog.Warn("failed to seed profile from user metadata", "user", user.ID, "error", err)
		return nil
	}
	slog.Info("seeded profile from user metadata", "user", user.ID, "profile", p.ID)
	return p
}

// readProfile fetches the caller's profile; failures degrade to nil.
// missing is true only when the service reports that no profile exists.
func (s *Store) readProfile(ctx context.Context) (p *profileapi.Profile, missing bool) {
	p, err := s.profiles.GetMe(ctx)
	if err == nil {
		return p, false
	}
	switch {
	case errors.Is(err, profileapi.ErrNotFound):
		slog.Info("no profile found for user")
		return nil, true
	case ctx.Err() != nil:
		slog.Debug("profile fetch cancelled", "error", err)
	default:
		slog.Warn("failed to fetch profile", "error", err)
		s.notifier.Notify(notify.LevelError, "Could not load your profile", err.Error())
	}
	return nil, false
}

func (s *Store) setProfileLocked(p *profileapi.Profile) {
	s.profile = p.Clone()
	s.profileStatus = ProfileLoaded
	s.permissions = s.policy.Grants(p.RoleName(), p.Permissions...)
}

// pendingOrganizationLocked reports whether the profile links an
// organization that is not loaded yet, and reserves the fetch if so.
func (s *Store) pendingOrganizationLocked() (int64, bool) {
	id, ok := s.profile.OrganizationID()
	if !ok || s.organization != nil || s.orgFetches > 0 {
		return 0, false
	}
	s.orgFetches++
	return id, true
}

// commitLocked wakes WaitSettled callers and returns the new snapshot,
// stamped for publish.
func (s *Store) commitLocked() change {
	close(s.changed)
	s.changed = make(chan struct{})
	s.seq++
	return change{seq: s.seq, state: s.snapshotLocked()}
}

func (s *Store) snapshotLocked() State {
	st := State{
		Phase:                 s.phase,
		Session:               s.session.Clone(),
		Profile:               s.profile.Clone(),
		Organization:          s.organization.Clone(),
		Permissions:           s.permissions.Clone(),
		IsLoading:             s.phase == PhaseLoading || s.pendingAuth > 0,
		IsProfileLoading:      s.profileFetches > 0,
		IsOrganizationLoading: s.orgFetches > 0,
	}
	if st.Session != nil && st.Session.User != nil {
		u := *st.Session.User
		st.User = &u
		st.IsAuthenticated = true
		st.ProfileStatus = s.profileStatus
	}
	return st
}

// publish queues c for the watchers. If another goroutine is already
// delivering, it picks c up when its current round ends; otherwise this
// goroutine drains the queue itself.
func (s *Store) publish(c change) {
	s.pubMu.Lock()
	if c.seq <= s.delivered || (s.queued != nil && c.seq <= s.queued.seq) {
		s.pubMu.Unlock()
		return
	}
	s.queued = &c
	if s.delivering {
		s.pubMu.Unlock()
		return
	}
	s.delivering = true
	for s.queued != nil {
		next := *s.queued
		s.queued = nil
		s.delivered = next.seq
		s.pubMu.Unlock()

		for _, fn := range s.watcherFuncs() {
			fn(next.state)
		}

		s.pubMu.Lock()
	}
	s.delivering = false
	s.pubMu.Unlock()
}

func (s *Store) watcherFuncs() []func(State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.watchers[id])
	}
	return fns
}
