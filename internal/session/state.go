package session

import (
	"github.com/daap14/affconsole/internal/identity"
	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profileapi"
)

// Phase is the authentication phase of a Store.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// ProfileStatus is the profile sub-state while authenticated.
type ProfileStatus int

const (
	ProfileUnknown ProfileStatus = iota
	ProfileLoading
	ProfileLoaded
	ProfileAbsent
)

func (s ProfileStatus) String() string {
	switch s {
	case ProfileLoading:
		return "loading"
	case ProfileLoaded:
		return "loaded"
	case ProfileAbsent:
		return "absent"
	}
	return "unknown"
}

// State is a consistent, independent copy of the store's view. Mutating a
// State never affects the store.
type State struct {
	Phase         Phase
	ProfileStatus ProfileStatus

	Session      *identity.Session
	User         *identity.User
	Profile      *profileapi.Profile
	Organization *profileapi.Organization
	Permissions  permission.Set

	IsLoading             bool
	IsProfileLoading      bool
	IsOrganizationLoading bool
	IsAuthenticated       bool
}

// Settled reports whether no bootstrap, sign-in or fetch is in progress.
func (st State) Settled() bool {
	if st.Phase == PhaseUninitialized || st.Phase == PhaseLoading {
		return false
	}
	return !st.IsLoading && !st.IsProfileLoading && !st.IsOrganizationLoading
}

// HasPermission reports whether the snapshot's permission set holds token.
func (st State) HasPermission(token string) bool {
	return st.Permissions.Has(token)
}
