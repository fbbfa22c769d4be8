package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/daap14/affconsole/internal/permission"
)

// ErrForbidden is returned when the caller may not act on a profile.
var ErrForbidden = errors.New("forbidden")

// DefaultRole is assigned to self-created profiles that ask for no role.
const DefaultRole = "Affiliate"

// Service holds the profile rules shared by the HTTP handlers.
type Service struct {
	repo   Repository
	policy *permission.Policy
}

// NewService creates a new profile Service. A nil policy uses permission.Default().
func NewService(repo Repository, policy *permission.Policy) *Service {
	if policy == nil {
		policy = permission.Default()
	}
	return &Service{repo: repo, policy: policy}
}

// Permissions returns the capability tokens granted to p's role.
func (s *Service) Permissions(p *Profile) permission.Set {
	role := ""
	if p != nil && p.RoleName != nil {
		role = *p.RoleName
	}
	return s.policy.Grants(role)
}

// Resolve returns the caller's own profile.
func (s *Service) Resolve(ctx context.Context, caller Caller) (*Profile, error) {
	return s.repo.GetByUserID(ctx, caller.UserID)
}

// CreateInput holds the fields of a new profile.
type CreateInput struct {
	Email          string
	FirstName      string
	LastName       string
	OrganizationID *int64
	RoleID         *int64
}

// Create makes the caller's profile. A caller may not self-assign a role
// that grants manage_users.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) (*Profile, error) {
	_, err := s.repo.GetByUserID(ctx, caller.UserID)
	switch {
	case err == nil:
		return nil, ErrProfileExists
	case !errors.Is(err, ErrProfileNotFound):
		return nil, fmt.Errorf("checking existing profile: %w", err)
	}

	roleID, err := s.resolveRole(ctx, in.RoleID)
	if err != nil {
		return nil, err
	}

	email := caller.Email
	if email == "" {
		email = in.Email
	}

	p := &Profile{
		UserID:         caller.UserID,
		Email:          email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		RoleID:         roleID,
		OrganizationID: in.OrganizationID,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	created, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reading created profile: %w", err)
	}
	slog.Info("profile created", "profileId", created.ID, "userId", created.UserID)
	return created, nil
}

func (s *Service) resolveRole(ctx context.Context, requested *int64) (*int64, error) {
	if requested == nil {
		role, err := s.repo.GetRoleByName(ctx, DefaultRole)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				slog.Warn("default role missing; creating profile without role", "role", DefaultRole)
				return nil, nil
			}
			return nil, fmt.Errorf("looking up default role: %w", err)
		}
		return &role.ID, nil
	}

	role, err := s.repo.GetRole(ctx, *requested)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, ErrInvalidReference
		}
		return nil, fmt.Errorf("looking up role: %w", err)
	}
	if s.policy.Grants(role.Name).Has(permission.ManageUsers) {
		return nil, ErrForbidden
	}
	return &role.ID, nil
}

// UpdateInput holds the profile fields to change. Nil fields are kept.
type UpdateInput struct {
	FirstName *string
	LastName  *string
}

// Update changes a profile's names. Only the owner, or a caller holding
// manage_users, may update it.
func (s *Service) Update(ctx context.Context, caller Caller, id uuid.UUID, in UpdateInput) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.UserID != caller.UserID {
		allowed, err := s.CallerHas(ctx, caller, permission.ManageUsers)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, ErrForbidden
		}
	}

	if in.FirstName != nil {
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		p.LastName = *in.LastName
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CallerHas reports whether the caller's profile grants token. A caller
// without a profile has no permissions.
func (s *Service) CallerHas(ctx context.Context, caller Caller, token string) (bool, error) {
	p, err := s.repo.GetByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolving caller profile: %w", err)
	}
	return s.Permissions(p).Has(token), nil
}

// CanViewOrganizationExtra reports whether the caller may read the extra
// details of organization orgID: members of it and holders of
// manage_organizations may.
func (s *Service) CanViewOrganizationExtra(ctx context.Context, caller Caller, orgID int64) (bool, error) {
	p, err := s.repo.GetByUserID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("resolving caller profile: %w", err)
	}
	if p.OrganizationID != nil && *p.OrganizationID == orgID {
		return true, nil
	}
	return s.Permissions(p).Has(permission.ManageOrganizations), nil
}
