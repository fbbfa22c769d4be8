package profile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profile"
)

// stubRepo is an in-memory Repository with injectable failures.
type stubRepo struct {
	profiles map[uuid.UUID]profile.Profile
	roles    map[int64]string

	lookupErr error
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		profiles: map[uuid.UUID]profile.Profile{},
		roles:    map[int64]string{1: "Admin", 2: "Manager", 3: "Affiliate"},
	}
}

func (s *stubRepo) seed(userID, role string) profile.Profile {
	p := profile.Profile{ID: uuid.New(), UserID: userID, Email: userID + "@example.com"}
	for id, name := range s.roles {
		if name == role {
			roleID, roleName := id, name
			p.RoleID, p.RoleName = &roleID, &roleName
		}
	}
	s.profiles[p.ID] = p
	return p
}

func (s *stubRepo) Create(_ context.Context, p *profile.Profile) error {
	if s.createErr != nil {
		return s.createErr
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	if p.RoleID != nil {
		name := s.roles[*p.RoleID]
		p.RoleName = &name
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (s *stubRepo) GetByUserID(_ context.Context, userID string) (*profile.Profile, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, p := range s.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, profile.ErrProfileNotFound
}

func (s *stubRepo) Update(_ context.Context, p *profile.Profile) error {
	s.profiles[p.ID] = *p
	return nil
}

func (s *stubRepo) GetRole(_ context.Context, id int64) (*profile.Role, error) {
	name, ok := s.roles[id]
	if !ok {
		return nil, profile.ErrRoleNotFound
	}
	return &profile.Role{ID: id, Name: name}, nil
}

func (s *stubRepo) GetRoleByName(_ context.Context, name string) (*profile.Role, error) {
	for id, n := range s.roles {
		if n == name {
			return &profile.Role{ID: id, Name: n}, nil
		}
	}
	return nil, profile.ErrRoleNotFound
}

func TestService_CreateAssignsDefaultRole(t *testing.T) {
	t.Parallel()

	svc := profile.NewService(newStubRepo(), nil)
	caller := profile.Caller{UserID: "u-1", Email: "ana@example.com"}

	p, err := svc.Create(context.Background(), caller, profile.CreateInput{Email: "other@example.com", FirstName: "Ana"})

	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "ana@example.com", p.Email)
	require.NotNil(t, p.RoleName)
	assert.Equal(t, profile.DefaultRole, *p.RoleName)
}

func TestService_CreateUsesBodyEmailWithoutTokenEmail(t *testing.T) {
	t.Parallel()

	svc := profile.NewService(newStubRepo(), nil)

	p, err := svc.Create(context.Background(), profile.Caller{UserID: "u-1"}, profile.CreateInput{Email: "ana@example.com"})

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", p.Email)
}

func TestService_CreateWithoutDefaultRole(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	delete(repo.roles, 3)
	svc := profile.NewService(repo, nil)

	p, err := svc.Create(context.Background(), profile.Caller{UserID: "u-1"}, profile.CreateInput{})

	require.NoError(t, err)
	assert.Nil(t, p.RoleID)
}

func TestService_CreateRejects(t *testing.T) {
	t.Parallel()

	admin := int64(1)
	manager := int64(2)
	unknown := int64(99)

	tests := []struct {
		name    string
		setup   func(*stubRepo)
		in      profile.CreateInput
		wantErr error
	}{
		{"existing profile", func(r *stubRepo) { r.seed("u-1", "Affiliate") }, profile.CreateInput{}, profile.ErrProfileExists},
		{"admin role", nil, profile.CreateInput{RoleID: &admin}, profile.ErrForbidden},
		{"unknown role", nil, profile.CreateInput{RoleID: &unknown}, profile.ErrInvalidReference},
		{"bad organization", func(r *stubRepo) { r.createErr = profile.ErrInvalidReference }, profile.CreateInput{RoleID: &manager}, profile.ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newStubRepo()
			if tt.setup != nil {
				tt.setup(repo)
			}
			svc := profile.NewService(repo, nil)

			_, err := svc.Create(context.Background(), profile.Caller{UserID: "u-1"}, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_CreateLookupFailure(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	repo.lookupErr = errors.New("db down")
	svc := profile.NewService(repo, nil)

	_, err := svc.Create(context.Background(), profile.Caller{UserID: "u-1"}, profile.CreateInput{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestService_Update(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	target := repo.seed("u-1", "Affiliate")
	repo.seed("u-2", "Manager")
	repo.seed("u-3", "Admin")
	svc := profile.NewService(repo, nil)
	ctx := context.Background()
	name := "Ana"

	_, err := svc.Update(ctx, profile.Caller{UserID: "u-2"}, target.ID, profile.UpdateInput{FirstName: &name})
	assert.ErrorIs(t, err, profile.ErrForbidden)

	p, err := svc.Update(ctx, profile.Caller{UserID: "u-1"}, target.ID, profile.UpdateInput{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)

	last := "Silva"
	p, err = svc.Update(ctx, profile.Caller{UserID: "u-3"}, target.ID, profile.UpdateInput{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)
	assert.Equal(t, "Silva", p.LastName)

	_, err = svc.Update(ctx, profile.Caller{UserID: "u-1"}, uuid.New(), profile.UpdateInput{FirstName: &name})
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestService_CallerHas(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	repo.seed("manager", "Manager")
	policy, err := permission.Parse([]byte("roles:\n  Manager: [view_reports]\n"))
	require.NoError(t, err)
	svc := profile.NewService(repo, policy)
	ctx := context.Background()

	ok, err := svc.CallerHas(ctx, profile.Caller{UserID: "manager"}, permission.ViewReports)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CallerHas(ctx, profile.Caller{UserID: "manager"}, permission.ManageCampaigns)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.CallerHas(ctx, profile.Caller{UserID: "nobody"}, permission.ViewReports)
	require.NoError(t, err)
	assert.False(t, ok)

	repo.lookupErr = errors.New("db down")
	_, err = svc.CallerHas(ctx, profile.Caller{UserID: "manager"}, permission.ViewReports)
	assert.Error(t, err)
}

func TestService_CanViewOrganizationExtra(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	member := repo.seed("member", "Affiliate")
	acmeID := int64(42)
	member.OrganizationID = &acmeID
	repo.profiles[member.ID] = member
	repo.seed("admin", "Admin")
	repo.seed("outsider", "Affiliate")
	svc := profile.NewService(repo, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID string
		orgID  int64
		want   bool
	}{
		{"member of the organization", "member", 42, true},
		{"member of another organization", "member", 43, false},
		{"manage_organizations holder", "admin", 43, true},
		{"outsider", "outsider", 42, false},
		{"no profile", "nobody", 42, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.CanViewOrganizationExtra(ctx, profile.Caller{UserID: tt.userID}, tt.orgID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestService_CanViewOrganizationExtraLookupFailure(t *testing.T) {
	t.Parallel()

	repo := newStubRepo()
	repo.lookupErr = errors.New("db down")
	svc := profile.NewService(repo, nil)

	_, err := svc.CanViewOrganizationExtra(context.Background(), profile.Caller{UserID: "member"}, 42)
	assert.Error(t, err)
}

func TestService_PermissionsWithoutRole(t *testing.T) {
	t.Parallel()

	svc := profile.NewService(newStubRepo(), nil)

	assert.Empty(t, svc.Permissions(&profile.Profile{}))
	assert.Empty(t, svc.Permissions(nil))
}
