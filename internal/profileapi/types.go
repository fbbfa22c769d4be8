// Package profileapi is the REST client for the profile service: business
// profiles (name, role, organization link) and organizations.
package profileapi

import (
	"maps"
	"slices"
	"time"
)

// Role is the profile's role within its organization.
type Role struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// OrganizationRef is the short organization view embedded in a profile.
type OrganizationRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// Profile is a user's business profile.
type Profile struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	Email        string           `json:"email"`
	FirstName    string           `json:"firstName,omitempty"`
	LastName     string           `json:"lastName,omitempty"`
	Role         *Role            `json:"role,omitempty"`
	Organization *OrganizationRef `json:"organization,omitempty"`
	Permissions  []string         `json:"permissions,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// RoleName returns the role name or "".
func (p *Profile) RoleName() string {
	if p == nil || p.Role == nil {
		return ""
	}
	return p.Role.Name
}

// OrganizationID returns the linked organization id and whether there is one.
func (p *Profile) OrganizationID() (int64, bool) {
	if p == nil || p.Organization == nil || p.Organization.ID == 0 {
		return 0, false
	}
	return p.Organization.ID, true
}

// Clone returns a deep copy.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Role != nil {
		r := *p.Role
		c.Role = &r
	}
	if p.Organization != nil {
		o := *p.Organization
		c.Organization = &o
	}
	c.Permissions = slices.Clone(p.Permissions)
	return &c
}

// Organization is a tenant of the console.
type Organization struct {
	OrganizationID int64          `json:"organizationId"`
	Name           string         `json:"name"`
	Status         string         `json:"status"`
	Type           string         `json:"type,omitempty"`
	ExtraInfo      map[string]any `json:"extraInfo,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Clone returns a copy; ExtraInfo is copied one level deep.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	c.ExtraInfo = maps.Clone(o.ExtraInfo)
	return &c
}

// UpdateProfileInput is the body of PUT /profiles/{id}. Nil fields are left unchanged.
type UpdateProfileInput struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// CreateProfileInput is the body of POST /profiles.
type CreateProfileInput struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName,omitempty"`
	LastName       string `json:"lastName,omitempty"`
	OrganizationID *int64 `json:"organizationId,omitempty"`
	RoleID         *int64 `json:"roleId,omitempty"`
}
