package profile

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a row in the roles table.
type Role struct {
	ID   int64
	Name string
}

// Profile represents a row in the profiles table joined with its role and
// organization names.
type Profile struct {
	ID               uuid.UUID
	UserID           string // identity provider subject
	Email            string
	FirstName        string
	LastName         string
	RoleID           *int64
	RoleName         *string
	OrganizationID   *int64
	OrganizationName *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Caller is the authenticated subject of a request.
type Caller struct {
	UserID string
	Email  string
}
