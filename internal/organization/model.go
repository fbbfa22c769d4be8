package organization

import "time"

// Organization statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
)

// Organization represents a row in the organizations table.
type Organization struct {
	ID        int64
	Name      string
	Status    string
	Type      string
	ExtraInfo map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
