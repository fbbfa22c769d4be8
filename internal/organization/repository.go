package organization

import (
	"context"
	"errors"
)

// ErrOrganizationNotFound is returned when an organization record is not found.
var ErrOrganizationNotFound = errors.New("organization not found")

// ErrDuplicateOrganizationName is returned when an organization with the same name already exists.
var ErrDuplicateOrganizationName = errors.New("organization name already exists")

// Repository provides operations on the organizations table.
type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id int64) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
}
