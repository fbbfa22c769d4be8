package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

const selectProfile = `
	SELECT p.id, p.user_id, p.email, p.first_name, p.last_name,
	       p.role_id, r.name, p.organization_id, o.name,
	       p.created_at, p.updated_at
	FROM profiles p
	LEFT JOIN roles r ON r.id = p.role_id
	LEFT JOIN organizations o ON o.id = p.organization_id`

// Create inserts a new profile. Role and organization names are not
// populated; use GetByID to read the joined row.
func (r *PostgresRepository) Create(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (user_id, email, first_name, last_name, role_id, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		p.UserID, p.Email, p.FirstName, p.LastName, p.RoleID, p.OrganizationID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrProfileExists
			case "23503":
				return ErrInvalidReference
			}
		}
		return fmt.Errorf("inserting profile: %w", err)
	}

	return nil
}

// GetByID retrieves a single profile by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.getOne(ctx, selectProfile+` WHERE p.id = $1`, id)
}

// GetByUserID retrieves the profile owned by an identity provider subject.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID string) (*Profile, error) {
	return r.getOne(ctx, selectProfile+` WHERE p.user_id = $1`, userID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.UserID, &p.Email, &p.FirstName, &p.LastName,
		&p.RoleID, &p.RoleName, &p.OrganizationID, &p.OrganizationName,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

// Update writes the profile's names and bumps updated_at.
func (r *PostgresRepository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles
		SET first_name = $2, last_name = $3, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, p.ID, p.FirstName, p.LastName).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

// GetRole retrieves a role by id.
func (r *PostgresRepository) GetRole(ctx context.Context, id int64) (*Role, error) {
	return r.getRole(ctx, `SELECT id, name FROM roles WHERE id = $1`, id)
}

// GetRoleByName retrieves a role by its exact name.
func (r *PostgresRepository) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return r.getRole(ctx, `SELECT id, name FROM roles WHERE name = $1`, name)
}

func (r *PostgresRepository) getRole(ctx context.Context, query string, arg any) (*Role, error) {
	var role Role
	if err := r.pool.QueryRow(ctx, query, arg).Scan(&role.ID, &role.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("querying role: %w", err)
	}
	return &role, nil
}
