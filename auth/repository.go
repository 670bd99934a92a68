package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCollaboratorNotFound signals that no collaborator matches the lookup.
var ErrCollaboratorNotFound = errors.New("auth: collaborator not found")

// Repository provides the collaborator lookups needed for authentication.
type Repository interface {
	GetByEmail(ctx context.Context, email string) (Collaborator, error)
	GetByID(ctx context.Context, id string) (Collaborator, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed auth repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const collaboratorColumns = `id, employee_number, first_name, last_name, email, password_hash, role, created_at, updated_at`

// GetByEmail retrieves a collaborator by email address.
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Collaborator, error) {
	selectSQL := `SELECT ` + collaboratorColumns + ` FROM collaborators WHERE email = $1`

	c, err := ScanCollaborator(r.pool.QueryRow(ctx, selectSQL, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Collaborator{}, ErrCollaboratorNotFound
		}
		return Collaborator{}, fmt.Errorf("auth: get collaborator by email: %w", err)
	}
	return c, nil
}

// GetByID retrieves a collaborator by ID.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Collaborator, error) {
	selectSQL := `SELECT ` + collaboratorColumns + ` FROM collaborators WHERE id = $1`

	c, err := ScanCollaborator(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Collaborator{}, ErrCollaboratorNotFound
		}
		return Collaborator{}, fmt.Errorf("auth: get collaborator by id: %w", err)
	}
	return c, nil
}

// ScanCollaborator reads one collaborator row in collaboratorColumns order.
// Shared with the collaborator package, which manages the same table.
func ScanCollaborator(row pgx.Row) (Collaborator, error) {
	var c Collaborator
	err := row.Scan(
		&c.ID,
		&c.EmployeeNumber,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.PasswordHash,
		&c.Role,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Collaborator{}, err
	}
	return c, nil
}
