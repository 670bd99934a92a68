package collaborator

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow/auth"
)

var (
	// ErrNotFound signals that no collaborator row exists for the identifier.
	ErrNotFound = errors.New("collaborator: not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("collaborator: email already exists")
	// ErrDuplicateEmployeeNumber signals a collision on an explicit number.
	ErrDuplicateEmployeeNumber = errors.New("collaborator: employee number already exists")
)

// Repository defines the data access used by the service. Mutating methods
// take the caller's transaction so every operation stays in one tx scope.
type Repository interface {
	AllocateEmployeeNumber(ctx context.Context, tx pgx.Tx, role auth.Role) (string, error)
	Create(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (auth.Collaborator, error)
	Update(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) error
	List(ctx context.Context) ([]auth.Collaborator, error)
	GetByEmployeeNumber(ctx context.Context, number string) (auth.Collaborator, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, employee_number, first_name, last_name, email, password_hash, role, created_at, updated_at`

// AllocateEmployeeNumber derives the next number for the role, e.g. G001
// then G002 for gestion. A per-role advisory lock held until the transaction
// ends serializes concurrent allocators; the subsequent MAX read and the
// caller's insert happen under that lock, so numbers never collide.
func (r *PGRepository) AllocateEmployeeNumber(ctx context.Context, tx pgx.Tx, role auth.Role) (string, error) {
	prefix := role.Initial()
	if prefix == "" {
		return "", fmt.Errorf("collaborator: no number prefix for role %q", role)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('collaborator_number_' || $1::text))`, prefix); err != nil {
		return "", fmt.Errorf("collaborator: acquire number lock: %w", err)
	}

	var max int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX((substring(employee_number FROM 2))::int), 0)
		FROM collaborators
		WHERE employee_number ~ ('^' || $1 || '[0-9]+$')
	`, prefix).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("collaborator: read number sequence: %w", err)
	}

	return fmt.Sprintf("%s%03d", prefix, max+1), nil
}

// Create inserts a collaborator inside the caller's transaction.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error) {
	insertSQL := `
		INSERT INTO collaborators (id, employee_number, first_name, last_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + columns

	created, err := auth.ScanCollaborator(tx.QueryRow(ctx, insertSQL,
		c.ID, c.EmployeeNumber, c.FirstName, c.LastName, c.Email, c.PasswordHash, c.Role))
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return auth.Collaborator{}, dup
		}
		return auth.Collaborator{}, fmt.Errorf("collaborator: create: %w", err)
	}
	return created, nil
}

// GetForUpdate fetches a collaborator row locked for the rest of the
// transaction, so the snapshot checked by the policy cannot change before
// the write lands.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (auth.Collaborator, error) {
	selectSQL := `SELECT ` + columns + ` FROM collaborators WHERE id = $1 FOR UPDATE`

	c, err := auth.ScanCollaborator(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Collaborator{}, ErrNotFound
		}
		return auth.Collaborator{}, fmt.Errorf("collaborator: get for update: %w", err)
	}
	return c, nil
}

// Update writes the full allow-listed field set of an already-locked row.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, c auth.Collaborator) (auth.Collaborator, error) {
	updateSQL := `
		UPDATE collaborators
		SET first_name = $2, last_name = $3, email = $4, password_hash = $5, role = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns

	updated, err := auth.ScanCollaborator(tx.QueryRow(ctx, updateSQL,
		c.ID, c.FirstName, c.LastName, c.Email, c.PasswordHash, c.Role))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Collaborator{}, ErrNotFound
		}
		if dup := duplicateError(err); dup != nil {
			return auth.Collaborator{}, dup
		}
		return auth.Collaborator{}, fmt.Errorf("collaborator: update: %w", err)
	}
	return updated, nil
}

// Delete removes a collaborator inside the caller's transaction.
func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM collaborators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("collaborator: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every collaborator ordered by employee number.
func (r *PGRepository) List(ctx context.Context) ([]auth.Collaborator, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM collaborators ORDER BY employee_number`)
	if err != nil {
		return nil, fmt.Errorf("collaborator: list: %w", err)
	}
	defer rows.Close()

	var out []auth.Collaborator
	for rows.Next() {
		c, err := auth.ScanCollaborator(rows)
		if err != nil {
			return nil, fmt.Errorf("collaborator: scan list row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("collaborator: list rows: %w", err)
	}
	return out, nil
}

// GetByEmployeeNumber retrieves a collaborator by its human-readable number.
func (r *PGRepository) GetByEmployeeNumber(ctx context.Context, number string) (auth.Collaborator, error) {
	selectSQL := `SELECT ` + columns + ` FROM collaborators WHERE employee_number = $1`

	c, err := auth.ScanCollaborator(r.pool.QueryRow(ctx, selectSQL, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Collaborator{}, ErrNotFound
		}
		return auth.Collaborator{}, fmt.Errorf("collaborator: get by employee number: %w", err)
	}
	return c, nil
}

func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if pgErr.ConstraintName == "collaborators_employee_number_key" {
		return ErrDuplicateEmployeeNumber
	}
	return ErrDuplicateEmail
}
