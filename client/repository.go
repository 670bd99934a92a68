package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow/auth"
)

var (
	// ErrNotFound signals that no client row exists for the identifier.
	ErrNotFound = errors.New("client: not found")
	// ErrCommercialNotFound signals a dangling or non-commercial owner reference.
	ErrCommercialNotFound = errors.New("client: owning commercial not found")
)

// Repository defines the data access used by the service.
type Repository interface {
	EnsureCommercial(ctx context.Context, tx pgx.Tx, collaboratorID string) error
	Create(ctx context.Context, tx pgx.Tx, c Client) (Client, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Client, error)
	Update(ctx context.Context, tx pgx.Tx, c Client) (Client, error)
	Get(ctx context.Context, id string) (Client, error)
	List(ctx context.Context, commercialID string) ([]Client, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, full_name, email, phone, company_name, commercial_id, created_at, updated_at`

// EnsureCommercial verifies inside the transaction that the referenced
// collaborator exists and carries the commercial role.
func (r *PGRepository) EnsureCommercial(ctx context.Context, tx pgx.Tx, collaboratorID string) error {
	var role auth.Role
	err := tx.QueryRow(ctx, `SELECT role FROM collaborators WHERE id = $1`, collaboratorID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommercialNotFound
		}
		return fmt.Errorf("client: ensure commercial: %w", err)
	}
	if role != auth.RoleCommercial {
		return fmt.Errorf("%w: collaborator %s has role %s", ErrCommercialNotFound, collaboratorID, role)
	}
	return nil
}

// Create inserts a client inside the caller's transaction.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, c Client) (Client, error) {
	insertSQL := `
		INSERT INTO clients (id, full_name, email, phone, company_name, commercial_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + columns

	created, err := scanClient(tx.QueryRow(ctx, insertSQL,
		c.ID, c.FullName, c.Email, c.Phone, c.CompanyName, c.CommercialID))
	if err != nil {
		return Client{}, fmt.Errorf("client: create: %w", err)
	}
	return created, nil
}

// GetForUpdate fetches a client row locked until the transaction ends.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Client, error) {
	selectSQL := `SELECT ` + columns + ` FROM clients WHERE id = $1 FOR UPDATE`

	c, err := scanClient(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("client: get for update: %w", err)
	}
	return c, nil
}

// Update writes the allow-listed field set of an already-locked row.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, c Client) (Client, error) {
	updateSQL := `
		UPDATE clients
		SET full_name = $2, email = $3, phone = $4, company_name = $5, commercial_id = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns

	updated, err := scanClient(tx.QueryRow(ctx, updateSQL,
		c.ID, c.FullName, c.Email, c.Phone, c.CompanyName, c.CommercialID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("client: update: %w", err)
	}
	return updated, nil
}

// Get retrieves a client by id outside any transaction.
func (r *PGRepository) Get(ctx context.Context, id string) (Client, error) {
	selectSQL := `SELECT ` + columns + ` FROM clients WHERE id = $1`

	c, err := scanClient(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("client: get: %w", err)
	}
	return c, nil
}

// List returns clients, restricted to one commercial owner when
// commercialID is non-empty. The filter is applied in SQL so callers never
// see rows outside their scope.
func (r *PGRepository) List(ctx context.Context, commercialID string) ([]Client, error) {
	query := `SELECT ` + columns + ` FROM clients`
	var args []any
	if commercialID != "" {
		query += ` WHERE commercial_id = $1`
		args = append(args, commercialID)
	}
	query += ` ORDER BY full_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("client: list: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("client: scan list row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("client: list rows: %w", err)
	}
	return out, nil
}

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(
		&c.ID,
		&c.FullName,
		&c.Email,
		&c.Phone,
		&c.CompanyName,
		&c.CommercialID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}
