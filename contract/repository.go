package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crmflow/auth"
)

var (
	// ErrNotFound signals that no contract row exists for the identifier.
	ErrNotFound = errors.New("contract: not found")
	// ErrClientNotFound signals a dangling client reference at creation.
	ErrClientNotFound = errors.New("contract: client not found")
	// ErrCommercialNotFound signals a dangling or non-commercial owner reference.
	ErrCommercialNotFound = errors.New("contract: owning commercial not found")
)

// Repository defines the data access used by the service.
type Repository interface {
	GetClientCommercial(ctx context.Context, tx pgx.Tx, clientID string) (string, error)
	EnsureCommercial(ctx context.Context, tx pgx.Tx, collaboratorID string) error
	Create(ctx context.Context, tx pgx.Tx, c Contract) (Contract, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Contract, error)
	Update(ctx context.Context, tx pgx.Tx, c Contract) (Contract, error)
	Get(ctx context.Context, id string) (Contract, error)
	List(ctx context.Context, commercialID string, filters ListFilters) ([]Contract, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, client_id, commercial_id, total_amount, remaining_amount, is_signed, created_at, updated_at`

// GetClientCommercial reads the owning commercial of the client inside the
// transaction, so the inherited owner cannot change before the insert.
func (r *PGRepository) GetClientCommercial(ctx context.Context, tx pgx.Tx, clientID string) (string, error) {
	var commercialID string
	err := tx.QueryRow(ctx, `SELECT commercial_id FROM clients WHERE id = $1`, clientID).Scan(&commercialID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrClientNotFound
		}
		return "", fmt.Errorf("contract: get client commercial: %w", err)
	}
	return commercialID, nil
}

// EnsureCommercial verifies inside the transaction that the referenced
// collaborator exists and carries the commercial role.
func (r *PGRepository) EnsureCommercial(ctx context.Context, tx pgx.Tx, collaboratorID string) error {
	var role auth.Role
	err := tx.QueryRow(ctx, `SELECT role FROM collaborators WHERE id = $1`, collaboratorID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCommercialNotFound
		}
		return fmt.Errorf("contract: ensure commercial: %w", err)
	}
	if role != auth.RoleCommercial {
		return fmt.Errorf("%w: collaborator %s has role %s", ErrCommercialNotFound, collaboratorID, role)
	}
	return nil
}

// Create inserts a contract inside the caller's transaction.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, c Contract) (Contract, error) {
	insertSQL := `
		INSERT INTO contracts (id, client_id, commercial_id, total_amount, remaining_amount, is_signed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + columns

	created, err := scanContract(tx.QueryRow(ctx, insertSQL,
		c.ID, c.ClientID, c.CommercialID, c.TotalAmount, c.RemainingAmount, c.IsSigned))
	if err != nil {
		return Contract{}, fmt.Errorf("contract: create: %w", err)
	}
	return created, nil
}

// GetForUpdate fetches a contract row locked until the transaction ends.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Contract, error) {
	selectSQL := `SELECT ` + columns + ` FROM contracts WHERE id = $1 FOR UPDATE`

	c, err := scanContract(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: get for update: %w", err)
	}
	return c, nil
}

// Update writes the allow-listed field set of an already-locked row.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, c Contract) (Contract, error) {
	updateSQL := `
		UPDATE contracts
		SET commercial_id = $2, total_amount = $3, remaining_amount = $4, is_signed = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns

	updated, err := scanContract(tx.QueryRow(ctx, updateSQL,
		c.ID, c.CommercialID, c.TotalAmount, c.RemainingAmount, c.IsSigned))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: update: %w", err)
	}
	return updated, nil
}

// Get retrieves a contract by id outside any transaction.
func (r *PGRepository) Get(ctx context.Context, id string) (Contract, error) {
	selectSQL := `SELECT ` + columns + ` FROM contracts WHERE id = $1`

	c, err := scanContract(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: get: %w", err)
	}
	return c, nil
}

// List returns contracts, restricted in SQL to one commercial owner when
// commercialID is non-empty, optionally to unsigned ones.
func (r *PGRepository) List(ctx context.Context, commercialID string, filters ListFilters) ([]Contract, error) {
	query := `SELECT ` + columns + ` FROM contracts`
	var (
		where []string
		args  []any
	)
	if commercialID != "" {
		args = append(args, commercialID)
		where = append(where, fmt.Sprintf("commercial_id = $%d", len(args)))
	}
	if filters.UnsignedOnly {
		where = append(where, "NOT is_signed")
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("contract: list: %w", err)
	}
	defer rows.Close()

	var out []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan list row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: list rows: %w", err)
	}
	return out, nil
}

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.CommercialID,
		&c.TotalAmount,
		&c.RemainingAmount,
		&c.IsSigned,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Contract{}, err
	}
	return c, nil
}
