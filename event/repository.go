package event

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
	// ErrNotFound signals that no event row exists for the identifier.
	ErrNotFound = errors.New("event: not found")
	// ErrContractNotFound signals a dangling contract reference.
	ErrContractNotFound = errors.New("event: contract not found")
	// ErrSupportNotFound signals a dangling or non-support assignee reference.
	ErrSupportNotFound = errors.New("event: support collaborator not found")
)

// ContractInfo is the authorization-relevant state of an event's contract.
type ContractInfo struct {
	CommercialID string
	IsSigned     bool
}

// ListQuery is the SQL-level translation of a policy scope plus filters.
// Empty fields apply no restriction.
type ListQuery struct {
	CommercialID   string
	SupportID      string
	UnassignedOnly bool
}

// Repository defines the data access used by the service.
type Repository interface {
	GetContractInfo(ctx context.Context, tx pgx.Tx, contractID string) (ContractInfo, error)
	EnsureSupport(ctx context.Context, tx pgx.Tx, collaboratorID string) error
	Create(ctx context.Context, tx pgx.Tx, e Event) (Event, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Event, ContractInfo, error)
	Update(ctx context.Context, tx pgx.Tx, e Event) (Event, error)
	Get(ctx context.Context, id string) (Event, ContractInfo, error)
	List(ctx context.Context, q ListQuery) ([]Event, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const columns = `id, contract_id, support_id, date_start, date_end, location, attendees, notes, created_at, updated_at`

// GetContractInfo reads the contract's owner and signature state inside the
// transaction, so the signed-contract gate and the insert see one state.
func (r *PGRepository) GetContractInfo(ctx context.Context, tx pgx.Tx, contractID string) (ContractInfo, error) {
	var info ContractInfo
	err := tx.QueryRow(ctx, `SELECT commercial_id, is_signed FROM contracts WHERE id = $1`, contractID).
		Scan(&info.CommercialID, &info.IsSigned)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContractInfo{}, ErrContractNotFound
		}
		return ContractInfo{}, fmt.Errorf("event: get contract info: %w", err)
	}
	return info, nil
}

// EnsureSupport verifies inside the transaction that the referenced
// collaborator exists and carries the support role.
func (r *PGRepository) EnsureSupport(ctx context.Context, tx pgx.Tx, collaboratorID string) error {
	var role auth.Role
	err := tx.QueryRow(ctx, `SELECT role FROM collaborators WHERE id = $1`, collaboratorID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSupportNotFound
		}
		return fmt.Errorf("event: ensure support: %w", err)
	}
	if role != auth.RoleSupport {
		return fmt.Errorf("%w: collaborator %s has role %s", ErrSupportNotFound, collaboratorID, role)
	}
	return nil
}

// Create inserts an event inside the caller's transaction.
func (r *PGRepository) Create(ctx context.Context, tx pgx.Tx, e Event) (Event, error) {
	insertSQL := `
		INSERT INTO events (id, contract_id, support_id, date_start, date_end, location, attendees, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + columns

	created, err := scanEvent(tx.QueryRow(ctx, insertSQL,
		e.ID, e.ContractID, e.SupportID, e.DateStart, e.DateEnd, e.Location, e.Attendees, e.Notes))
	if err != nil {
		return Event{}, fmt.Errorf("event: create: %w", err)
	}
	return created, nil
}

// GetForUpdate fetches an event row locked until the transaction ends,
// together with its contract's authorization state.
func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Event, ContractInfo, error) {
	selectSQL := `SELECT ` + columns + ` FROM events WHERE id = $1 FOR UPDATE`

	e, err := scanEvent(tx.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ContractInfo{}, ErrNotFound
		}
		return Event{}, ContractInfo{}, fmt.Errorf("event: get for update: %w", err)
	}

	info, err := r.GetContractInfo(ctx, tx, e.ContractID)
	if err != nil {
		return Event{}, ContractInfo{}, err
	}
	return e, info, nil
}

// Update writes the allow-listed field set of an already-locked row.
func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, e Event) (Event, error) {
	updateSQL := `
		UPDATE events
		SET support_id = $2, date_start = $3, date_end = $4, location = $5, attendees = $6, notes = $7, updated_at = now()
		WHERE id = $1
		RETURNING ` + columns

	updated, err := scanEvent(tx.QueryRow(ctx, updateSQL,
		e.ID, e.SupportID, e.DateStart, e.DateEnd, e.Location, e.Attendees, e.Notes))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("event: update: %w", err)
	}
	return updated, nil
}

// Get retrieves an event and its contract's authorization state.
func (r *PGRepository) Get(ctx context.Context, id string) (Event, ContractInfo, error) {
	selectSQL := `
		SELECT e.id, e.contract_id, e.support_id, e.date_start, e.date_end, e.location, e.attendees, e.notes, e.created_at, e.updated_at,
		       c.commercial_id, c.is_signed
		FROM events e
		JOIN contracts c ON c.id = e.contract_id
		WHERE e.id = $1`

	var (
		e    Event
		info ContractInfo
	)
	err := r.pool.QueryRow(ctx, selectSQL, id).Scan(
		&e.ID, &e.ContractID, &e.SupportID, &e.DateStart, &e.DateEnd, &e.Location, &e.Attendees, &e.Notes, &e.CreatedAt, &e.UpdatedAt,
		&info.CommercialID, &info.IsSigned,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, ContractInfo{}, ErrNotFound
		}
		return Event{}, ContractInfo{}, fmt.Errorf("event: get: %w", err)
	}
	return e, info, nil
}

// List returns events restricted in SQL per the query: by the contract's
// commercial, by the assigned support, or unassigned ones only.
func (r *PGRepository) List(ctx context.Context, q ListQuery) ([]Event, error) {
	query := `SELECT e.` + strings.ReplaceAll(columns, ", ", ", e.") + ` FROM events e`
	var (
		where []string
		args  []any
	)
	if q.CommercialID != "" {
		query += ` JOIN contracts c ON c.id = e.contract_id`
		args = append(args, q.CommercialID)
		where = append(where, fmt.Sprintf("c.commercial_id = $%d", len(args)))
	}
	if q.SupportID != "" {
		args = append(args, q.SupportID)
		where = append(where, fmt.Sprintf("e.support_id = $%d", len(args)))
	}
	if q.UnassignedOnly {
		where = append(where, "e.support_id IS NULL")
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY e.date_start`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("event: list: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("event: scan list row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("event: list rows: %w", err)
	}
	return out, nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(
		&e.ID,
		&e.ContractID,
		&e.SupportID,
		&e.DateStart,
		&e.DateEnd,
		&e.Location,
		&e.Attendees,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return Event{}, err
	}
	return e, nil
}
