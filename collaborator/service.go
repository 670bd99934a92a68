package collaborator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"crmflow/auth"
	"crmflow/policy"
)

// ErrWeakPassword signals a password below the minimum length.
var ErrWeakPassword = errors.New("collaborator: password must be at least 8 characters")

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service gates every collaborator mutation behind the permission policy
// and runs each operation in a single transaction.
type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
}

func NewService(pool TxBeginner, repo Repository) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		idGenerator: uuid.NewString,
	}
}

// WithIDGenerator overrides entity id generation, used by tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// Create adds a collaborator. Only gestion actors may call it; when no
// employee number is supplied one is allocated from the role's sequence
// inside the same transaction as the insert.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (auth.Collaborator, error) {
	if err := policy.Check(actor, policy.ActionCreate, policy.ResourceCollaborator, nil).Err(policy.ResourceCollaborator, policy.ActionCreate); err != nil {
		return auth.Collaborator{}, err
	}

	if params.FirstName == "" || params.LastName == "" || params.Email == "" {
		return auth.Collaborator{}, fmt.Errorf("collaborator: first name, last name and email are required")
	}
	if len(params.Password) < 8 {
		return auth.Collaborator{}, ErrWeakPassword
	}
	if !params.Role.Valid() {
		return auth.Collaborator{}, fmt.Errorf("collaborator: invalid role %q", params.Role)
	}

	passwordHash, err := auth.HashPassword(params.Password)
	if err != nil {
		return auth.Collaborator{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return auth.Collaborator{}, fmt.Errorf("collaborator: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	number := params.EmployeeNumber
	if number == "" {
		number, err = s.repo.AllocateEmployeeNumber(ctx, tx, params.Role)
		if err != nil {
			return auth.Collaborator{}, err
		}
	}

	created, err := s.repo.Create(ctx, tx, auth.Collaborator{
		ID:             s.idGenerator(),
		EmployeeNumber: number,
		FirstName:      params.FirstName,
		LastName:       params.LastName,
		Email:          params.Email,
		PasswordHash:   passwordHash,
		Role:           params.Role,
	})
	if err != nil {
		return auth.Collaborator{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.Collaborator{}, fmt.Errorf("collaborator: commit tx: %w", err)
	}
	return created, nil
}

// Update mutates the allow-listed fields of a collaborator. Gestion only.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, params UpdateParams) (auth.Collaborator, error) {
	if err := policy.Check(actor, policy.ActionUpdate, policy.ResourceCollaborator, nil).Err(policy.ResourceCollaborator, policy.ActionUpdate); err != nil {
		return auth.Collaborator{}, err
	}
	if params.empty() {
		return auth.Collaborator{}, fmt.Errorf("collaborator: no fields to update")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return auth.Collaborator{}, fmt.Errorf("collaborator: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return auth.Collaborator{}, err
	}

	if params.FirstName != nil {
		current.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		current.LastName = *params.LastName
	}
	if params.Email != nil {
		if *params.Email == "" {
			return auth.Collaborator{}, fmt.Errorf("collaborator: email cannot be empty")
		}
		current.Email = *params.Email
	}
	if params.Password != nil {
		if len(*params.Password) < 8 {
			return auth.Collaborator{}, ErrWeakPassword
		}
		hash, err := auth.HashPassword(*params.Password)
		if err != nil {
			return auth.Collaborator{}, err
		}
		current.PasswordHash = hash
	}
	if params.Role != nil {
		if !params.Role.Valid() {
			return auth.Collaborator{}, fmt.Errorf("collaborator: invalid role %q", *params.Role)
		}
		current.Role = *params.Role
	}

	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return auth.Collaborator{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.Collaborator{}, fmt.Errorf("collaborator: commit tx: %w", err)
	}
	return updated, nil
}

// Delete removes a collaborator. Gestion only.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if err := policy.Check(actor, policy.ActionDelete, policy.ResourceCollaborator, nil).Err(policy.ResourceCollaborator, policy.ActionDelete); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("collaborator: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.Delete(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("collaborator: commit tx: %w", err)
	}
	return nil
}

// List returns all collaborators. Gestion only.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]auth.Collaborator, error) {
	_, decision := policy.ListScope(actor, policy.ResourceCollaborator)
	if err := decision.Err(policy.ResourceCollaborator, policy.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// GetByEmployeeNumber looks up a collaborator by number. Gestion only.
func (s *Service) GetByEmployeeNumber(ctx context.Context, actor auth.Actor, number string) (auth.Collaborator, error) {
	_, decision := policy.ListScope(actor, policy.ResourceCollaborator)
	if err := decision.Err(policy.ResourceCollaborator, policy.ActionRead); err != nil {
		return auth.Collaborator{}, err
	}
	return s.repo.GetByEmployeeNumber(ctx, number)
}
