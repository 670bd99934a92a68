package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"crmflow/auth"
	"crmflow/policy"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service gates client reads and writes behind the permission policy and
// runs each mutation in a single transaction.
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

// Create adds a client. A commercial actor always becomes the owner,
// whatever CommercialID the payload carries; gestion must name a
// commercial-role collaborator explicitly.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Client, error) {
	if err := policy.Check(actor, policy.ActionCreate, policy.ResourceClient, nil).Err(policy.ResourceClient, policy.ActionCreate); err != nil {
		return Client{}, err
	}

	if params.FullName == "" || params.Email == "" {
		return Client{}, fmt.Errorf("client: full name and email are required")
	}

	commercialID := params.CommercialID
	if actor.Role == auth.RoleCommercial {
		commercialID = actor.UserID
	}
	if commercialID == "" {
		return Client{}, fmt.Errorf("client: commercial id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Client{}, fmt.Errorf("client: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.EnsureCommercial(ctx, tx, commercialID); err != nil {
		return Client{}, err
	}

	created, err := s.repo.Create(ctx, tx, Client{
		ID:           s.idGenerator(),
		FullName:     params.FullName,
		Email:        params.Email,
		Phone:        params.Phone,
		CompanyName:  params.CompanyName,
		CommercialID: commercialID,
	})
	if err != nil {
		return Client{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Client{}, fmt.Errorf("client: commit tx: %w", err)
	}
	return created, nil
}

// Update mutates the allow-listed fields of a client. The current row is
// fetched and locked first so the ownership check and the write see the
// same state. Owner reassignment is gestion-only.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, params UpdateParams) (Client, error) {
	// Identity is gated before the row fetch, so an anonymous caller
	// cannot probe client ids.
	if !actor.Authenticated() || !actor.Role.Valid() {
		return Client{}, policy.Check(actor, policy.ActionUpdate, policy.ResourceClient, nil).Err(policy.ResourceClient, policy.ActionUpdate)
	}
	if params.empty() {
		return Client{}, fmt.Errorf("client: no fields to update")
	}
	if params.CommercialID != nil && actor.Role != auth.RoleGestion {
		return Client{}, (&policy.DeniedError{
			Resource: policy.ResourceClient,
			Action:   policy.ActionUpdate,
			Reason:   "owner reassignment requires gestion role",
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Client{}, fmt.Errorf("client: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Client{}, err
	}

	snapshot := policy.ClientSnapshot{CommercialID: current.CommercialID}
	if err := policy.Check(actor, policy.ActionUpdate, policy.ResourceClient, snapshot).Err(policy.ResourceClient, policy.ActionUpdate); err != nil {
		return Client{}, err
	}

	if params.FullName != nil {
		current.FullName = *params.FullName
	}
	if params.Email != nil {
		current.Email = *params.Email
	}
	if params.Phone != nil {
		current.Phone = *params.Phone
	}
	if params.CompanyName != nil {
		current.CompanyName = *params.CompanyName
	}
	if params.CommercialID != nil {
		if err := s.repo.EnsureCommercial(ctx, tx, *params.CommercialID); err != nil {
			return Client{}, err
		}
		current.CommercialID = *params.CommercialID
	}

	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return Client{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Client{}, fmt.Errorf("client: commit tx: %w", err)
	}
	return updated, nil
}

// Get retrieves one client, subject to the actor's read scope.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Client, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceClient)
	if err := decision.Err(policy.ResourceClient, policy.ActionRead); err != nil {
		return Client{}, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Client{}, err
	}
	if scope == policy.ScopeOwnCommercial && c.CommercialID != actor.UserID {
		// Out-of-scope rows are indistinguishable from absent ones.
		return Client{}, ErrNotFound
	}
	return c, nil
}

// List returns clients visible to the actor: all of them for gestion, own
// clients for a commercial.
func (s *Service) List(ctx context.Context, actor auth.Actor) ([]Client, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceClient)
	if err := decision.Err(policy.ResourceClient, policy.ActionRead); err != nil {
		return nil, err
	}

	commercialID := ""
	if scope == policy.ScopeOwnCommercial {
		commercialID = actor.UserID
	}
	return s.repo.List(ctx, commercialID)
}
