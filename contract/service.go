package contract

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

// Service gates contract reads and writes behind the permission policy and
// runs each mutation in a single transaction.
type Service struct {
	pool        TxBeginner
	repo        Repository
	idGenerator func() string
	amountRule  bool
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

// WithAmountRule enables the optional validation that remaining_amount
// stays within [0, total_amount]. Off by default: signed contracts imported
// from older systems are known to violate it.
func (s *Service) WithAmountRule() *Service {
	s.amountRule = true
	return s
}

// Create adds a contract. The owning commercial is read from the client
// inside the transaction; gestion may name a different owner explicitly.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Contract, error) {
	if err := policy.Check(actor, policy.ActionCreate, policy.ResourceContract, nil).Err(policy.ResourceContract, policy.ActionCreate); err != nil {
		return Contract{}, err
	}

	if params.ClientID == "" {
		return Contract{}, fmt.Errorf("contract: client id is required")
	}
	if params.TotalAmount < 0 {
		return Contract{}, fmt.Errorf("contract: total amount cannot be negative")
	}
	if params.CommercialID != "" && actor.Role != auth.RoleGestion {
		return Contract{}, (&policy.DeniedError{
			Resource: policy.ResourceContract,
			Action:   policy.ActionCreate,
			Reason:   "owner reassignment requires gestion role",
		})
	}
	if err := s.checkAmounts(params.TotalAmount, params.RemainingAmount); err != nil {
		return Contract{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	commercialID := params.CommercialID
	if commercialID == "" {
		commercialID, err = s.repo.GetClientCommercial(ctx, tx, params.ClientID)
		if err != nil {
			return Contract{}, err
		}
	} else if err := s.repo.EnsureCommercial(ctx, tx, commercialID); err != nil {
		return Contract{}, err
	}

	created, err := s.repo.Create(ctx, tx, Contract{
		ID:              s.idGenerator(),
		ClientID:        params.ClientID,
		CommercialID:    commercialID,
		TotalAmount:     params.TotalAmount,
		RemainingAmount: params.RemainingAmount,
		IsSigned:        params.IsSigned,
	})
	if err != nil {
		return Contract{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit tx: %w", err)
	}
	return created, nil
}

// Update mutates the allow-listed fields of a contract under its row lock.
// Owner reassignment is gestion-only.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, params UpdateParams) (Contract, error) {
	// Identity is gated before the row fetch, so an anonymous caller
	// cannot probe contract ids.
	if !actor.Authenticated() || !actor.Role.Valid() {
		return Contract{}, policy.Check(actor, policy.ActionUpdate, policy.ResourceContract, nil).Err(policy.ResourceContract, policy.ActionUpdate)
	}
	if params.empty() {
		return Contract{}, fmt.Errorf("contract: no fields to update")
	}
	if params.CommercialID != nil && actor.Role != auth.RoleGestion {
		return Contract{}, (&policy.DeniedError{
			Resource: policy.ResourceContract,
			Action:   policy.ActionUpdate,
			Reason:   "owner reassignment requires gestion role",
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Contract{}, err
	}

	snapshot := policy.ContractSnapshot{CommercialID: current.CommercialID, IsSigned: current.IsSigned}
	if err := policy.Check(actor, policy.ActionUpdate, policy.ResourceContract, snapshot).Err(policy.ResourceContract, policy.ActionUpdate); err != nil {
		return Contract{}, err
	}

	if params.TotalAmount != nil {
		if *params.TotalAmount < 0 {
			return Contract{}, fmt.Errorf("contract: total amount cannot be negative")
		}
		current.TotalAmount = *params.TotalAmount
	}
	if params.RemainingAmount != nil {
		current.RemainingAmount = *params.RemainingAmount
	}
	if params.IsSigned != nil {
		current.IsSigned = *params.IsSigned
	}
	if params.CommercialID != nil {
		if err := s.repo.EnsureCommercial(ctx, tx, *params.CommercialID); err != nil {
			return Contract{}, err
		}
		current.CommercialID = *params.CommercialID
	}
	if err := s.checkAmounts(current.TotalAmount, current.RemainingAmount); err != nil {
		return Contract{}, err
	}

	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return Contract{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit tx: %w", err)
	}
	return updated, nil
}

// Sign marks a contract as signed. Signing never un-signs: a second call is
// a no-op returning the current state.
func (s *Service) Sign(ctx context.Context, actor auth.Actor, id string) (Contract, error) {
	if !actor.Authenticated() || !actor.Role.Valid() {
		return Contract{}, policy.Check(actor, policy.ActionUpdate, policy.ResourceContract, nil).Err(policy.ResourceContract, policy.ActionUpdate)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Contract{}, err
	}

	snapshot := policy.ContractSnapshot{CommercialID: current.CommercialID, IsSigned: current.IsSigned}
	if err := policy.Check(actor, policy.ActionUpdate, policy.ResourceContract, snapshot).Err(policy.ResourceContract, policy.ActionUpdate); err != nil {
		return Contract{}, err
	}

	if current.IsSigned {
		return current, nil
	}
	current.IsSigned = true

	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return Contract{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit tx: %w", err)
	}
	return updated, nil
}

// Get retrieves one contract, subject to the actor's read scope.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Contract, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceContract)
	if err := decision.Err(policy.ResourceContract, policy.ActionRead); err != nil {
		return Contract{}, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if scope == policy.ScopeOwnCommercial && c.CommercialID != actor.UserID {
		return Contract{}, ErrNotFound
	}
	return c, nil
}

// List returns contracts visible to the actor, optionally only unsigned ones.
func (s *Service) List(ctx context.Context, actor auth.Actor, filters ListFilters) ([]Contract, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceContract)
	if err := decision.Err(policy.ResourceContract, policy.ActionRead); err != nil {
		return nil, err
	}

	commercialID := ""
	if scope == policy.ScopeOwnCommercial {
		commercialID = actor.UserID
	}
	return s.repo.List(ctx, commercialID, filters)
}

func (s *Service) checkAmounts(total, remaining float64) error {
	if !s.amountRule {
		return nil
	}
	if remaining < 0 {
		return fmt.Errorf("contract: remaining amount cannot be negative")
	}
	if remaining > total {
		return fmt.Errorf("contract: remaining amount %.2f exceeds total %.2f", remaining, total)
	}
	return nil
}
