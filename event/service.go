package event

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

// Service gates event reads and writes behind the permission policy and
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

// Create adds an event. A commercial actor may only create events against a
// signed contract; the contract state is read inside the same transaction
// as the insert.
func (s *Service) Create(ctx context.Context, actor auth.Actor, params CreateParams) (Event, error) {
	// Identity is gated before existence, so an anonymous caller cannot
	// probe contract ids.
	if !actor.Authenticated() || !actor.Role.Valid() {
		return Event{}, policy.Check(actor, policy.ActionCreate, policy.ResourceEvent, nil).Err(policy.ResourceEvent, policy.ActionCreate)
	}
	if params.ContractID == "" {
		return Event{}, fmt.Errorf("event: contract id is required")
	}
	if !params.DateEnd.After(params.DateStart) {
		return Event{}, fmt.Errorf("event: date_end must be after date_start")
	}
	if params.Attendees < 0 {
		return Event{}, fmt.Errorf("event: attendees cannot be negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("event: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	info, err := s.repo.GetContractInfo(ctx, tx, params.ContractID)
	if err != nil {
		return Event{}, err
	}

	snapshot := policy.ContractSnapshot{CommercialID: info.CommercialID, IsSigned: info.IsSigned}
	if err := policy.Check(actor, policy.ActionCreate, policy.ResourceEvent, snapshot).Err(policy.ResourceEvent, policy.ActionCreate); err != nil {
		return Event{}, err
	}

	if params.SupportID != nil {
		if err := s.repo.EnsureSupport(ctx, tx, *params.SupportID); err != nil {
			return Event{}, err
		}
	}

	created, err := s.repo.Create(ctx, tx, Event{
		ID:         s.idGenerator(),
		ContractID: params.ContractID,
		SupportID:  params.SupportID,
		DateStart:  params.DateStart,
		DateEnd:    params.DateEnd,
		Location:   params.Location,
		Attendees:  params.Attendees,
		Notes:      params.Notes,
	})
	if err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("event: commit tx: %w", err)
	}
	return created, nil
}

// Update mutates the allow-listed fields of an event under its row lock.
// Commercials may touch events of their own contracts, supports their own
// assignments, gestion any event.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id string, params UpdateParams) (Event, error) {
	// Identity is gated before the row fetch, so an anonymous caller
	// cannot probe event ids.
	if !actor.Authenticated() || !actor.Role.Valid() {
		return Event{}, policy.Check(actor, policy.ActionUpdate, policy.ResourceEvent, nil).Err(policy.ResourceEvent, policy.ActionUpdate)
	}
	if params.empty() {
		return Event{}, fmt.Errorf("event: no fields to update")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("event: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, info, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Event{}, err
	}

	snapshot := policy.EventSnapshot{CommercialID: info.CommercialID}
	if current.SupportID != nil {
		snapshot.SupportID = *current.SupportID
	}
	if err := policy.Check(actor, policy.ActionUpdate, policy.ResourceEvent, snapshot).Err(policy.ResourceEvent, policy.ActionUpdate); err != nil {
		return Event{}, err
	}

	if params.DateStart != nil {
		current.DateStart = *params.DateStart
	}
	if params.DateEnd != nil {
		current.DateEnd = *params.DateEnd
	}
	if !current.DateEnd.After(current.DateStart) {
		return Event{}, fmt.Errorf("event: date_end must be after date_start")
	}
	if params.Location != nil {
		current.Location = *params.Location
	}
	if params.Attendees != nil {
		if *params.Attendees < 0 {
			return Event{}, fmt.Errorf("event: attendees cannot be negative")
		}
		current.Attendees = *params.Attendees
	}
	if params.Notes != nil {
		current.Notes = *params.Notes
	}

	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("event: commit tx: %w", err)
	}
	return updated, nil
}

// AssignSupport sets the owning support collaborator of an event. This is
// the gestion workflow that gives support_id its value; no other role may
// call it, including the event's commercial.
func (s *Service) AssignSupport(ctx context.Context, actor auth.Actor, id, supportID string) (Event, error) {
	if !actor.Authenticated() {
		return Event{}, (&policy.DeniedError{
			Resource: policy.ResourceEvent,
			Action:   policy.ActionUpdate,
			Reason:   policy.ReasonNotAuthenticated,
		})
	}
	if actor.Role != auth.RoleGestion {
		return Event{}, (&policy.DeniedError{
			Resource: policy.ResourceEvent,
			Action:   policy.ActionUpdate,
			Reason:   "support assignment requires gestion role",
		})
	}
	if supportID == "" {
		return Event{}, fmt.Errorf("event: support id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("event: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, _, err := s.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		return Event{}, err
	}
	if err := s.repo.EnsureSupport(ctx, tx, supportID); err != nil {
		return Event{}, err
	}

	current.SupportID = &supportID
	updated, err := s.repo.Update(ctx, tx, current)
	if err != nil {
		return Event{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("event: commit tx: %w", err)
	}
	return updated, nil
}

// Get retrieves one event, subject to the actor's read scope.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (Event, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceEvent)
	if err := decision.Err(policy.ResourceEvent, policy.ActionRead); err != nil {
		return Event{}, err
	}

	e, info, err := s.repo.Get(ctx, id)
	if err != nil {
		return Event{}, err
	}
	switch scope {
	case policy.ScopeOwnCommercial:
		if info.CommercialID != actor.UserID {
			return Event{}, ErrNotFound
		}
	case policy.ScopeOwnSupport:
		if e.SupportID == nil || *e.SupportID != actor.UserID {
			return Event{}, ErrNotFound
		}
	}
	return e, nil
}

// List returns events visible to the actor: all for gestion, events of own
// contracts for a commercial, own assignments for a support. The
// unassigned-only filter is the gestion view that precedes assignment.
func (s *Service) List(ctx context.Context, actor auth.Actor, filters ListFilters) ([]Event, error) {
	scope, decision := policy.ListScope(actor, policy.ResourceEvent)
	if err := decision.Err(policy.ResourceEvent, policy.ActionRead); err != nil {
		return nil, err
	}

	q := ListQuery{UnassignedOnly: filters.UnassignedOnly}
	switch scope {
	case policy.ScopeOwnCommercial:
		q.CommercialID = actor.UserID
	case policy.ScopeOwnSupport:
		q.SupportID = actor.UserID
	}
	return s.repo.List(ctx, q)
}
