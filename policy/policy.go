// Package policy is the single source of truth for authorization decisions.
// It is pure: given an actor, an action, a resource kind and an optional
// entity snapshot it returns an allow/deny decision, performing no I/O.
// The model is closed-world; anything not explicitly allowed is denied.
package policy

import (
	"errors"
	"fmt"

	"crmflow/auth"
)

// Action describes the kind of operation an actor wants to perform.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Resource identifies the entity kind a decision applies to.
type Resource string

const (
	ResourceCollaborator Resource = "collaborator"
	ResourceClient       Resource = "client"
	ResourceContract     Resource = "contract"
	ResourceEvent        Resource = "event"
)

// ReasonNotAuthenticated is the reason attached to every decision made for
// an actor with no resolved identity.
const ReasonNotAuthenticated = "not authenticated"

var (
	// ErrNotAuthenticated marks denials caused by a missing identity.
	ErrNotAuthenticated = errors.New("policy: not authenticated")
	// ErrDenied marks denials of an authenticated actor.
	ErrDenied = errors.New("policy: denied")
)

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// DeniedError is the error form of a deny decision, carried unchanged from
// the policy to the caller so presentation can render the reason.
type DeniedError struct {
	Resource Resource
	Action   Action
	Reason   string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("policy: %s %s denied: %s", e.Action, e.Resource, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	if e.Reason == ReasonNotAuthenticated {
		return ErrNotAuthenticated
	}
	return ErrDenied
}

// Err converts a decision into an error for the given resource and action.
// It returns nil when the decision allows.
func (d Decision) Err(resource Resource, action Action) error {
	if d.Allowed {
		return nil
	}
	return &DeniedError{Resource: resource, Action: action, Reason: d.Reason}
}

// ClientSnapshot is the authorization-relevant state of a client.
type ClientSnapshot struct {
	CommercialID string
}

// ContractSnapshot is the authorization-relevant state of a contract. It
// doubles as the target-contract snapshot for event creation.
type ContractSnapshot struct {
	CommercialID string
	IsSigned     bool
}

// EventSnapshot is the authorization-relevant state of an event.
// CommercialID is the owning commercial of the event's contract.
type EventSnapshot struct {
	CommercialID string
	SupportID    string
}

// Check decides whether actor may perform action on the given resource.
// Update and delete checks require the current entity snapshot; event
// creation requires the target ContractSnapshot. Missing identity and
// unknown roles are denied before any rule is consulted.
func Check(actor auth.Actor, action Action, resource Resource, snapshot any) Decision {
	if !actor.Authenticated() {
		return deny(ReasonNotAuthenticated)
	}
	if !actor.Role.Valid() {
		return deny("unknown role")
	}

	// Gestion is never subject to ownership or state restrictions.
	if actor.Role == auth.RoleGestion {
		return allow()
	}

	switch resource {
	case ResourceCollaborator:
		return deny("collaborator management requires gestion role")
	case ResourceClient:
		return checkClient(actor, action, snapshot)
	case ResourceContract:
		return checkContract(actor, action, snapshot)
	case ResourceEvent:
		return checkEvent(actor, action, snapshot)
	default:
		return deny(fmt.Sprintf("unknown resource %q", resource))
	}
}

func checkClient(actor auth.Actor, action Action, snapshot any) Decision {
	if actor.Role != auth.RoleCommercial {
		return deny("clients are managed by their commercial")
	}

	switch action {
	case ActionCreate, ActionRead:
		return allow()
	case ActionUpdate:
		snap, ok := snapshot.(ClientSnapshot)
		if !ok {
			return deny("client snapshot required")
		}
		if snap.CommercialID != actor.UserID {
			return deny("client belongs to another commercial")
		}
		return allow()
	default:
		return deny(fmt.Sprintf("action %q not permitted on clients", action))
	}
}

func checkContract(actor auth.Actor, action Action, snapshot any) Decision {
	if actor.Role != auth.RoleCommercial {
		return deny("contracts are managed by their commercial")
	}

	switch action {
	case ActionCreate, ActionRead:
		return allow()
	case ActionUpdate:
		snap, ok := snapshot.(ContractSnapshot)
		if !ok {
			return deny("contract snapshot required")
		}
		if snap.CommercialID != actor.UserID {
			return deny("contract belongs to another commercial")
		}
		return allow()
	default:
		return deny(fmt.Sprintf("action %q not permitted on contracts", action))
	}
}

func checkEvent(actor auth.Actor, action Action, snapshot any) Decision {
	switch action {
	case ActionCreate:
		if actor.Role != auth.RoleCommercial {
			return deny("events are created by the contract's commercial")
		}
		snap, ok := snapshot.(ContractSnapshot)
		if !ok {
			return deny("target contract snapshot required")
		}
		if !snap.IsSigned {
			return deny("contract is not signed")
		}
		return allow()
	case ActionRead:
		return allow()
	case ActionUpdate:
		snap, ok := snapshot.(EventSnapshot)
		if !ok {
			return deny("event snapshot required")
		}
		switch actor.Role {
		case auth.RoleCommercial:
			if snap.CommercialID != actor.UserID {
				return deny("event belongs to another commercial's contract")
			}
			return allow()
		case auth.RoleSupport:
			if snap.SupportID != actor.UserID {
				return deny("event is assigned to another support")
			}
			return allow()
		default:
			return deny("unknown role")
		}
	default:
		return deny(fmt.Sprintf("action %q not permitted on events", action))
	}
}
