package policy

import "crmflow/auth"

// Scope is the row-level filter a read operation must apply. Repositories
// translate it into a WHERE clause; results are never filtered client-side.
type Scope int

const (
	// ScopeAll returns every row, unfiltered.
	ScopeAll Scope = iota
	// ScopeOwnCommercial restricts rows to those whose commercial owner is
	// the actor (for events, the owning commercial of the event's contract).
	ScopeOwnCommercial
	// ScopeOwnSupport restricts rows to those whose support owner is the actor.
	ScopeOwnSupport
)

// ListScope returns the row filter for actor reading the given resource,
// or a deny decision when the actor may not list it at all.
func ListScope(actor auth.Actor, resource Resource) (Scope, Decision) {
	if !actor.Authenticated() {
		return 0, deny(ReasonNotAuthenticated)
	}
	if !actor.Role.Valid() {
		return 0, deny("unknown role")
	}

	if actor.Role == auth.RoleGestion {
		return ScopeAll, allow()
	}

	switch resource {
	case ResourceCollaborator:
		return 0, deny("collaborator listing requires gestion role")
	case ResourceClient, ResourceContract:
		if actor.Role != auth.RoleCommercial {
			return 0, deny("listing is restricted to the owning commercial")
		}
		return ScopeOwnCommercial, allow()
	case ResourceEvent:
		if actor.Role == auth.RoleSupport {
			return ScopeOwnSupport, allow()
		}
		return ScopeOwnCommercial, allow()
	default:
		return 0, deny("unknown resource")
	}
}
