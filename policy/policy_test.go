package policy

import (
	"errors"
	"testing"

	"crmflow/auth"
)

var (
	commercial = auth.Actor{UserID: "com-1", Role: auth.RoleCommercial}
	support    = auth.Actor{UserID: "sup-1", Role: auth.RoleSupport}
	gestion    = auth.Actor{UserID: "ges-1", Role: auth.RoleGestion}
)

func TestCheck_Unauthenticated(t *testing.T) {
	resources := []Resource{ResourceCollaborator, ResourceClient, ResourceContract, ResourceEvent}
	actions := []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

	for _, res := range resources {
		for _, action := range actions {
			d := Check(auth.Actor{}, action, res, nil)
			if d.Allowed {
				t.Errorf("%s %s: expected deny for unauthenticated actor", action, res)
			}
			if d.Reason != ReasonNotAuthenticated {
				t.Errorf("%s %s: expected reason %q, got %q", action, res, ReasonNotAuthenticated, d.Reason)
			}
		}
	}
}

func TestCheck_UnknownRole(t *testing.T) {
	intruder := auth.Actor{UserID: "x-1", Role: auth.Role("superadmin")}

	if d := Check(intruder, ActionCreate, ResourceClient, nil); d.Allowed {
		t.Error("expected unknown role to deny by default")
	}
	if d := Check(intruder, ActionRead, ResourceEvent, nil); d.Allowed {
		t.Error("expected unknown role to deny reads too")
	}
}

func TestCheck_CollaboratorRules(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		if d := Check(gestion, action, ResourceCollaborator, nil); !d.Allowed {
			t.Errorf("gestion %s collaborator: expected allow, got %q", action, d.Reason)
		}
		if d := Check(commercial, action, ResourceCollaborator, nil); d.Allowed {
			t.Errorf("commercial %s collaborator: expected deny", action)
		}
		if d := Check(support, action, ResourceCollaborator, nil); d.Allowed {
			t.Errorf("support %s collaborator: expected deny", action)
		}
	}
}

func TestCheck_ClientRules(t *testing.T) {
	own := ClientSnapshot{CommercialID: commercial.UserID}
	other := ClientSnapshot{CommercialID: "com-2"}

	if d := Check(commercial, ActionCreate, ResourceClient, nil); !d.Allowed {
		t.Errorf("commercial create client: expected allow, got %q", d.Reason)
	}
	if d := Check(support, ActionCreate, ResourceClient, nil); d.Allowed {
		t.Error("support create client: expected deny")
	}

	if d := Check(commercial, ActionUpdate, ResourceClient, own); !d.Allowed {
		t.Errorf("commercial update own client: expected allow, got %q", d.Reason)
	}
	if d := Check(commercial, ActionUpdate, ResourceClient, other); d.Allowed {
		t.Error("commercial update foreign client: expected deny")
	}
	if d := Check(gestion, ActionUpdate, ResourceClient, other); !d.Allowed {
		t.Errorf("gestion update any client: expected allow, got %q", d.Reason)
	}
	if d := Check(support, ActionRead, ResourceClient, nil); d.Allowed {
		t.Error("support read client: expected deny")
	}
	if d := Check(commercial, ActionDelete, ResourceClient, own); d.Allowed {
		t.Error("client delete: expected deny, no rule grants it")
	}
}

func TestCheck_ContractRules(t *testing.T) {
	own := ContractSnapshot{CommercialID: commercial.UserID}
	other := ContractSnapshot{CommercialID: "com-2"}

	if d := Check(commercial, ActionCreate, ResourceContract, nil); !d.Allowed {
		t.Errorf("commercial create contract: expected allow, got %q", d.Reason)
	}
	if d := Check(support, ActionCreate, ResourceContract, nil); d.Allowed {
		t.Error("support create contract: expected deny")
	}
	if d := Check(commercial, ActionUpdate, ResourceContract, own); !d.Allowed {
		t.Errorf("commercial update own contract: expected allow, got %q", d.Reason)
	}
	if d := Check(commercial, ActionUpdate, ResourceContract, other); d.Allowed {
		t.Error("commercial update foreign contract: expected deny")
	}
	if d := Check(gestion, ActionUpdate, ResourceContract, other); !d.Allowed {
		t.Errorf("gestion update any contract: expected allow, got %q", d.Reason)
	}
}

func TestCheck_EventCreateRequiresSignedContract(t *testing.T) {
	signed := ContractSnapshot{CommercialID: commercial.UserID, IsSigned: true}
	unsigned := ContractSnapshot{CommercialID: commercial.UserID, IsSigned: false}

	if d := Check(commercial, ActionCreate, ResourceEvent, signed); !d.Allowed {
		t.Errorf("commercial create event on signed contract: expected allow, got %q", d.Reason)
	}
	if d := Check(commercial, ActionCreate, ResourceEvent, unsigned); d.Allowed {
		t.Error("commercial create event on unsigned contract: expected deny")
	}
	if d := Check(support, ActionCreate, ResourceEvent, signed); d.Allowed {
		t.Error("support create event: expected deny")
	}
	// Gestion is exempt from the signature gate.
	if d := Check(gestion, ActionCreate, ResourceEvent, unsigned); !d.Allowed {
		t.Errorf("gestion create event on unsigned contract: expected allow, got %q", d.Reason)
	}
}

func TestCheck_EventUpdateOwnership(t *testing.T) {
	ownContract := EventSnapshot{CommercialID: commercial.UserID, SupportID: "sup-2"}
	ownSupport := EventSnapshot{CommercialID: "com-2", SupportID: support.UserID}
	foreign := EventSnapshot{CommercialID: "com-2", SupportID: "sup-2"}

	if d := Check(commercial, ActionUpdate, ResourceEvent, ownContract); !d.Allowed {
		t.Errorf("commercial update event of own contract: expected allow, got %q", d.Reason)
	}
	if d := Check(commercial, ActionUpdate, ResourceEvent, foreign); d.Allowed {
		t.Error("commercial update foreign event: expected deny")
	}
	if d := Check(support, ActionUpdate, ResourceEvent, ownSupport); !d.Allowed {
		t.Errorf("support update own event: expected allow, got %q", d.Reason)
	}
	if d := Check(support, ActionUpdate, ResourceEvent, foreign); d.Allowed {
		t.Error("support update foreign event: expected deny")
	}
	if d := Check(gestion, ActionUpdate, ResourceEvent, foreign); !d.Allowed {
		t.Errorf("gestion update any event: expected allow, got %q", d.Reason)
	}
}

func TestCheck_SnapshotRequired(t *testing.T) {
	if d := Check(commercial, ActionUpdate, ResourceClient, nil); d.Allowed {
		t.Error("update without snapshot: expected deny")
	}
	if d := Check(commercial, ActionCreate, ResourceEvent, nil); d.Allowed {
		t.Error("event create without contract snapshot: expected deny")
	}
}

func TestDecisionErr(t *testing.T) {
	if err := Check(gestion, ActionCreate, ResourceClient, nil).Err(ResourceClient, ActionCreate); err != nil {
		t.Fatalf("allow decision must convert to nil error, got %v", err)
	}

	err := Check(auth.Actor{}, ActionCreate, ResourceClient, nil).Err(ResourceClient, ActionCreate)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	err = Check(support, ActionCreate, ResourceClient, nil).Err(ResourceClient, ActionCreate)
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if !errors.Is(err, ErrDenied) || errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("authenticated denial must wrap ErrDenied only, got %v", err)
	}
	if denied.Reason == "" {
		t.Fatal("expected a denial reason")
	}
}
