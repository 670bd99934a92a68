package contract

import "time"

// Contract mirrors the contracts table. CommercialID is inherited from the
// client's owning commercial at creation time and only gestion can point it
// elsewhere.
type Contract struct {
	ID              string
	ClientID        string
	CommercialID    string
	TotalAmount     float64
	RemainingAmount float64
	IsSigned        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams contains the fields accepted when creating a contract.
// CommercialID is optional and gestion-only; when empty, the client's
// commercial is used.
type CreateParams struct {
	ClientID        string
	CommercialID    string
	TotalAmount     float64
	RemainingAmount float64
	IsSigned        bool
}

// UpdateParams is the allow-list of mutable contract fields.
type UpdateParams struct {
	TotalAmount     *float64
	RemainingAmount *float64
	IsSigned        *bool
	CommercialID    *string
}

func (p UpdateParams) empty() bool {
	return p.TotalAmount == nil && p.RemainingAmount == nil && p.IsSigned == nil && p.CommercialID == nil
}

// ListFilters narrows a contract listing inside the actor's scope.
type ListFilters struct {
	UnsignedOnly bool
}
