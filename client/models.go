package client

import "time"

// Client mirrors the clients table. CommercialID references the commercial
// collaborator who owns the client for authorization purposes.
type Client struct {
	ID           string
	FullName     string
	Email        string
	Phone        string
	CompanyName  string
	CommercialID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateParams contains the fields accepted when creating a client.
// CommercialID is ignored for commercial actors, who always own the clients
// they create; gestion must supply it.
type CreateParams struct {
	FullName     string
	Email        string
	Phone        string
	CompanyName  string
	CommercialID string
}

// UpdateParams is the allow-list of mutable client fields. Reassigning the
// owning commercial is a gestion-only change, enforced by the service.
type UpdateParams struct {
	FullName     *string
	Email        *string
	Phone        *string
	CompanyName  *string
	CommercialID *string
}

func (p UpdateParams) empty() bool {
	return p.FullName == nil && p.Email == nil && p.Phone == nil && p.CompanyName == nil && p.CommercialID == nil
}
