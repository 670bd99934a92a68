package collaborator

import "crmflow/auth"

// CreateParams contains the fields accepted when creating a collaborator.
// EmployeeNumber is optional; when empty, one is derived from the role
// inside the creating transaction.
type CreateParams struct {
	EmployeeNumber string
	FirstName      string
	LastName       string
	Email          string
	Password       string
	Role           auth.Role
}

// UpdateParams is the allow-list of mutable collaborator fields. Nil fields
// are left untouched; there is no way to update a column not named here.
type UpdateParams struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Role      *auth.Role
}

func (p UpdateParams) empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil && p.Password == nil && p.Role == nil
}
