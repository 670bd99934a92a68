package event

import "time"

// Event mirrors the events table. SupportID is nil until gestion assigns a
// support collaborator; the owning commercial is reached through the
// contract.
type Event struct {
	ID         string
	ContractID string
	SupportID  *string
	DateStart  time.Time
	DateEnd    time.Time
	Location   string
	Attendees  int
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateParams contains the fields accepted when creating an event.
type CreateParams struct {
	ContractID string
	SupportID  *string
	DateStart  time.Time
	DateEnd    time.Time
	Location   string
	Attendees  int
	Notes      string
}

// UpdateParams is the allow-list of mutable event fields. Support
// assignment is a separate gestion-only operation, not an update field.
type UpdateParams struct {
	DateStart *time.Time
	DateEnd   *time.Time
	Location  *string
	Attendees *int
	Notes     *string
}

func (p UpdateParams) empty() bool {
	return p.DateStart == nil && p.DateEnd == nil && p.Location == nil && p.Attendees == nil && p.Notes == nil
}

// ListFilters narrows an event listing inside the actor's scope.
type ListFilters struct {
	UnassignedOnly bool
}
