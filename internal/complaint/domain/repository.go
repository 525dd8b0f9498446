package domain

import (
	"context"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// Repository defines the interface for complaint persistence. Write methods
// store the given domain events in the same transaction as the change.
type Repository interface {
	// Save inserts a new complaint with its timeline
	Save(ctx context.Context, c *Complaint) error
	// FindByID loads a complaint with its responses, attachments and events
	FindByID(ctx context.Context, id types.ID) (*Complaint, error)
	// Update persists the status fields of c if its stored status is still
	// from, and fails with a conflict otherwise
	Update(ctx context.Context, c *Complaint, from Status, events []Event) error
	Delete(ctx context.Context, id types.ID) error

	List(ctx context.Context, filter ListFilter) ([]Complaint, int, error)

	AddResponse(ctx context.Context, r *Response, events []Event) error
	AddAttachment(ctx context.Context, a *Attachment, events []Event) error
}

// ListFilter defines filters for listing complaints
type ListFilter struct {
	// Area is the visibility of the caller; the zero value matches nothing
	Area geo.Condition `json:"-"`
	// Narrow further restricts results to a location; empty means no narrowing
	Narrow    types.Location `json:"narrow,omitempty"`
	CitizenID *types.ID      `json:"citizen_id,omitempty"`
	Status    *Status        `json:"status,omitempty"`
	Category  *Category      `json:"category,omitempty"`
	Search    string         `json:"search,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Offset    int            `json:"offset,omitempty"`
}
