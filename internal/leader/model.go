// Package leader serves leader administration for admins and the citizen
// directory for leaders.
package leader

import (
	"github.com/citizenvoice/platform/internal/auth"
	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// CreateLeaderRequest is the admin form for a new leader account. Location
// fields deeper than the administration scope are left empty by clients.
type CreateLeaderRequest struct {
	Name  string    `json:"name" validate:"required,max=255"`
	Email string    `json:"email" validate:"required,email"`
	Phone string    `json:"phone" validate:"max=32"`
	Scope geo.Level `json:"administration_scope"`
	// LegacyScope accepts the misspelt key older admin clients send
	LegacyScope geo.Level `json:"adminstrationScope,omitempty"`

	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
	Sector   string `json:"sector,omitempty"`
	Cell     string `json:"cell,omitempty"`
	Village  string `json:"village,omitempty"`
}

// AdministrationScope returns the scope from whichever key was sent
func (r CreateLeaderRequest) AdministrationScope() geo.Level {
	if r.Scope != "" {
		return r.Scope
	}
	return r.LegacyScope
}

// Location returns the location fields as a Location
func (r CreateLeaderRequest) Location() types.Location {
	return types.NewLocation(r.Province, r.District, r.Sector, r.Cell, r.Village)
}

// CreatedLeader is returned once, with the temporary password
type CreatedLeader struct {
	Leader            auth.User `json:"leader"`
	TemporaryPassword string    `json:"temporary_password"`
}
