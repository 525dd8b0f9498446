package auth

import (
	"time"

	"github.com/citizenvoice/platform/internal/geo"
	"github.com/citizenvoice/platform/internal/shared/types"
)

// User is a registered account of any role
type User struct {
	ID           types.ID       `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone,omitempty"`
	PasswordHash string         `json:"-"`
	Role         Role           `json:"role"`
	Scope        geo.Level      `json:"administration_scope,omitempty"`
	Location     types.Location `json:"location"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// GeoLocation implements geo.Tagged
func (u User) GeoLocation() types.Location {
	return u.Location
}

// Actor returns the access-rule view of the user
func (u User) Actor() Actor {
	return Actor{
		ID:       types.Known(u.ID),
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Scope:    u.Scope,
		Location: u.Location,
	}
}

// UserFilter defines filters for listing users
type UserFilter struct {
	Role  *Role      `json:"role,omitempty"`
	Scope *geo.Level `json:"administration_scope,omitempty"`
	// Area restricts results geographically; the zero value matches nothing
	Area   geo.Condition `json:"-"`
	Search string        `json:"search,omitempty"`
	Limit  int           `json:"limit,omitempty"`
	Offset int           `json:"offset,omitempty"`
}
