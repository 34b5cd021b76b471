package profile

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no profile exists for the requested ID.
// Retrying will not help.
var ErrNotFound = errors.New("profile not found")

// ErrStoreUnavailable wraps transport failures and 5xx responses. The
// profile may exist; the fetch can be retried.
var ErrStoreUnavailable = errors.New("profile store unavailable")

// ErrForbidden is returned when the store rejects the caller's credentials.
var ErrForbidden = errors.New("profile access forbidden")

// Role is the closed set of help-desk roles.
type Role string

const (
	// RoleConsultant marks help-desk staff. Consultants may impersonate.
	RoleConsultant Role = "consultant"

	// RoleUser marks end customers.
	RoleUser Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleConsultant || r == RoleUser
}

// Profile is a help-desk directory record.
type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	CompanyID string `json:"company_id,omitempty"`
}

// IsConsultant reports whether the profile belongs to help-desk staff.
func (p *Profile) IsConsultant() bool {
	return p != nil && p.Role == RoleConsultant
}

// Clone returns a detached copy. Safe on a nil receiver.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// Store fetches profiles by user ID.
type Store interface {
	ProfileByID(ctx context.Context, id string) (*Profile, error)
}
