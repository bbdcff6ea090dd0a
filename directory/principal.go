package directory

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no principal matches a lookup.
var ErrNotFound = errors.New("principal not found")

// Principal is an account that can authenticate. ID is the decimal form of
// the numeric user id; Number and Name are the two login identifiers.
type Principal struct {
	ID           string
	Number       string
	Name         string
	Role         string
	RoleID       int64
	TenantID     int64
	Email        string
	Phone        string
	Avatar       string
	PasswordHash string
	Active       bool
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Usable reports whether the principal may authenticate.
func (p Principal) Usable() bool {
	return p.Active && !p.Deleted
}

// Summary is the public view of a principal returned to clients.
type Summary struct {
	ID        string     `json:"user_id"`
	Name      string     `json:"user_name"`
	Number    string     `json:"user_num"`
	Role      string     `json:"user_role"`
	RoleID    int64      `json:"userrole_id"`
	TenantID  int64      `json:"tenant_id"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Active    bool       `json:"is_active"`
	CreatedAt *time.Time `json:"create_time,omitempty"`
	UpdatedAt *time.Time `json:"last_update_time,omitempty"`
}

// Summary strips credentials and bookkeeping flags.
func (p Principal) Summary() Summary {
	s := Summary{
		ID:       p.ID,
		Name:     p.Name,
		Number:   p.Number,
		Role:     p.Role,
		RoleID:   p.RoleID,
		TenantID: p.TenantID,
		Email:    p.Email,
		Phone:    p.Phone,
		Active:   p.Active,
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt
		s.CreatedAt = &t
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		s.UpdatedAt = &t
	}
	return s
}
