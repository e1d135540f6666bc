package pot

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanWrite is the single authorization rule for changing a pot or editing
// its ledger.
func CanWrite(r Role) bool {
	return r == RoleOwner || r == RoleAdmin
}

// Membership links a user to a pot. A (pot, user) pair exists at most once.
type Membership struct {
	PotID    uuid.UUID `json:"pot_id"`
	UserID   uuid.UUID `json:"user_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
