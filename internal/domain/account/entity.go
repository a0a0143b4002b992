package account

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleHomeowner = "homeowner"
	RoleArtisan   = "artisan"
	RoleAdmin     = "admin"
)

// Account is a read model over the external user system. Registration and
// session mechanics live elsewhere; the payments core consumes only the
// account's existence, role and phone number.
type Account struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	Role          string    `db:"role" json:"role"`
	Phone         string    `db:"phone" json:"phone"`
	PhoneVerified bool      `db:"phone_verified" json:"phone_verified"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
