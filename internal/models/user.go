package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the authenticated caller attached to every request by the
// auth middleware. Workflow services trust it for ownership checks.
type Principal struct {
	AccountID string
	Role      Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanAccess reports whether the principal may act on resources owned by
// the given account. Admins may act on any account.
func (p Principal) CanAccess(accountID string) bool {
	return p.IsAdmin() || p.AccountID == accountID
}

// User is a platform account. Balance starts at zero and is only ever
// mutated through the atomic increment path paired with a ledger record.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`
	FirstName      string             `bson:"first_name" json:"first_name"`
	LastName       string             `bson:"last_name" json:"last_name"`
	HashedPassword string             `bson:"hashed_password" json:"-"`
	Role           Role               `bson:"role" json:"role"`
	Balance        float64            `bson:"balance" json:"balance"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}

// AccountUpdate carries the mutable profile fields. Balance only moves
// through the ledger, never a profile update.
type AccountUpdate struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      Role   `json:"role,omitempty"`
	IsActive  *bool  `json:"is_active,omitempty"`
}
