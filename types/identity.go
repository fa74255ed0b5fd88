package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   primitive.ObjectID
	Username string
	Role     string
	// IssuedAt is when the session token presented by the caller was signed.
	IssuedAt time.Time
}

// IsAdmin reports whether the caller has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
