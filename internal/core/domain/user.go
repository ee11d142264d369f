package domain

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the closed set of roles a principal can hold.
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(roles, r)
}

// In reports whether r appears in allowed.
func (r Role) In(allowed []Role) bool {
	return slices.Contains(allowed, r)
}

const DefaultPhoto = "default.jpg"

// Bounds on a user name, counted in characters.
const (
	MinNameLength = 10
	MaxNameLength = 40
)

// User is the principal a request acts as.
type User struct {
	ID                   primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name                 string             `json:"name,omitempty" bson:"name"`
	Email                string             `json:"email,omitempty" bson:"email"`
	Photo                string             `json:"photo,omitempty" bson:"photo"`
	Role                 Role               `json:"role,omitempty" bson:"role"`
	PasswordHash         string             `json:"-" bson:"password"`
	PasswordChangedAt    *time.Time         `json:"passwordChangedAt,omitempty" bson:"passwordChangedAt,omitempty"`
	PasswordResetToken   string             `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time         `json:"-" bson:"passwordResetExpires,omitempty"`
	Active               bool               `json:"-" bson:"active"`
	CreatedAt            time.Time          `json:"createdAt,omitzero" bson:"createdAt"`
	Version              int                `json:"-" bson:"__v"`
}

// ChangedPasswordAfter reports whether the password changed after a
// credential issued at iat. Comparison is at second granularity, matching the
// precision of JWT timestamps.
func (u *User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// UserPatch carries the fields an update may touch. Nil means unchanged.
type UserPatch struct {
	Name  *string
	Email *string
	Photo *string
	Role  *Role
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Photo == nil && p.Role == nil
}
