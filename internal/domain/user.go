package domain

import "time"

// UserRole enumerates directory roles. Admins and managers may authorize
// approval requests.
type UserRole string

const (
	UserRoleAdmin      UserRole = "admin"
	UserRoleManager    UserRole = "manager"
	UserRoleTechnician UserRole = "technician"
)

// User is an entry in the user directory.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         UserRole
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanApprove reports whether the user may decide approval requests.
func (u *User) CanApprove() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleManager
}
