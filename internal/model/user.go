package model

import (
	"fmt"
	"time"
)

// User is a clinic staff account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Roles.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// roleLevels ranks the roles; unknown roles rank zero.
var roleLevels = map[string]int{
	RoleViewer: 1,
	RoleStaff:  2,
	RoleAdmin:  3,
}

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return roleLevels[role] > 0
}

// RoleAtLeast reports whether role grants at least the access of minimum.
// Unknown roles never pass.
func RoleAtLeast(role, minimum string) bool {
	have, need := roleLevels[role], roleLevels[minimum]
	return have > 0 && need > 0 && have >= need
}

// ValidatePassword rejects passwords shorter than MinPasswordLength.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalid, MinPasswordLength)
	}
	return nil
}
