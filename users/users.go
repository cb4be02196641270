package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Principal is an authenticated user account. Principals are never hard-deleted; IsActive is
// cleared instead.
type Principal struct {
	ID             string    `json:"id,omitempty"`
	Username       string    `json:"username,omitempty"`
	PasswordHash   string    `json:"-"` // never serialize
	FullName       string    `json:"fullName,omitempty"`
	Email          string    `json:"email,omitempty"`
	RoleID         string    `json:"roleId,omitempty"`         // exactly one role
	BranchCode     string    `json:"branchCode,omitempty"`     // optional branch within the organization
	OrganizationID string    `json:"organizationId,omitempty"` // optional, switchable
	IsActive       bool      `json:"isActive"`
	IsLocked       bool      `json:"isLocked"`
	FailedLogins   int       `json:"failedLogins,omitempty"`
	LastLogin      time.Time `json:"lastLogin,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword compares password against the principal's stored hash
func (p *Principal) CheckPassword(password string) bool {
	return CheckPasswordHash(password, p.PasswordHash)
}

// CanAuthenticate reports whether the account state allows new sessions.
func (p *Principal) CanAuthenticate() bool {
	return p.IsActive && !p.IsLocked
}
