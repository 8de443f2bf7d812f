package users

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoleType tags a user with an application role. Roles drive scope
// eligibility at a higher layer; the core carries them as an opaque attribute
// on issued tokens.
type RoleType string

const (
	RoleCustomer RoleType = "customer"
	RoleStore    RoleType = "store"
	RoleAdmin    RoleType = "admin"
)

// User is an authenticated end user. Identity is immutable once created.
type User struct {
	ID           string    `json:"id,omitempty"`
	Username     string    `json:"username,omitempty"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialize
	Role         RoleType  `json:"role,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a candidate password against a bcrypt hash in
// constant time.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
