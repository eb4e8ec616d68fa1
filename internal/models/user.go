package models

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// User is an account that owns tasks.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	FullName     string     `json:"full_name"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// DisplayName returns "First Last".
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the payload for signing in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    User      `json:"user"`
}

// Validate checks the registration fields.
func (r *RegisterRequest) Validate() error {
	if err := validateCredentials(r.Email, r.Password); err != nil {
		return err
	}
	if strings.TrimSpace(r.FirstName) == "" {
		return NewValidationError("first_name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return NewValidationError("last_name is required")
	}
	if utf8.RuneCountInString(r.FirstName) > 50 || utf8.RuneCountInString(r.LastName) > 50 {
		return NewValidationError("names must be 50 characters or fewer")
	}
	return nil
}

// Validate checks the login fields.
func (r *LoginRequest) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

func validateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return NewValidationError("invalid email format")
	}
	// bcrypt ignores bytes past 72.
	if len(password) < 6 || len(password) > 72 {
		return NewValidationError("password must be between 6 and 72 characters")
	}
	return nil
}
