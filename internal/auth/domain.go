package auth

import "time"

// User represents an account that can sign in.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginInput is the submitted login form.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}
