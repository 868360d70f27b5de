// Package models - user.go defines the User model for portal accounts.
package models

import "time"

// User represents a portal account. Credentials are held as a bcrypt hash;
// the authentication protocol itself (token refresh, external IdP) is owned
// by the identity collaborator, not this service.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     *string   `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
