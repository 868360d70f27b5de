// Package models - organization.go defines the Organization model representing a tenant
// in the portal: either an auto-created "individual" org or an admin-managed "church" org.
package models

import "time"

// OrgType distinguishes personal organizations from multi-member ones.
type OrgType string

const (
	// OrgTypeIndividual is a personal organization auto-created at registration.
	OrgTypeIndividual OrgType = "individual"
	// OrgTypeChurch is a multi-member organization managed by its admins.
	OrgTypeChurch OrgType = "church"
)

// Organization represents a tenant unit shared by all of its members.
type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         OrgType   `json:"type"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Slug         *string   `json:"slug,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
