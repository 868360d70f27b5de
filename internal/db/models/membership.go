// Package models - membership.go defines models for user-to-organization membership,
// carrying lifecycle status and independent role flags, plus enriched views joining
// user details for the admin member list.
package models

import "time"

// MembershipStatus is the lifecycle state of a membership. Only active
// memberships make their organization eligible for selection.
type MembershipStatus string

const (
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
	MembershipStatusPending  MembershipStatus = "pending"
)

// Membership represents a user's relationship to one organization. Identity is
// the (OrgID, UserID) pair. Role flags are independent booleans rather than a
// closed role enum: a member can be both an org admin and a group leader.
type Membership struct {
	OrgID           string           `json:"org_id"`
	UserID          string           `json:"user_id"`
	Status          MembershipStatus `json:"status"`
	RoleAdminOrg    bool             `json:"role_admin_org"`
	RoleGroupLeader bool             `json:"role_group_leader"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// IsActive reports whether the membership is eligible for organization selection.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}

// MemberWithUser joins a membership with user details for the admin member list.
type MemberWithUser struct {
	OrgID           string    `json:"org_id"`
	UserID          string    `json:"user_id"`
	Email           string    `json:"email"`
	FullName        *string   `json:"full_name"`
	Status          string    `json:"status"`
	RoleAdminOrg    bool      `json:"role_admin_org"`
	RoleGroupLeader bool      `json:"role_group_leader"`
	JoinedAt        time.Time `json:"joined_at"`
}
