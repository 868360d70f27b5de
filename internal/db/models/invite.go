// Package models - invite.go defines the Invite model: a time-bounded, single-use
// token granting a prospective member a specific role within an organization.
package models

import "time"

// InviteStatus is the lifecycle state of an invite.
type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
)

// Roles an invite may grant. "member" is the implicit default role and grants
// no flags; the other two set the corresponding membership flag on acceptance.
const (
	InviteRoleMember      = "member"
	InviteRoleAdminOrg    = "admin_org"
	InviteRoleGroupLeader = "group_leader"
)

// Invite represents a pending (or spent) invitation into an organization.
// Only the SHA-256 digest of the token is stored; the raw token is returned
// once at creation time and never persisted.
type Invite struct {
	ID          string     `db:"id"`
	OrgID       string     `db:"org_id"`
	Email       string     `db:"email"`
	RoleToGrant string     `db:"role_to_grant"`
	TokenHash   string     `db:"token_hash"`
	Status      string     `db:"status"`
	CreatedBy   string     `db:"created_by"`
	CreatedAt   time.Time  `db:"created_at"`
	ExpiresAt   time.Time  `db:"expires_at"`
	AcceptedAt  *time.Time `db:"accepted_at"`
}

// Expired reports whether the invite's validity window has passed.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// InviteListItem is the admin-facing invite row, including the creator's email.
type InviteListItem struct {
	ID             string    `db:"id" json:"id"`
	Email          string    `db:"email" json:"email"`
	RoleToGrant    string    `db:"role_to_grant" json:"role_to_grant"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	CreatedByEmail string    `db:"created_by_email" json:"created_by_email"`
}

// ValidInviteRole reports whether role is one of the grantable invite roles.
func ValidInviteRole(role string) bool {
	switch role {
	case InviteRoleMember, InviteRoleAdminOrg, InviteRoleGroupLeader:
		return true
	}
	return false
}
