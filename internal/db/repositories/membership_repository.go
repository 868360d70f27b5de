// membership_repository.go implements MembershipRepository, the backing store for the
// session-context subsystem: active-membership listing, point revalidation lookups,
// and the status/role transitions performed by invite acceptance.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/member-portal/member-portal/internal/db/models"
)

// MembershipRepository handles database operations for organization memberships
type MembershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *sql.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

const membershipColumns = "org_id, user_id, status, role_admin_org, role_group_leader, created_at, updated_at"

func scanMembership(row interface{ Scan(...interface{}) error }) (*models.Membership, error) {
	m := &models.Membership{}
	err := row.Scan(
		&m.OrgID,
		&m.UserID,
		&m.Status,
		&m.RoleAdminOrg,
		&m.RoleGroupLeader,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListActiveMemberships returns the user's memberships with status = active,
// ordered by join time for a stable organization ordering across re-fetches.
func (r *MembershipRepository) ListActiveMemberships(ctx context.Context, userID string) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE user_id = $1 AND status = 'active'
		ORDER BY created_at, org_id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}
	defer rows.Close()

	memberships := []*models.Membership{}
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	return memberships, nil
}

// GetMembership retrieves the membership for (orgID, userID) regardless of
// status. Returns (nil, nil) when no row exists. Callers that revalidate an
// active-org switch must additionally check Membership.IsActive().
func (r *MembershipRepository) GetMembership(ctx context.Context, orgID, userID string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM organization_members
		WHERE org_id = $1 AND user_id = $2
	`

	m, err := scanMembership(r.db.QueryRowContext(ctx, query, orgID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// Create inserts a membership row. The (org_id, user_id) pair must not already exist.
func (r *MembershipRepository) Create(ctx context.Context, m *models.Membership) error {
	query := `
		INSERT INTO organization_members (org_id, user_id, status, role_admin_org, role_group_leader)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		m.OrgID,
		m.UserID,
		m.Status,
		m.RoleAdminOrg,
		m.RoleGroupLeader,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// UpdateStatus transitions a membership's lifecycle status. Memberships are
// never deleted; deactivation is expressed as a transition to inactive.
func (r *MembershipRepository) UpdateStatus(ctx context.Context, orgID, userID string, status models.MembershipStatus) error {
	query := `
		UPDATE organization_members
		SET status = $3, updated_at = NOW()
		WHERE org_id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, orgID, userID, status)
	if err != nil {
		return fmt.Errorf("failed to update membership status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership not found: org=%s user=%s", orgID, userID)
	}

	return nil
}

// SetRoleFlags updates both role flags on an existing membership. Flags are
// independent capabilities, not mutually exclusive roles.
func (r *MembershipRepository) SetRoleFlags(ctx context.Context, orgID, userID string, adminOrg, groupLeader bool) error {
	query := `
		UPDATE organization_members
		SET role_admin_org = $3, role_group_leader = $4, updated_at = NOW()
		WHERE org_id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, orgID, userID, adminOrg, groupLeader)
	if err != nil {
		return fmt.Errorf("failed to update membership roles: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check role update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership not found: org=%s user=%s", orgID, userID)
	}

	return nil
}

// ListMembersWithUsers returns all members of an organization joined with user
// details, for the admin member list. Includes inactive and pending rows so
// admins can see the full membership lifecycle.
func (r *MembershipRepository) ListMembersWithUsers(ctx context.Context, orgID string) ([]*models.MemberWithUser, error) {
	query := `
		SELECT m.org_id, m.user_id, u.email, u.full_name,
		       m.status, m.role_admin_org, m.role_group_leader, m.created_at
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1
		ORDER BY m.created_at, m.user_id
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*models.MemberWithUser{}
	for rows.Next() {
		m := &models.MemberWithUser{}
		err := rows.Scan(
			&m.OrgID,
			&m.UserID,
			&m.Email,
			&m.FullName,
			&m.Status,
			&m.RoleAdminOrg,
			&m.RoleGroupLeader,
			&m.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}

	return members, nil
}
