// invite_repository.go implements InviteRepository, providing database queries for
// invite lifecycle management: creation, admin listing with creator email, token
// lookup for acceptance, and revocation.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/member-portal/member-portal/internal/db/models"
)

// InviteRepository handles database operations for organization invites
type InviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *sqlx.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create inserts a new pending invite. The caller provides the token hash;
// the raw token is never persisted.
func (r *InviteRepository) Create(ctx context.Context, invite *models.Invite) error {
	invite.ID = uuid.New().String()
	invite.Status = string(models.InviteStatusPending)
	invite.CreatedAt = time.Now()

	query := `
		INSERT INTO invites (
			id, org_id, email, role_to_grant, token_hash,
			status, created_by, created_at, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.ExecContext(ctx, query,
		invite.ID, invite.OrgID, invite.Email, invite.RoleToGrant, invite.TokenHash,
		invite.Status, invite.CreatedBy, invite.CreatedAt, invite.ExpiresAt,
	)
	return err
}

// GetByTokenHash retrieves an invite by its token digest. Returns (nil, nil)
// when no invite matches.
func (r *InviteRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Invite, error) {
	var invite models.Invite
	query := `SELECT * FROM invites WHERE token_hash = $1`
	err := r.db.GetContext(ctx, &invite, query, tokenHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// GetByID retrieves an invite by id. Returns (nil, nil) when not found.
func (r *InviteRepository) GetByID(ctx context.Context, id string) (*models.Invite, error) {
	var invite models.Invite
	query := `SELECT * FROM invites WHERE id = $1`
	err := r.db.GetContext(ctx, &invite, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// ListByOrg returns the organization's invites, newest first, with the
// creator's email joined in for the admin view.
func (r *InviteRepository) ListByOrg(ctx context.Context, orgID string) ([]*models.InviteListItem, error) {
	var invites []*models.InviteListItem
	query := `
		SELECT i.id, i.email, i.role_to_grant, i.status,
		       i.created_at, i.expires_at, u.email AS created_by_email
		FROM invites i
		JOIN users u ON u.id = i.created_by
		WHERE i.org_id = $1
		ORDER BY i.created_at DESC`

	err := r.db.SelectContext(ctx, &invites, query, orgID)
	if err != nil {
		return nil, err
	}
	if invites == nil {
		invites = []*models.InviteListItem{}
	}
	return invites, nil
}

// HasPendingForEmail reports whether a pending invite already exists for the
// given (org, email) pair.
func (r *InviteRepository) HasPendingForEmail(ctx context.Context, orgID, email string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM invites WHERE org_id = $1 AND email = $2 AND status = 'pending'`
	if err := r.db.GetContext(ctx, &count, query, orgID, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkAccepted transitions a pending invite to accepted. Returns false when
// the invite was not pending anymore (already spent or revoked).
func (r *InviteRepository) MarkAccepted(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE invites
		SET status = 'accepted', accepted_at = $2
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteStaleBefore removes pending and revoked invites whose redemption
// window closed before the cutoff. Accepted invites are kept as membership
// provenance. Returns the number of rows removed.
func (r *InviteRepository) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM invites
		WHERE status IN ('pending', 'revoked') AND expires_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Revoke transitions a pending invite to revoked. Returns false when the
// invite was not pending anymore.
func (r *InviteRepository) Revoke(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE invites
		SET status = 'revoked'
		WHERE id = $1 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
