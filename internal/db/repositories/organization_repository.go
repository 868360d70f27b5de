// organization_repository.go implements OrganizationRepository, providing database
// queries for organization records: point lookups, batched lookup by id set, and
// the name/contact updates performed by admin flows.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/member-portal/member-portal/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const orgColumns = "id, name, type, contact_email, slug, created_at, updated_at"

func scanOrganization(row interface{ Scan(...interface{}) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Type,
		&org.ContactEmail,
		&org.Slug,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetByID retrieves an organization by ID. Returns (nil, nil) when not found.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE id = $1
	`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetBySlug retrieves an organization by its URL slug. Returns (nil, nil) when not found.
func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE slug = $1
	`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization by slug: %w", err)
	}

	return org, nil
}

// GetByIDs retrieves the organizations for the given id set in one query.
// The result is ordered by creation time so repeated fetches over the same
// backend state produce a stable ordering. Unknown ids are silently absent.
func (r *OrganizationRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Organization, error) {
	if len(ids) == 0 {
		return []*models.Organization{}, nil
	}

	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE id = ANY($1)
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := []*models.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}

	return orgs, nil
}

// Create inserts a new organization, filling in the generated id and timestamps.
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, type, contact_email, slug)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, org.Name, org.Type, org.ContactEmail, org.Slug).Scan(
		&org.ID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// UpdateDetails updates the mutable organization fields: name and contact email.
// Type and slug are immutable once created.
func (r *OrganizationRepository) UpdateDetails(ctx context.Context, id, name string, contactEmail *string) error {
	query := `
		UPDATE organizations
		SET name = $2, contact_email = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, name, contactEmail)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("organization not found: %s", id)
	}

	return nil
}
