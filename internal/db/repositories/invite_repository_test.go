package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/member-portal/member-portal/internal/db/models"
)

var inviteCols = []string{"id", "org_id", "email", "role_to_grant", "token_hash", "status", "created_by", "created_at", "expires_at", "accepted_at"}
var inviteListCols = []string{"id", "email", "role_to_grant", "status", "created_at", "expires_at", "created_by_email"}

func sampleInviteRow() *sqlmock.Rows {
	return sqlmock.NewRows(inviteCols).
		AddRow("inv-1", "org-1", "invitee@example.com", "member", "abc123", "pending",
			"user-1", time.Now(), time.Now().Add(7*24*time.Hour), nil)
}

func newInviteRepo(t *testing.T) (*InviteRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewInviteRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestInviteCreate(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectExec("INSERT INTO invites").
		WillReturnResult(sqlmock.NewResult(0, 1))

	invite := &models.Invite{
		OrgID:       "org-1",
		Email:       "invitee@example.com",
		RoleToGrant: models.InviteRoleMember,
		TokenHash:   "abc123",
		CreatedBy:   "user-1",
		ExpiresAt:   time.Now().Add(7 * 24 * time.Hour),
	}
	if err := repo.Create(context.Background(), invite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invite.ID == "" {
		t.Error("Create must assign an id")
	}
	if invite.Status != string(models.InviteStatusPending) {
		t.Errorf("Status = %s, want pending", invite.Status)
	}
}

func TestGetByTokenHash_Found(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectQuery("SELECT \\* FROM invites WHERE token_hash").
		WithArgs("abc123").
		WillReturnRows(sampleInviteRow())

	invite, err := repo.GetByTokenHash(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invite == nil {
		t.Fatal("expected invite, got nil")
	}
	if invite.Email != "invitee@example.com" {
		t.Errorf("Email = %s", invite.Email)
	}
}

func TestGetByTokenHash_NotFound(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectQuery("SELECT \\* FROM invites WHERE token_hash").
		WillReturnRows(sqlmock.NewRows(inviteCols))

	invite, err := repo.GetByTokenHash(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invite != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestListByOrg(t *testing.T) {
	repo, mock := newInviteRepo(t)
	rows := sqlmock.NewRows(inviteListCols).
		AddRow("inv-1", "a@example.com", "member", "pending", time.Now(), time.Now().Add(time.Hour), "admin@example.com").
		AddRow("inv-2", "b@example.com", "admin_org", "revoked", time.Now(), time.Now().Add(time.Hour), "admin@example.com")
	mock.ExpectQuery("SELECT.*FROM invites i.*JOIN users u").
		WithArgs("org-1").
		WillReturnRows(rows)

	invites, err := repo.ListByOrg(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(invites) != 2 {
		t.Fatalf("len = %d, want 2", len(invites))
	}
	if invites[0].CreatedByEmail != "admin@example.com" {
		t.Errorf("CreatedByEmail = %s", invites[0].CreatedByEmail)
	}
}

func TestListByOrg_EmptyIsNotNil(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectQuery("SELECT.*FROM invites i.*JOIN users u").
		WillReturnRows(sqlmock.NewRows(inviteListCols))

	invites, err := repo.ListByOrg(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invites == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestHasPendingForEmail(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM invites").
		WithArgs("org-1", "invitee@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := repo.HasPendingForEmail(context.Background(), "org-1", "invitee@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected pending invite to be reported")
	}
}

func TestMarkAccepted(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectExec("UPDATE invites").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.MarkAccepted(context.Background(), "inv-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected acceptance of a pending invite to succeed")
	}
}

func TestMarkAccepted_AlreadySpent(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectExec("UPDATE invites").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkAccepted(context.Background(), "inv-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("a spent invite must not be accepted again")
	}
}

func TestRevoke(t *testing.T) {
	repo, mock := newInviteRepo(t)
	mock.ExpectExec("UPDATE invites").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Revoke(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected revocation of a pending invite to succeed")
	}
}

func TestDeleteStaleBefore(t *testing.T) {
	repo, mock := newInviteRepo(t)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM invites").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteStaleBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
}
