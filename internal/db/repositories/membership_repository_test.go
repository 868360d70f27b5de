package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/member-portal/member-portal/internal/db/models"
)

var membershipCols = []string{"org_id", "user_id", "status", "role_admin_org", "role_group_leader", "created_at", "updated_at"}
var memberWithUserCols = []string{"org_id", "user_id", "email", "full_name", "status", "role_admin_org", "role_group_leader", "created_at"}

func sampleMembershipRow() *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).
		AddRow("org-1", "user-1", "active", true, false, time.Now(), time.Now())
}

func newMembershipRepo(t *testing.T) (*MembershipRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewMembershipRepository(db), mock
}

// ---------------------------------------------------------------------------
// ListActiveMemberships
// ---------------------------------------------------------------------------

func TestListActiveMemberships(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	rows := sqlmock.NewRows(membershipCols).
		AddRow("org-1", "user-1", "active", true, false, time.Now(), time.Now()).
		AddRow("org-2", "user-1", "active", false, true, time.Now(), time.Now())
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE user_id").
		WithArgs("user-1").
		WillReturnRows(rows)

	memberships, err := repo.ListActiveMemberships(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("len = %d, want 2", len(memberships))
	}
	if !memberships[0].RoleAdminOrg {
		t.Error("first membership should carry the admin flag")
	}
	if !memberships[1].RoleGroupLeader {
		t.Error("second membership should carry the leader flag")
	}
}

func TestListActiveMemberships_None(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE user_id").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	memberships, err := repo.ListActiveMemberships(context.Background(), "loner")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if memberships == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(memberships) != 0 {
		t.Errorf("len = %d, want 0", len(memberships))
	}
}

// ---------------------------------------------------------------------------
// GetMembership
// ---------------------------------------------------------------------------

func TestGetMembership_Found(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE org_id").
		WithArgs("org-1", "user-1").
		WillReturnRows(sampleMembershipRow())

	m, err := repo.GetMembership(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m == nil {
		t.Fatal("expected membership, got nil")
	}
	if !m.IsActive() {
		t.Error("sample membership should be active")
	}
}

func TestGetMembership_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("SELECT.*FROM organization_members.*WHERE org_id").
		WillReturnRows(sqlmock.NewRows(membershipCols))

	m, err := repo.GetMembership(context.Background(), "org-1", "stranger")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// Create / UpdateStatus / SetRoleFlags
// ---------------------------------------------------------------------------

func TestMembershipCreate(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectQuery("INSERT INTO organization_members").
		WithArgs("org-1", "user-1", "active", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).
			AddRow(time.Now(), time.Now()))

	m := &models.Membership{OrgID: "org-1", UserID: "user-1", Status: models.MembershipStatusActive}
	if err := repo.Create(context.Background(), m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestUpdateStatus(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("UPDATE organization_members").
		WithArgs("org-1", "user-1", "inactive").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "org-1", "user-1", models.MembershipStatusInactive)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("UPDATE organization_members").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "org-1", "ghost", models.MembershipStatusActive)
	if err == nil {
		t.Error("expected not-found error, got nil")
	}
}

func TestSetRoleFlags(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	mock.ExpectExec("UPDATE organization_members").
		WithArgs("org-1", "user-1", true, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetRoleFlags(context.Background(), "org-1", "user-1", true, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ListMembersWithUsers
// ---------------------------------------------------------------------------

func TestListMembersWithUsers(t *testing.T) {
	repo, mock := newMembershipRepo(t)
	rows := sqlmock.NewRows(memberWithUserCols).
		AddRow("org-1", "user-1", "jane@example.com", "Jane Doe", "active", true, false, time.Now()).
		AddRow("org-1", "user-2", "bob@example.com", nil, "pending", false, false, time.Now())
	mock.ExpectQuery("SELECT.*FROM organization_members m.*JOIN users u").
		WithArgs("org-1").
		WillReturnRows(rows)

	members, err := repo.ListMembersWithUsers(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}
	if members[0].Email != "jane@example.com" {
		t.Errorf("Email = %s, want jane@example.com", members[0].Email)
	}
	if members[1].FullName != nil {
		t.Error("second member has no full name")
	}
	if members[1].Status != "pending" {
		t.Errorf("second member Status = %s, want pending", members[1].Status)
	}
}
