package orgcontext

import (
	"errors"
	"testing"

	"github.com/member-portal/member-portal/internal/db/models"
)

func TestAdmissionStates(t *testing.T) {
	active := &models.Membership{OrgID: "a", UserID: "u1", Status: models.MembershipStatusActive}
	one := []*models.Organization{org("a", models.OrgTypeChurch)}
	two := []*models.Organization{org("a", models.OrgTypeChurch), org("b", models.OrgTypeChurch)}

	tests := []struct {
		name string
		snap Snapshot
		want AdmissionState
	}{
		{"never hydrated", Snapshot{}, AdmissionLoading},
		{"fetch in flight", Snapshot{IsLoading: true, Loaded: true}, AdmissionLoading},
		{"loading wins over error", Snapshot{IsLoading: true, Loaded: true, Err: errors.New("boom")}, AdmissionLoading},
		{"fetch failed", Snapshot{Loaded: true, Err: errors.New("boom")}, AdmissionError},
		{"no organizations", Snapshot{Loaded: true}, AdmissionNoOrg},
		{"none active", Snapshot{Loaded: true, Organizations: two}, AdmissionNeedsSelection},
		{"ready", Snapshot{Loaded: true, Organizations: one, ActiveOrg: one[0], ActiveMembership: active}, AdmissionReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Admission(tt.snap); got != tt.want {
				t.Errorf("Admission() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCanManageMembers(t *testing.T) {
	if CanManageMembers(Snapshot{}) {
		t.Error("no active membership must not manage members")
	}
	if CanManageMembers(Snapshot{ActiveMembership: &models.Membership{}}) {
		t.Error("membership without admin flag must not manage members")
	}
	if !CanManageMembers(Snapshot{ActiveMembership: &models.Membership{RoleAdminOrg: true}}) {
		t.Error("admin membership must manage members")
	}
}

func TestCanLeadGroups(t *testing.T) {
	if CanLeadGroups(Snapshot{}) {
		t.Error("no active membership must not lead groups")
	}
	if !CanLeadGroups(Snapshot{ActiveMembership: &models.Membership{RoleGroupLeader: true}}) {
		t.Error("group-leader membership must lead groups")
	}
	// The flags are independent; admin does not imply leader at this level.
	if CanLeadGroups(Snapshot{ActiveMembership: &models.Membership{RoleAdminOrg: true}}) {
		t.Error("admin flag alone must not imply group leadership")
	}
}
