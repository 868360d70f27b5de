// gate.go derives admission decisions from a session-context snapshot. The gate
// is a UX convenience: hiding a privileged view here is not an access-control
// boundary — the authoritative check lives in the repository/backend, which is
// why admin routes also revalidate membership server-side.
package orgcontext

// AdmissionState is what a page-level guard should do with the current context.
type AdmissionState string

const (
	// AdmissionLoading: a fetch is in flight or the store has never been
	// hydrated; show a loading affordance.
	AdmissionLoading AdmissionState = "LOADING"
	// AdmissionError: the last fetch failed; show a retry affordance.
	AdmissionError AdmissionState = "ERROR"
	// AdmissionNoOrg: the identity has no active memberships; terminal until
	// membership state changes externally and a refresh runs.
	AdmissionNoOrg AdmissionState = "NO_ORG"
	// AdmissionNeedsSelection: multiple organizations, none active; the
	// consumer must call SetActiveOrg to exit.
	AdmissionNeedsSelection AdmissionState = "NEEDS_SELECTION"
	// AdmissionReady: an organization is active; normal operation.
	AdmissionReady AdmissionState = "READY"
)

// Admission maps a context snapshot to its admission state.
func Admission(s Snapshot) AdmissionState {
	switch {
	case s.IsLoading, !s.Loaded:
		return AdmissionLoading
	case s.Err != nil:
		return AdmissionError
	case len(s.Organizations) == 0:
		return AdmissionNoOrg
	case s.ActiveOrg == nil:
		return AdmissionNeedsSelection
	default:
		return AdmissionReady
	}
}

// CanManageMembers reports whether the active membership carries the org-admin
// flag. False when no organization is active.
func CanManageMembers(s Snapshot) bool {
	return s.ActiveMembership != nil && s.ActiveMembership.RoleAdminOrg
}

// CanLeadGroups reports whether the active membership carries the group-leader
// flag. False when no organization is active.
func CanLeadGroups(s Snapshot) bool {
	return s.ActiveMembership != nil && s.ActiveMembership.RoleGroupLeader
}
