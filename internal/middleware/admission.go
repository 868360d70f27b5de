// admission.go gates org-scoped routes on the session context. The admission
// state decides whether a handler may run at all; the org-admin check on top
// of it revalidates the role against the database because the snapshot is a
// UX convenience, not the access-control boundary.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/orgcontext"
)

// Context keys set by RequireReadyContext
const (
	ActiveOrgIDKey = "organization_id"
	SnapshotKey    = "org_snapshot"
)

// ProfileRedirectPath is where members without the required role are sent
// instead of receiving a bare error page.
const ProfileRedirectPath = "/app/profile"

// RequireReadyContext ensures the session context is hydrated and an
// organization is active before the handler runs. A store that has never been
// hydrated is fetched inline. Non-ready states are reported to the caller
// with the admission state so the client can route accordingly.
func RequireReadyContext(manager *orgcontext.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		store := manager.StoreFor(ident)
		snap := store.Snapshot()
		if !snap.Loaded && !snap.IsLoading {
			store.Fetch(c.Request.Context())
			snap = store.Snapshot()
		}

		switch state := orgcontext.Admission(snap); state {
		case orgcontext.AdmissionReady:
			c.Set(ActiveOrgIDKey, snap.ActiveOrg.ID)
			c.Set(SnapshotKey, snap)
			c.Next()
		case orgcontext.AdmissionLoading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Session context is still loading",
				"state": string(state),
			})
		case orgcontext.AdmissionError:
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"error": "Failed to load session context",
				"state": string(state),
			})
		default: // NO_ORG, NEEDS_SELECTION
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "No active organization",
				"state": string(state),
			})
		}
	}
}

// ContextSnapshot returns the snapshot stored by RequireReadyContext.
func ContextSnapshot(c *gin.Context) (orgcontext.Snapshot, bool) {
	val, ok := c.Get(SnapshotKey)
	if !ok {
		return orgcontext.Snapshot{}, false
	}
	snap, ok := val.(orgcontext.Snapshot)
	return snap, ok
}

// RequireOrgAdmin allows only members whose active membership carries the
// org-admin flag. Members without it are redirected to their profile rather
// than shown an error. The role is revalidated against the database so a
// revoked admin loses access on their next request, not at their next
// sign-in.
func RequireOrgAdmin(membershipRepo *repositories.MembershipRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		snap, ok := ContextSnapshot(c)
		if !ok || snap.ActiveOrg == nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "No active organization",
			})
			return
		}

		if !orgcontext.CanManageMembers(snap) {
			c.Redirect(http.StatusSeeOther, ProfileRedirectPath)
			c.Abort()
			return
		}

		membership, err := membershipRepo.GetMembership(c.Request.Context(), snap.ActiveOrg.ID, ident.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check organization membership",
			})
			return
		}
		if membership == nil || !membership.IsActive() || !membership.RoleAdminOrg {
			c.Redirect(http.StatusSeeOther, ProfileRedirectPath)
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireGroupLeader allows members whose active membership carries either the
// group-leader or the org-admin flag.
func RequireGroupLeader(membershipRepo *repositories.MembershipRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := CurrentIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not authenticated",
			})
			return
		}

		snap, ok := ContextSnapshot(c)
		if !ok || snap.ActiveOrg == nil {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "No active organization",
			})
			return
		}

		if !orgcontext.CanLeadGroups(snap) && !orgcontext.CanManageMembers(snap) {
			c.Redirect(http.StatusSeeOther, ProfileRedirectPath)
			c.Abort()
			return
		}

		membership, err := membershipRepo.GetMembership(c.Request.Context(), snap.ActiveOrg.ID, ident.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to check organization membership",
			})
			return
		}
		if membership == nil || !membership.IsActive() || !(membership.RoleGroupLeader || membership.RoleAdminOrg) {
			c.Redirect(http.StatusSeeOther, ProfileRedirectPath)
			c.Abort()
			return
		}

		c.Next()
	}
}
