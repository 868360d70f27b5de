// Package portal implements the member-facing HTTP handlers: session context,
// authentication, invitations, and the admin member list.
//
// The context endpoints are thin adapters over the per-identity context store;
// all resolution and concurrency rules live in internal/orgcontext. Handlers
// translate store errors to HTTP statuses and render snapshots in one shape so
// every context-returning endpoint looks the same to the frontend.
package portal

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/middleware"
	"github.com/member-portal/member-portal/internal/orgcontext"
)

// ContextHandlers serves the session-context endpoints
type ContextHandlers struct {
	manager *orgcontext.Manager
}

// NewContextHandlers creates a new ContextHandlers instance
func NewContextHandlers(manager *orgcontext.Manager) *ContextHandlers {
	return &ContextHandlers{manager: manager}
}

// snapshotResponse renders a context snapshot in the shape shared by every
// context-returning endpoint.
func snapshotResponse(snap orgcontext.Snapshot) gin.H {
	resp := gin.H{
		"state":              string(orgcontext.Admission(snap)),
		"organizations":      snap.Organizations,
		"active_org":         snap.ActiveOrg,
		"active_membership":  snap.ActiveMembership,
		"can_manage_members": orgcontext.CanManageMembers(snap),
		"can_lead_groups":    orgcontext.CanLeadGroups(snap),
	}
	if snap.Err != nil {
		resp["error"] = "Failed to load organizations"
	}
	return resp
}

// hydrated returns the identity's snapshot, fetching first if the store has
// never been populated.
func (h *ContextHandlers) hydrated(c *gin.Context, ident orgcontext.Identity) orgcontext.Snapshot {
	store := h.manager.StoreFor(ident)
	snap := store.Snapshot()
	if !snap.Loaded && !snap.IsLoading {
		store.Fetch(c.Request.Context())
		snap = store.Snapshot()
	}
	return snap
}

// @Summary      Get session context
// @Description  Returns the caller's organizations, active organization, and admission state.
// @Tags         Context
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/context [get]
// GetContextHandler returns the current session context
// GET /api/v1/context
func (h *ContextHandlers) GetContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		c.JSON(http.StatusOK, snapshotResponse(h.hydrated(c, ident)))
	}
}

// @Summary      Switch active organization
// @Description  Sets the caller's active organization after revalidating membership.
// @Tags         Context
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}  "No active membership in target organization"
// @Failure      404  {object}  map[string]interface{}  "Organization not in caller's list"
// @Failure      409  {object}  map[string]interface{}  "Switch superseded by a newer action"
// @Router       /api/v1/context/active-org [post]
// SetActiveOrgHandler switches the active organization
// POST /api/v1/context/active-org
func (h *ContextHandlers) SetActiveOrgHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		var req struct {
			OrgID string `json:"org_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "org_id is required"})
			return
		}

		store := h.manager.StoreFor(ident)
		// The switch validates the target against the cached organization
		// list, so make sure the store is hydrated first.
		if snap := store.Snapshot(); !snap.Loaded && !snap.IsLoading {
			store.Fetch(c.Request.Context())
		}

		if err := store.SetActiveOrg(c.Request.Context(), req.OrgID); err != nil {
			switch {
			case errors.Is(err, orgcontext.ErrOrganizationNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
			case errors.Is(err, orgcontext.ErrAccessDenied):
				c.JSON(http.StatusForbidden, gin.H{"error": "No active membership in organization"})
			case errors.Is(err, orgcontext.ErrSuperseded):
				c.JSON(http.StatusConflict, gin.H{"error": "Switch superseded by a newer action"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch organization"})
			}
			return
		}

		c.JSON(http.StatusOK, snapshotResponse(store.Snapshot()))
	}
}

// RefreshContextHandler re-resolves the session context from the database
// POST /api/v1/context/refresh
func (h *ContextHandlers) RefreshContextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		store := h.manager.StoreFor(ident)
		store.Refresh(c.Request.Context())

		c.JSON(http.StatusOK, snapshotResponse(store.Snapshot()))
	}
}
