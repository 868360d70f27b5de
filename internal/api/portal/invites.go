// invites.go implements the invitation lifecycle: admins create and revoke
// invites for their active organization, and any authenticated account can
// accept one addressed to its email. Acceptance creates or reactivates the
// membership and refreshes the acceptor's session context so the new
// organization appears without a re-login.
package portal

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/auth"
	"github.com/member-portal/member-portal/internal/config"
	"github.com/member-portal/member-portal/internal/db/models"
	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/middleware"
	"github.com/member-portal/member-portal/internal/orgcontext"
	"github.com/member-portal/member-portal/internal/telemetry"
)

// InviteHandlers serves the invitation endpoints
type InviteHandlers struct {
	cfg            *config.Config
	inviteRepo     *repositories.InviteRepository
	membershipRepo *repositories.MembershipRepository
	userRepo       *repositories.UserRepository
	manager        *orgcontext.Manager
}

// NewInviteHandlers creates a new InviteHandlers instance
func NewInviteHandlers(cfg *config.Config, inviteRepo *repositories.InviteRepository, membershipRepo *repositories.MembershipRepository, userRepo *repositories.UserRepository, manager *orgcontext.Manager) *InviteHandlers {
	return &InviteHandlers{
		cfg:            cfg,
		inviteRepo:     inviteRepo,
		membershipRepo: membershipRepo,
		userRepo:       userRepo,
		manager:        manager,
	}
}

type createInviteRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// @Summary      Create invite
// @Description  Creates a pending invite for the active organization. The raw token appears only in this response.
// @Tags         Invites
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "invite, token, invite_url"
// @Failure      409  {object}  map[string]interface{}  "Duplicate pending invite or existing member"
// @Router       /api/v1/org/invites [post]
// CreateInviteHandler creates an invite for the active organization
// POST /api/v1/org/invites
func (h *InviteHandlers) CreateInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, _ := middleware.CurrentIdentity(c)
		orgID := c.GetString(middleware.ActiveOrgIDKey)

		var req createInviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a valid email is required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		role := req.Role
		if role == "" {
			role = models.InviteRoleMember
		}
		if !models.ValidInviteRole(role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}

		// Reject if the address already belongs to an active member.
		if user, err := h.userRepo.GetByEmail(c.Request.Context(), email); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
			return
		} else if user != nil {
			membership, err := h.membershipRepo.GetMembership(c.Request.Context(), orgID, user.ID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
				return
			}
			if membership != nil && membership.IsActive() {
				c.JSON(http.StatusConflict, gin.H{"error": "Already a member of this organization"})
				return
			}
		}

		pending, err := h.inviteRepo.HasPendingForEmail(c.Request.Context(), orgID, email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
			return
		}
		if pending {
			c.JSON(http.StatusConflict, gin.H{"error": "A pending invite already exists for this email"})
			return
		}

		token, tokenHash, err := auth.GenerateInviteToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
			return
		}

		invite := &models.Invite{
			OrgID:       orgID,
			Email:       email,
			RoleToGrant: role,
			TokenHash:   tokenHash,
			CreatedBy:   ident.ID,
			ExpiresAt:   time.Now().Add(h.cfg.Invites.TokenTTL),
		}
		if err := h.inviteRepo.Create(c.Request.Context(), invite); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invite"})
			return
		}

		telemetry.InviteEventsTotal.WithLabelValues("created").Inc()

		c.JSON(http.StatusCreated, gin.H{
			"invite": gin.H{
				"id":            invite.ID,
				"email":         invite.Email,
				"role_to_grant": invite.RoleToGrant,
				"status":        invite.Status,
				"expires_at":    invite.ExpiresAt,
			},
			// The raw token is returned exactly once; only its hash is stored.
			"token":      token,
			"invite_url": h.cfg.Server.BaseURL + "/app/invites/accept?token=" + token,
		})
	}
}

// ListInvitesHandler lists the active organization's invites. Pending invites
// whose window has passed are reported as "expired" without mutating the row;
// expiry is a property of the clock, not a stored transition.
// GET /api/v1/org/invites
func (h *InviteHandlers) ListInvitesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.ActiveOrgIDKey)

		invites, err := h.inviteRepo.ListByOrg(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list invites"})
			return
		}

		now := time.Now()
		for _, inv := range invites {
			if inv.Status == string(models.InviteStatusPending) && now.After(inv.ExpiresAt) {
				inv.Status = "expired"
			}
		}

		c.JSON(http.StatusOK, gin.H{"invites": invites})
	}
}

// RevokeInviteHandler revokes a pending invite
// DELETE /api/v1/org/invites/:id
func (h *InviteHandlers) RevokeInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.ActiveOrgIDKey)
		inviteID := c.Param("id")

		invite, err := h.inviteRepo.GetByID(c.Request.Context(), inviteID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke invite"})
			return
		}
		// An invite belonging to another organization is reported as absent,
		// not forbidden, so ids cannot be probed across tenants.
		if invite == nil || invite.OrgID != orgID {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invite not found"})
			return
		}

		revoked, err := h.inviteRepo.Revoke(c.Request.Context(), inviteID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke invite"})
			return
		}
		if !revoked {
			c.JSON(http.StatusConflict, gin.H{"error": "Invite is no longer pending"})
			return
		}

		telemetry.InviteEventsTotal.WithLabelValues("revoked").Inc()

		c.Status(http.StatusNoContent)
	}
}

type acceptInviteRequest struct {
	Token string `json:"token" binding:"required"`
}

// @Summary      Accept invite
// @Description  Redeems an invite token for the authenticated account, creating or reactivating the membership.
// @Tags         Invites
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "org_id plus the refreshed session context"
// @Failure      404  {object}  map[string]interface{}  "Unknown token"
// @Failure      410  {object}  map[string]interface{}  "Invite expired or already spent"
// @Router       /api/v1/invites/accept [post]
// AcceptInviteHandler redeems an invite token for the caller
// POST /api/v1/invites/accept
func (h *InviteHandlers) AcceptInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		var req acceptInviteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
			return
		}

		invite, err := h.inviteRepo.GetByTokenHash(c.Request.Context(), auth.HashInviteToken(req.Token))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
			return
		}
		if invite == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invite not found"})
			return
		}
		if invite.Status != string(models.InviteStatusPending) {
			c.JSON(http.StatusGone, gin.H{"error": "Invite is no longer valid"})
			return
		}
		if invite.Expired(time.Now()) {
			telemetry.InviteEventsTotal.WithLabelValues("expired").Inc()
			c.JSON(http.StatusGone, gin.H{"error": "Invite has expired"})
			return
		}

		// Invites are bound to an address, not an account: only the signed-in
		// account holding that address may redeem it.
		if !strings.EqualFold(invite.Email, ident.Email) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invite was issued to a different email"})
			return
		}

		adminOrg := invite.RoleToGrant == models.InviteRoleAdminOrg
		groupLeader := invite.RoleToGrant == models.InviteRoleGroupLeader

		existing, err := h.membershipRepo.GetMembership(c.Request.Context(), invite.OrgID, ident.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
			return
		}

		switch {
		case existing != nil && existing.IsActive():
			c.JSON(http.StatusConflict, gin.H{"error": "Already a member of this organization"})
			return
		case existing != nil:
			// A lapsed membership is reactivated with the invited role rather
			// than duplicated.
			if err := h.membershipRepo.UpdateStatus(c.Request.Context(), invite.OrgID, ident.ID, models.MembershipStatusActive); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
				return
			}
			if err := h.membershipRepo.SetRoleFlags(c.Request.Context(), invite.OrgID, ident.ID, adminOrg, groupLeader); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
				return
			}
		default:
			membership := &models.Membership{
				OrgID:           invite.OrgID,
				UserID:          ident.ID,
				Status:          models.MembershipStatusActive,
				RoleAdminOrg:    adminOrg,
				RoleGroupLeader: groupLeader,
			}
			if err := h.membershipRepo.Create(c.Request.Context(), membership); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
				return
			}
		}

		accepted, err := h.inviteRepo.MarkAccepted(c.Request.Context(), invite.ID, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept invite"})
			return
		}
		if !accepted {
			// Lost a race with a concurrent acceptance or revocation. The
			// membership write above stands; the invite state is what it is.
			slog.Warn("invite was not pending at acceptance", "invite_id", invite.ID)
			c.JSON(http.StatusGone, gin.H{"error": "Invite is no longer valid"})
			return
		}

		telemetry.InviteEventsTotal.WithLabelValues("accepted").Inc()

		// Refresh the acceptor's context so the organization shows up
		// immediately.
		store := h.manager.StoreFor(ident)
		store.Refresh(c.Request.Context())

		resp := snapshotResponse(store.Snapshot())
		resp["org_id"] = invite.OrgID
		c.JSON(http.StatusOK, resp)
	}
}
