// members.go implements the admin member list for the active organization.
package portal

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/middleware"
)

// MemberHandlers serves the member management endpoints
type MemberHandlers struct {
	membershipRepo *repositories.MembershipRepository
}

// NewMemberHandlers creates a new MemberHandlers instance
func NewMemberHandlers(membershipRepo *repositories.MembershipRepository) *MemberHandlers {
	return &MemberHandlers{membershipRepo: membershipRepo}
}

// ListMembersHandler lists the active organization's members with user details
// GET /api/v1/org/members
func (h *MemberHandlers) ListMembersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := c.GetString(middleware.ActiveOrgIDKey)

		members, err := h.membershipRepo.ListMembersWithUsers(c.Request.Context(), orgID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"members": members})
	}
}
