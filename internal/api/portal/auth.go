// auth.go implements registration, login, and logout. Registration creates the
// account's personal organization in the same request so a fresh sign-in
// always resolves to a usable context.
package portal

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/auth"
	"github.com/member-portal/member-portal/internal/config"
	"github.com/member-portal/member-portal/internal/db/models"
	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/middleware"
	"github.com/member-portal/member-portal/internal/orgcontext"
)

// AuthHandlers serves the authentication endpoints
type AuthHandlers struct {
	cfg            *config.Config
	userRepo       *repositories.UserRepository
	orgRepo        *repositories.OrganizationRepository
	membershipRepo *repositories.MembershipRepository
	manager        *orgcontext.Manager
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(cfg *config.Config, userRepo *repositories.UserRepository, orgRepo *repositories.OrganizationRepository, membershipRepo *repositories.MembershipRepository, manager *orgcontext.Manager) *AuthHandlers {
	return &AuthHandlers{
		cfg:            cfg,
		userRepo:       userRepo,
		orgRepo:        orgRepo,
		membershipRepo: membershipRepo,
		manager:        manager,
	}
}

type registerRequest struct {
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName *string `json:"full_name"`
}

// @Summary      Register
// @Description  Creates an account plus its personal organization and active membership.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "token, user"
// @Failure      409  {object}  map[string]interface{}  "Email already registered"
// @Router       /api/v1/auth/register [post]
// RegisterHandler creates a new account
// POST /api/v1/auth/register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.cfg.Auth.AllowPublicSignup {
			c.JSON(http.StatusForbidden, gin.H{"error": "Registration is disabled"})
			return
		}

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and a password of at least 8 characters are required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		existing, err := h.userRepo.GetByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}

		hash, err := auth.HashPassword(req.Password, h.cfg.Auth.BcryptCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}

		user := &models.User{
			Email:        email,
			FullName:     req.FullName,
			PasswordHash: hash,
		}
		if err := h.userRepo.Create(c.Request.Context(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}

		// Every account gets a personal organization so the first context
		// resolution lands on a usable active org instead of NO_ORG.
		orgName := email
		if req.FullName != nil && *req.FullName != "" {
			orgName = *req.FullName
		}
		org := &models.Organization{
			Name: orgName,
			Type: models.OrgTypeIndividual,
		}
		if err := h.orgRepo.Create(c.Request.Context(), org); err != nil {
			slog.Error("failed to create personal organization", "user_id", user.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}

		membership := &models.Membership{
			OrgID:        org.ID,
			UserID:       user.ID,
			Status:       models.MembershipStatusActive,
			RoleAdminOrg: true,
		}
		if err := h.membershipRepo.Create(c.Request.Context(), membership); err != nil {
			slog.Error("failed to create personal membership", "user_id", user.ID, "org_id", org.ID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler authenticates an account and issues a session token
// POST /api/v1/auth/login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		user, err := h.userRepo.GetByEmail(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		// Same response for unknown email and wrong password so the endpoint
		// cannot be used to probe which addresses have accounts.
		if user == nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}

		token, err := auth.GenerateJWT(user.ID, user.Email, h.cfg.Auth.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  user,
		})
	}
}

// LogoutHandler tears down the caller's session context. The persisted
// active-org preference is cleared along with the store, so the next sign-in
// resolves from scratch.
// POST /api/v1/auth/logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := middleware.CurrentIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		h.manager.SignedOut(c.Request.Context(), ident.ID)

		c.Status(http.StatusNoContent)
	}
}

// MeHandler returns the authenticated account
// GET /api/v1/auth/me
func (h *AuthHandlers) MeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userVal, ok := c.Get(middleware.UserKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": userVal})
	}
}
