// Package api wires together all HTTP routes for the member portal backend.
//
// Route grouping philosophy:
//   - /api/v1/auth/register and /api/v1/auth/login are public by necessity and
//     carry the strict auth rate limit to slow credential stuffing.
//   - Everything else under /api/v1 requires a valid bearer token.
//   - /api/v1/org/* additionally requires a READY session context and, for
//     member management, the org-admin flag revalidated against the database.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/member-portal/member-portal/internal/api/portal"
	"github.com/member-portal/member-portal/internal/audit"
	"github.com/member-portal/member-portal/internal/config"
	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/jobs"
	"github.com/member-portal/member-portal/internal/middleware"
	"github.com/member-portal/member-portal/internal/orgcontext"
	"github.com/member-portal/member-portal/internal/safego"
)

// BackgroundServices holds references to background goroutines and resources
// that must be stopped during graceful shutdown. The caller (cmd/server) is
// responsible for calling Shutdown() when the process receives a termination
// signal.
type BackgroundServices struct {
	manager      *orgcontext.Manager
	auditShipper audit.Shipper
	inviteReaper *jobs.InviteReaper
	rateLimiters []*middleware.RateLimiter
}

// Manager exposes the session context manager for callers that need it
// outside request handling (tests, shutdown hooks).
func (bg *BackgroundServices) Manager() *orgcontext.Manager {
	return bg.manager
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.inviteReaper != nil {
		bg.inviteReaper.Stop()
	}
	if bg.manager != nil {
		bg.manager.Close()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	if bg.auditShipper != nil {
		if err := bg.auditShipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rdb may be nil, in which
// case the active-organization preference falls back to process memory and
// rate limiting is enforced per instance instead of fleet-wide.
func NewRouter(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	orgRepo := repositories.NewOrganizationRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Wrap *sql.DB with sqlx for the invite repository
	sqlxDB := sqlx.NewDb(db, "postgres")
	inviteRepo := repositories.NewInviteRepository(sqlxDB)

	// Active-organization preference: Redis when available so the choice
	// survives restarts and is shared across instances.
	var prefs orgcontext.PreferenceStore
	if rdb != nil {
		prefs = orgcontext.NewRedisPreferences(rdb)
	} else {
		prefs = orgcontext.NewMemoryPreferences()
		slog.Warn("redis disabled; active-organization preference is per-instance only")
	}

	manager := orgcontext.NewManager(orgcontext.ManagerDeps{
		Memberships: membershipRepo,
		Orgs:        orgRepo,
		Prefs:       prefs,
	}, orgcontext.ManagerConfig{
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
	})

	// Audit shipper fan-out (optional)
	auditShipper := buildAuditShipper(&cfg.Audit)

	// Housekeeping for long-expired invites
	inviteReaper := jobs.NewInviteReaper(inviteRepo, &cfg.Invites, 24*time.Hour)
	safego.Go(func() { inviteReaper.Start(context.Background()) })

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes Redis probe when enabled)
	router.GET("/ready", readinessHandler(db, rdb))

	// API version
	router.GET("/version", versionHandler())

	// Rate limiters. With Redis the GCRA limiter holds limits fleet-wide;
	// without it each instance enforces its own token bucket.
	bg := &BackgroundServices{manager: manager, auditShipper: auditShipper, inviteReaper: inviteReaper}
	var authRateLimit, generalRateLimit gin.HandlerFunc
	if rdb != nil {
		authRateLimit = middleware.RedisRateLimitMiddleware(rdb, middleware.AuthRateLimitConfig())
		generalRateLimit = middleware.RedisRateLimitMiddleware(rdb, generalRateLimitConfig(cfg))
	} else {
		authLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
		generalLimiter := middleware.NewRateLimiter(generalRateLimitConfig(cfg))
		bg.rateLimiters = []*middleware.RateLimiter{authLimiter, generalLimiter}
		authRateLimit = middleware.RateLimitMiddleware(authLimiter)
		generalRateLimit = middleware.RateLimitMiddleware(generalLimiter)
	}

	auditMW := middleware.AuditMiddleware(auditRepo)
	if auditShipper != nil {
		auditMW = middleware.AuditMiddlewareWithShipper(auditRepo, auditShipper, &cfg.Audit)
	}

	// Initialize handlers
	authHandlers := portal.NewAuthHandlers(cfg, userRepo, orgRepo, membershipRepo, manager)
	contextHandlers := portal.NewContextHandlers(manager)
	inviteHandlers := portal.NewInviteHandlers(cfg, inviteRepo, membershipRepo, userRepo, manager)
	memberHandlers := portal.NewMemberHandlers(membershipRepo)

	apiV1 := router.Group("/api/v1")
	{
		// Public authentication endpoints (no auth required, strictly rate limited)
		authGroup := apiV1.Group("/auth")
		authGroup.Use(authRateLimit)
		{
			authGroup.POST("/register", authHandlers.RegisterHandler())
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		// Authenticated endpoints
		authenticatedGroup := apiV1.Group("")
		authenticatedGroup.Use(generalRateLimit)
		authenticatedGroup.Use(middleware.AuthMiddleware(userRepo))
		authenticatedGroup.Use(auditMW) // Audit all authenticated actions
		{
			authenticatedGroup.POST("/auth/logout", authHandlers.LogoutHandler())
			authenticatedGroup.GET("/auth/me", authHandlers.MeHandler())

			// Session context endpoints. These work in every context state:
			// the whole point of GET /context is to tell the caller whether
			// an organization is resolved, so no admission gate here.
			authenticatedGroup.GET("/context", contextHandlers.GetContextHandler())
			authenticatedGroup.POST("/context/active-org", contextHandlers.SetActiveOrgHandler())
			authenticatedGroup.POST("/context/refresh", contextHandlers.RefreshContextHandler())

			// Invite acceptance needs only an authenticated identity; the
			// accepting user is usually not yet a member of the org.
			authenticatedGroup.POST("/invites/accept", inviteHandlers.AcceptInviteHandler())

			// Organization management requires a READY context and the
			// org-admin flag on the active membership.
			orgGroup := authenticatedGroup.Group("/org")
			orgGroup.Use(middleware.RequireReadyContext(manager))
			orgGroup.Use(middleware.RequireOrgAdmin(membershipRepo))
			{
				orgGroup.GET("/members", memberHandlers.ListMembersHandler())

				orgGroup.GET("/invites", inviteHandlers.ListInvitesHandler())
				orgGroup.POST("/invites", inviteHandlers.CreateInviteHandler())
				orgGroup.DELETE("/invites/:id", inviteHandlers.RevokeInviteHandler())
			}
		}
	}

	return router, bg
}

// generalRateLimitConfig returns the default rate limit config, overridden by
// the operator's settings when present.
func generalRateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.Security.RateLimiting.RequestsPerMinute > 0 {
		rl.RequestsPerMinute = cfg.Security.RateLimiting.RequestsPerMinute
	}
	if cfg.Security.RateLimiting.Burst > 0 {
		rl.BurstSize = cfg.Security.RateLimiting.Burst
	}
	return rl
}

// buildAuditShipper converts operator audit config into the shipper fan-out.
// Returns nil when nothing is enabled; the middleware then writes to the
// database only.
func buildAuditShipper(auditCfg *config.AuditConfig) audit.Shipper {
	if !auditCfg.Enabled || len(auditCfg.Shippers) == 0 {
		return nil
	}

	var configs []audit.ShipperConfig
	for _, sc := range auditCfg.Shippers {
		out := audit.ShipperConfig{Enabled: sc.Enabled, Type: sc.Type}
		if sc.Webhook != nil {
			out.Webhook = &audit.WebhookConfig{
				URL:     sc.Webhook.URL,
				Headers: sc.Webhook.Headers,
				Timeout: time.Duration(sc.Webhook.TimeoutSecs) * time.Second,
			}
		}
		if sc.File != nil {
			out.File = &audit.FileConfig{Path: sc.File.Path}
		}
		configs = append(configs, out)
	}

	shipper, err := audit.NewMultiShipper(configs)
	if err != nil {
		slog.Error("failed to initialize audit shippers; continuing with database audit only", "error", err)
		return nil
	}
	return shipper
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check database connection
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service.
// Unlike the liveness probe (/health), this also pings Redis when configured
// so that a Kubernetes readiness gate fails when the preference store and
// fleet-wide rate limiting would error.
func readinessHandler(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		// Check database connection
		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
				checks["redis"] = "unhealthy"
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"ready":  false,
					"checks": checks,
					"error":  "redis not ready",
				})
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Check if origin is allowed
		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
