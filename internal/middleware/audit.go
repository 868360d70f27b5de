// audit.go records authenticated write operations to the audit log, with
// optional shipping to external destinations.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/audit"
	"github.com/member-portal/member-portal/internal/config"
	"github.com/member-portal/member-portal/internal/db/models"
	"github.com/member-portal/member-portal/internal/db/repositories"
	"github.com/member-portal/member-portal/internal/safego"
)

// AuditMiddleware logs authenticated actions to the database only
func AuditMiddleware(auditRepo *repositories.AuditRepository) gin.HandlerFunc {
	return AuditMiddlewareWithShipper(auditRepo, nil, nil)
}

// AuditMiddlewareWithShipper logs authenticated actions and ships them to
// external destinations. The write happens after the handler so the response
// status is known; it runs asynchronously so audit persistence never adds
// latency to the request itself.
func AuditMiddlewareWithShipper(auditRepo *repositories.AuditRepository, shipper audit.Shipper, auditCfg *config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		logReadOps := auditCfg != nil && auditCfg.LogReadOperations
		logFailedReqs := auditCfg != nil && auditCfg.LogFailedRequests

		isReadOp := c.Request.Method == "GET"
		isFailed := c.Writer.Status() >= 400

		// Default behavior: only log successful write operations
		if auditCfg == nil {
			if isReadOp || isFailed {
				return
			}
		} else {
			if isReadOp && !logReadOps {
				return
			}
			if isFailed && !logFailedReqs {
				return
			}
		}

		path := c.Request.URL.Path
		action := auditAction(c.Request.Method, path)
		ipAddress := c.ClientIP()

		entry := &models.AuditLog{
			Action:    action,
			IPAddress: &ipAddress,
			CreatedAt: time.Now(),
		}

		var userIDStr string
		if uid := c.GetString(UserIDKey); uid != "" {
			userIDStr = uid
			entry.UserID = &userIDStr
		}

		var orgIDStr string
		if oid := c.GetString(ActiveOrgIDKey); oid != "" {
			orgIDStr = oid
			entry.OrganizationID = &orgIDStr
		}

		var resourceType string
		if rt := auditResourceType(path); rt != "" {
			resourceType = rt
			entry.ResourceType = &resourceType
		}

		entry.Metadata = map[string]interface{}{
			"status_code": c.Writer.Status(),
		}

		// Fire-and-forget: audit persistence is best-effort and must not
		// extend request latency. The timeout bounds the goroutine if the
		// database is unreachable.
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if auditRepo != nil {
				if err := auditRepo.CreateAuditLog(ctx, entry); err != nil {
					slog.Error("failed to write audit log", "action", entry.Action, "error", err)
				}
			}

			if shipper != nil {
				shipped := &audit.LogEntry{
					Timestamp:      entry.CreatedAt,
					Action:         entry.Action,
					UserID:         userIDStr,
					OrganizationID: orgIDStr,
					ResourceType:   resourceType,
					IPAddress:      ipAddress,
					StatusCode:     c.Writer.Status(),
					Metadata:       entry.Metadata,
				}
				if err := shipper.Ship(ctx, shipped); err != nil {
					slog.Error("failed to ship audit log", "action", entry.Action, "error", err)
				}
			}
		})
	}
}

// auditAction derives a dotted action name from the request
func auditAction(method, path string) string {
	switch {
	case strings.Contains(path, "/context/active-org"):
		return "context.switch_org"
	case strings.Contains(path, "/context/refresh"):
		return "context.refresh"
	case strings.Contains(path, "/invites/accept"):
		return "invite.accept"
	case strings.Contains(path, "/invites"):
		switch method {
		case "POST":
			return "invite.create"
		case "DELETE":
			return "invite.revoke"
		}
	case strings.Contains(path, "/auth/login"):
		return "auth.login"
	case strings.Contains(path, "/auth/register"):
		return "auth.register"
	case strings.Contains(path, "/auth/logout"):
		return "auth.logout"
	}
	return fmt.Sprintf("%s %s", method, path)
}

// auditResourceType maps the request path to the affected resource type
func auditResourceType(path string) string {
	switch {
	case strings.Contains(path, "/invites"):
		return "invite"
	case strings.Contains(path, "/members"):
		return "membership"
	case strings.Contains(path, "/context"):
		return "organization"
	case strings.Contains(path, "/auth"):
		return "user"
	}
	return ""
}
