package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/member-portal/member-portal/internal/audit"
	"github.com/member-portal/member-portal/internal/config"
)

func TestAuditAction(t *testing.T) {
	tests := []struct {
		method, path, want string
	}{
		{"POST", "/api/v1/context/active-org", "context.switch_org"},
		{"POST", "/api/v1/context/refresh", "context.refresh"},
		{"POST", "/api/v1/invites/accept", "invite.accept"},
		{"POST", "/api/v1/org/invites", "invite.create"},
		{"DELETE", "/api/v1/org/invites/abc", "invite.revoke"},
		{"POST", "/api/v1/auth/login", "auth.login"},
		{"POST", "/api/v1/auth/register", "auth.register"},
		{"POST", "/api/v1/auth/logout", "auth.logout"},
		{"PUT", "/api/v1/unmapped", "PUT /api/v1/unmapped"},
	}

	for _, tt := range tests {
		if got := auditAction(tt.method, tt.path); got != tt.want {
			t.Errorf("auditAction(%s, %s) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestAuditResourceType(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/api/v1/org/invites", "invite"},
		{"/api/v1/org/members", "membership"},
		{"/api/v1/context/active-org", "organization"},
		{"/api/v1/auth/login", "user"},
		{"/api/v1/unmapped", ""},
	}

	for _, tt := range tests {
		if got := auditResourceType(tt.path); got != tt.want {
			t.Errorf("auditResourceType(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

type channelShipper struct {
	entries chan *audit.LogEntry
}

func (s *channelShipper) Ship(_ context.Context, entry *audit.LogEntry) error {
	s.entries <- entry
	return nil
}

func (s *channelShipper) Close() error { return nil }

func auditTestRouter(shipper audit.Shipper, cfg *config.AuditConfig) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "user-1")
		c.Set(ActiveOrgIDKey, "org-1")
	})
	r.Use(AuditMiddlewareWithShipper(nil, shipper, cfg))
	r.POST("/api/v1/context/active-org", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/org/members", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/org/invites", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	return r
}

func waitForEntry(t *testing.T, ch chan *audit.LogEntry) *audit.LogEntry {
	t.Helper()
	select {
	case entry := <-ch:
		return entry
	case <-time.After(2 * time.Second):
		t.Fatal("no audit entry shipped")
		return nil
	}
}

func TestAuditMiddleware_ShipsWriteOperations(t *testing.T) {
	shipper := &channelShipper{entries: make(chan *audit.LogEntry, 1)}
	r := auditTestRouter(shipper, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/context/active-org", nil))

	entry := waitForEntry(t, shipper.entries)
	if entry.Action != "context.switch_org" {
		t.Errorf("Action = %q, want context.switch_org", entry.Action)
	}
	if entry.UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", entry.UserID)
	}
	if entry.OrganizationID != "org-1" {
		t.Errorf("OrganizationID = %q, want org-1", entry.OrganizationID)
	}
	if entry.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", entry.StatusCode)
	}
}

func TestAuditMiddleware_SkipsReadsByDefault(t *testing.T) {
	shipper := &channelShipper{entries: make(chan *audit.LogEntry, 1)}
	r := auditTestRouter(shipper, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/org/members", nil))

	select {
	case entry := <-shipper.entries:
		t.Errorf("GET request was audited: %+v", entry)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAuditMiddleware_SkipsFailuresByDefault(t *testing.T) {
	shipper := &channelShipper{entries: make(chan *audit.LogEntry, 1)}
	r := auditTestRouter(shipper, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/org/invites", nil))

	select {
	case entry := <-shipper.entries:
		t.Errorf("failed request was audited: %+v", entry)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAuditMiddleware_ConfigEnablesFailedRequests(t *testing.T) {
	shipper := &channelShipper{entries: make(chan *audit.LogEntry, 1)}
	r := auditTestRouter(shipper, &config.AuditConfig{LogFailedRequests: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/org/invites", nil))

	entry := waitForEntry(t, shipper.entries)
	if entry.Action != "invite.create" {
		t.Errorf("Action = %q, want invite.create", entry.Action)
	}
	if entry.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", entry.StatusCode)
	}
}
