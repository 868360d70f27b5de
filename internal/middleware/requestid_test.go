package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	var stored string
	r.GET("/ping", func(c *gin.Context) {
		stored = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))

	echoed := w.Header().Get(RequestIDHeader)
	if echoed == "" {
		t.Fatal("response is missing X-Request-ID")
	}
	if _, err := uuid.Parse(echoed); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", echoed, err)
	}
	if stored != echoed {
		t.Errorf("context ID %q != header ID %q", stored, echoed)
	}
}

func TestRequestIDMiddleware_ReusesInboundID(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/ping", nil)
	req.Header.Set(RequestIDHeader, "gateway-assigned-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "gateway-assigned-id" {
		t.Errorf("X-Request-ID = %q, want the inbound value", got)
	}
}
