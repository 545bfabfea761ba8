package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCorrelationIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"reuses client id", "req-123", true},
		{"generates when absent", "", false},
		{"rejects control characters", "bad\tid", false},
		{"rejects oversized id", strings.Repeat("a", maxCorrelationIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(correlationIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(correlationIDHeader)
			if got == "" || got != w.Body.String() {
				t.Fatalf("header %q and context %q disagree", got, w.Body.String())
			}
			if tt.keep != (got == tt.incoming) {
				t.Fatalf("incoming %q, got %q", tt.incoming, got)
			}
		})
	}
}

func TestRequirePasswordChangeCompleted(t *testing.T) {
	run := func(p *auth.Principal) int {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			if p != nil {
				c.Set(principalKey, p)
			}
		}, RequirePasswordChangeCompletedMiddleware())
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	if code := run(&auth.Principal{MustChangePassword: true}); code != http.StatusForbidden {
		t.Fatalf("flagged principal: status = %d", code)
	}
	if code := run(&auth.Principal{}); code != http.StatusNoContent {
		t.Fatalf("normal principal: status = %d", code)
	}
}

func TestSessionToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer abc.def")
	if got := SessionToken(c, "admin_session"); got != "abc.def" {
		t.Fatalf("bearer token = %q", got)
	}

	c.Request.AddCookie(&http.Cookie{Name: "admin_session", Value: "from-cookie"})
	if got := SessionToken(c, "admin_session"); got != "from-cookie" {
		t.Fatalf("cookie should win, got %q", got)
	}
}
