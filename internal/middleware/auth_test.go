package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/admin-console/internal/domain/rbac"
	"github.com/mwork/admin-console/internal/pkg/jwt"
)

func TestAuthMiddlewareAllowsValidAccessToken(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	adminID := uuid.New()
	token, _, err := jwtSvc.GenerateAccessToken(adminID, "Finance_Admin", "fin@mwork.test")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	var gotID uuid.UUID
	var gotRole rbac.Role
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetAdminID(r.Context())
		gotRole = GetRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != adminID {
		t.Fatalf("expected admin id %s, got %s", adminID, gotID)
	}
	if gotRole != rbac.RoleFinanceAdmin {
		t.Fatalf("expected normalized role, got %q", gotRole)
	}
}

func TestAuthMiddlewareRejectsMissingAndMalformedHeader(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Token abc", "Bearer", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		protected.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestAuthMiddlewareRejectsParticipantRole(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	token, _, err := jwtSvc.GenerateAccessToken(uuid.New(), "host", "host@mwork.test")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAuthMiddlewareAcceptsQueryTokenOnlyForWebsocket(t *testing.T) {
	jwtSvc := jwt.NewService("secret", time.Minute)
	token, _, err := jwtSvc.GenerateAccessToken(uuid.New(), "moderator", "mod@mwork.test")
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}
	protected := Auth(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("plain request: expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upgrade request: expected 200, got %d", w.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	policy := rbac.DefaultPolicy()
	jwtSvc := jwt.NewService("secret", time.Minute)

	handler := Auth(jwtSvc)(RequirePermission(policy, rbac.PermExportAuditLog)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	tests := []struct {
		role string
		want int
	}{
		{"super_admin", http.StatusOK},
		{"moderator", http.StatusForbidden},
	}
	for _, tt := range tests {
		token, _, err := jwtSvc.GenerateAccessToken(uuid.New(), tt.role, "a@mwork.test")
		if err != nil {
			t.Fatalf("token gen failed: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/audit/export", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Fatalf("role %s: expected %d, got %d", tt.role, tt.want, w.Code)
		}
	}
}
