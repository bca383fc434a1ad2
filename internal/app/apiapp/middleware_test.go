package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
	authsvc "github.com/juampidev/pagolink/internal/services/auth"
)

func TestRequireRoleAllowsCaseInsensitiveMatch(t *testing.T) {
	mw := RequireRole(authsvc.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		SID:  "sid-1",
		Role: "ADMIN",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequireRoleRejectsMissingIdentity(t *testing.T) {
	mw := RequireRole(authsvc.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without identity")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddlewareEndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	redisClient := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = redisClient.Close() }()

	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	authService := authsvc.NewService(jwtManager, redrepo.NewSessionRepo(redisClient), "hunter2", time.Hour)

	res, err := authService.Login(context.Background(), "hunter2")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	mw := AuthMiddleware(authService, zap.NewNop())
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authsvc.IdentityFromContext(r.Context())
		if !ok || identity.Role != authsvc.RoleAdmin {
			t.Fatalf("identity missing or wrong role: %+v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	req.Header.Set("Authorization", "Bearer "+res.AccessToken)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("valid token rejected: got %d", rr.Code)
	}

	// Logout invalidates the session behind the still-valid JWT.
	if err := authService.Logout(context.Background(), res.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("token must be rejected after logout: got %d", rr.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	mw := AuthMiddleware(authsvc.NewService(nil, nil, "", 0), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/sales", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called without a token")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}
