package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"library-backend/internal/shared/auth"
)

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.OPTIONS("/api/v1/documents", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth())
	router.GET("/api/v1/documents", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAuthStoresClaimsAndGatesReviewerRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENV", "dev")

	token, err := auth.SignJWT(auth.Claims{
		Email:            "analyst@example.com",
		Role:             RoleReviewer,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	router := gin.New()
	router.Use(Auth())
	router.GET("/api/v1/review/queue", RequireReviewer(), func(c *gin.Context) {
		if got := UserIDFromContext(c); got != "user-1" {
			t.Errorf("user id = %q", got)
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/review/queue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	plain, err := auth.SignJWT(auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/review/queue", nil)
	req.Header.Set("Authorization", "Bearer "+plain)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without reviewer role, got %d", resp.Code)
	}
}
