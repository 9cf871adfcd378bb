package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "jwt_test_secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func runGuard(t *testing.T, guard gin.HandlerFunc, authHeader string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}
	guard(c)
	return c, w
}

func TestUserAuthInjectsUserID(t *testing.T) {
	userID := primitive.NewObjectID()
	token := signedToken(t, testSecret, jwt.MapClaims{"userId": userID.Hex(), "role": "customer"})

	c, _ := runGuard(t, UserAuth(testSecret), "Bearer "+token)
	if c.IsAborted() {
		t.Fatal("expected valid token to pass")
	}

	value, ok := c.Get("userId")
	if !ok {
		t.Fatal("expected userId set on context")
	}
	if got, ok := value.(primitive.ObjectID); !ok || got != userID {
		t.Fatalf("expected userId %s, got %v", userID.Hex(), value)
	}
	if role, _ := c.Get("role"); role != "customer" {
		t.Fatalf("expected role claim surfaced, got %v", role)
	}
}

func TestUserAuthRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Token abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signedToken(t, "other_secret", jwt.MapClaims{"userId": primitive.NewObjectID().Hex()})},
		{"missing userId claim", "Bearer " + signedToken(t, testSecret, jwt.MapClaims{"role": "customer"})},
		{"malformed userId claim", "Bearer " + signedToken(t, testSecret, jwt.MapClaims{"userId": "nope"})},
	}
	for _, tc := range tests {
		_, w := runGuard(t, UserAuth(testSecret), tc.header)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", tc.name, w.Code)
		}
	}
}

func TestAdminAuthAllowsAdminRole(t *testing.T) {
	operatorID := primitive.NewObjectID()
	token := signedToken(t, testSecret, jwt.MapClaims{"userId": operatorID.Hex(), "role": "admin"})

	c, _ := runGuard(t, AdminAuth(testSecret), "Bearer "+token)
	if c.IsAborted() {
		t.Fatal("expected admin token to pass")
	}
	if role, _ := c.Get("role"); role != "admin" {
		t.Fatalf("expected role admin on context, got %v", role)
	}
	if value, ok := c.Get("userId"); !ok || value.(primitive.ObjectID) != operatorID {
		t.Fatalf("expected operator id attributed, got %v", value)
	}
}

func TestAdminAuthForbidsOtherRoles(t *testing.T) {
	token := signedToken(t, testSecret, jwt.MapClaims{"userId": primitive.NewObjectID().Hex(), "role": "customer"})

	_, w := runGuard(t, AdminAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin role, got %d", w.Code)
	}
}

func TestAdminAuthRejectsUnverifiedToken(t *testing.T) {
	token := signedToken(t, "other_secret", jwt.MapClaims{"role": "admin"})

	_, w := runGuard(t, AdminAuth(testSecret), "Bearer "+token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}
}
