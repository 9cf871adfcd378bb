package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errBadToken = errors.New("invalid token")

// parseClaims validates the bearer token from the Authorization header and
// returns its claims. Both the customer and the operator guards go through
// this single verification path.
func parseClaims(secret, header string) (jwt.MapClaims, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return nil, errBadToken
	}

	parts := strings.Split(raw, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, errBadToken
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, errBadToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errBadToken
	}
	return claims, nil
}

// RequireRole guards operator routes. The token must verify and carry one of
// the allowed roles; the operator's id, when present, is surfaced the same
// way UserAuth does so status changes can be attributed.
func RequireRole(secret string, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseClaims(secret, c.GetHeader("Authorization"))
		if err != nil {
			log.Println("[AUTH] [ERROR] operator token rejected:", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		role, _ := claims["role"].(string)
		allowed := false
		for _, r := range allowedRoles {
			if role == r {
				allowed = true
				break
			}
		}
		if !allowed {
			log.Printf("[AUTH] [ERROR] role %q not permitted", role)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		if idValue, ok := claims["userId"].(string); ok {
			if id, err := primitive.ObjectIDFromHex(idValue); err == nil {
				c.Set("userId", id)
			}
		}
		c.Set("role", role)
		c.Next()
	}
}

// AdminAuth guards the operator order surface.
func AdminAuth(secret string) gin.HandlerFunc {
	return RequireRole(secret, "admin")
}
