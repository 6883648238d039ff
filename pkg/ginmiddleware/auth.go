// Package ginmiddleware provides the HTTP middleware stack for the API:
// JWT authentication, request IDs, CORS, panic recovery, rate limiting,
// request logging and Prometheus metrics.
package ginmiddleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by Auth.
const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

// RoleAdmin marks tokens allowed through AdminOnly.
const RoleAdmin = "admin"

// Claims is the JWT payload issued to users and verified by Auth.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// NewToken signs a token for the given user.
func NewToken(secret []byte, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Auth verifies the Bearer token and stores the user id and role on the
// gin context. Requests without a valid token are rejected with 401.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" || raw == c.GetHeader("Authorization") {
			abortJSON(c, http.StatusUnauthorized, "authorization token required")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.UserID == "" {
			abortJSON(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// AdminOnly rejects authenticated requests whose token lacks the admin
// role. It must run after Auth.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != RoleAdmin {
			abortJSON(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the context.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

func abortJSON(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"success": false, "message": message})
}
