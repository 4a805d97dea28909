package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/your-org/presence/internal/models"
)

const identityKey = "auth.identity"

// UserLoader resolves a token subject to a directory user.
type UserLoader interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// SessionMiddleware verifies a Bearer token issued by the identity provider
// and loads the claimed user into the request context. Tokens are HS256 with
// the user's email as subject; issuance is out of scope here.
func SessionMiddleware(secret string, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing bearer token",
			})
			return
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token",
			})
			return
		}

		email, err := token.Claims.GetSubject()
		if err != nil || email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token subject",
			})
			return
		}

		user, err := users.GetUserByEmail(c.Request.Context(), email)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unknown user",
			})
			return
		}

		c.Set(identityKey, user)
		c.Next()
	}
}

// IdentityFrom returns the authenticated user set by SessionMiddleware, or
// nil on unauthenticated routes.
func IdentityFrom(c *gin.Context) *models.User {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
