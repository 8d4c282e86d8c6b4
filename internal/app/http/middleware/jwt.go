package middleware

import (
	"net/http"
	"strings"

	"acessonucleo-hub/internal/authn"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware verifies the bearer token and stores the caller's Principal.
func AuthMiddleware(verifier authn.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			return
		}

		p, err := verifier.Verify(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, or nil outside AuthMiddleware.
func PrincipalFrom(c *gin.Context) *authn.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*authn.Principal); ok {
			return p
		}
	}
	return nil
}
