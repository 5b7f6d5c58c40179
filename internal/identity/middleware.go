package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxTokenClaims = "commitcore_token_claims"

// RequireToken returns a Gin middleware that rejects requests without a
// valid Bearer token granting scope. An empty scope only checks validity.
func RequireToken(tokens *TokenIssuer, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		var (
			claims *TokenClaims
			err    error
		)
		if scope == "" {
			claims, err = tokens.Verify(tokenStr)
		} else {
			claims, err = tokens.RequireScope(tokenStr, scope)
		}
		if errors.Is(err, ErrMissingScope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "token lacks scope " + scope,
			})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxTokenClaims, claims)
		c.Next()
	}
}

// ClaimsFromCtx retrieves the token claims injected by RequireToken.
func ClaimsFromCtx(c *gin.Context) *TokenClaims {
	v, _ := c.Get(ctxTokenClaims)
	claims, _ := v.(*TokenClaims)
	return claims
}
