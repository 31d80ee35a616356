package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
)

// Context keys set by the JWT middleware
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextClaims   = "claims"
)

// AuthMW wraps the token service and revocation store for middleware
type AuthMW struct {
	tokenSvc    domain.TokenService
	revocations domain.TokenRevocationStore
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(tokenSvc domain.TokenService, revocations domain.TokenRevocationStore) *AuthMW {
	return &AuthMW{
		tokenSvc:    tokenSvc,
		revocations: revocations,
	}
}

// WithJWT returns the JWT middleware function
func (mw *AuthMW) WithJWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := mw.tokenSvc.VerifyAccessToken(strings.TrimSpace(tokenParts[1]))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrTokenExpired):
				abort(c, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, domain.ErrTokenWrongType):
				abort(c, http.StatusUnauthorized, "Access token required")
			default:
				abort(c, http.StatusUnauthorized, "Invalid token")
			}
			return
		}

		revoked, err := mw.revocations.IsRevoked(c.Request.Context(), claims.JTI)
		if err != nil {
			log.Printf("ERROR: revocation check for %s failed: %v", claims.JTI, err)
			abort(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "Token has been revoked")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, string(claims.Role))
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// ClaimsFrom returns the access token claims stored by WithJWT
func ClaimsFrom(c *gin.Context) (*domain.TokenClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.TokenClaims)
	return claims, ok
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
