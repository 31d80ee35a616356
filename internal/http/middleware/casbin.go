package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
	"github.com/you/medrecsvc/internal/config"
	"github.com/you/medrecsvc/internal/services"
)

// CasbinMiddleware defines the interface for Casbin authorization middleware
type CasbinMiddleware interface {
	Enforce() gin.HandlerFunc
}

// permissionChecker is the part of domain.PolicyService the middleware needs
type permissionChecker interface {
	CheckPermission(role, resource, action string) (bool, error)
}

// CasbinMW authorizes requests by role, falling back to role_owner when the
// caller is the account named by a matching ownership rule
type CasbinMW struct {
	policy permissionChecker
	rules  []config.OwnershipRule
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policy permissionChecker, rules []config.OwnershipRule) *CasbinMW {
	return &CasbinMW{policy: policy, rules: rules}
}

// Enforce returns the casbin authorization middleware
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenUserID := c.GetString(ContextUserID)
		primaryRole := c.GetString(ContextUserRole)
		if tokenUserID == "" || primaryRole == "" {
			abort(c, http.StatusUnauthorized, "User ID or role not found in token")
			return
		}

		headerUserID := c.GetHeader("x-user-id")
		if headerUserID != "" && !strings.EqualFold(headerUserID, tokenUserID) {
			abort(c, http.StatusForbidden, "Header x-user-id does not match token user ID")
			return
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		subject := services.RoleSubject(domain.Role(primaryRole))
		allowed, err := mw.policy.CheckPermission(subject, path, method)
		if err != nil {
			log.Printf("ERROR: casbin enforce %s %s for %s: %v", method, path, subject, err)
			abort(c, http.StatusInternalServerError, "Authorization check failed")
			return
		}

		if !allowed && mw.isOwner(c, tokenUserID) {
			allowed, err = mw.policy.CheckPermission(services.OwnerSubject, path, method)
			if err != nil {
				log.Printf("ERROR: casbin enforce %s %s for %s: %v", method, path, services.OwnerSubject, err)
				abort(c, http.StatusInternalServerError, "Authorization check failed")
				return
			}
		}

		if !allowed {
			abort(c, http.StatusForbidden, "Access denied")
			return
		}
		c.Next()
	}
}

// isOwner reports whether a rule for this route names the caller's own account
func (mw *CasbinMW) isOwner(c *gin.Context, tokenUserID string) bool {
	for _, rule := range mw.rules {
		if rule.Path != c.FullPath() || rule.Method != c.Request.Method {
			continue
		}
		requestUserID := extractUserID(c, rule.Source, rule.ParamName)
		if requestUserID != "" && strings.EqualFold(requestUserID, tokenUserID) {
			return true
		}
	}
	return false
}
