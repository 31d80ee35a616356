package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
	"github.com/you/medrecsvc/internal/http/middleware"
)

// AuthHandlers handles login, session and profile requests
type AuthHandlers struct {
	authSvc domain.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authSvc domain.AuthService) *AuthHandlers {
	return &AuthHandlers{authSvc: authSvc}
}

// LoginRequest represents login request. Identifier is an email or an account ID;
// email is accepted as an alias.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password" binding:"required"`
}

// RefreshRequest represents token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login handles POST /auth/:role/login
func (h *AuthHandlers) Login(c *gin.Context) {
	role, err := roleParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	identifier := req.Identifier
	if strings.TrimSpace(identifier) == "" {
		identifier = req.Email
	}
	if strings.TrimSpace(identifier) == "" {
		respondError(c, &domain.ValidationError{Field: "identifier", Reason: "is required"})
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), identifier, req.Password, role)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, authView(result))
}

// Refresh handles POST /auth/refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, authView(result))
}

// Logout handles POST /auth/logout (requires authentication)
func (h *AuthHandlers) Logout(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		respondError(c, domain.ErrUnauthorized)
		return
	}

	if err := h.authSvc.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me handles GET /auth/me (requires authentication)
func (h *AuthHandlers) Me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		respondError(c, domain.ErrUnauthorized)
		return
	}

	account, err := h.authSvc.GetProfile(c.Request.Context(), claims.Role, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, accountView(account))
}

// GetAccount returns the handler for GET /api/doctors/:id and /api/patients/:id
func (h *AuthHandlers) GetAccount(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := h.authSvc.GetProfile(c.Request.Context(), role, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, accountView(account))
	}
}

// CompleteProfile returns the handler for PUT /api/doctors/:id/profile and /api/patients/:id/profile
func (h *AuthHandlers) CompleteProfile(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var profile domain.Profile
		if err := bindJSON(c, &profile); err != nil {
			respondError(c, err)
			return
		}

		account, err := h.authSvc.CompleteProfile(c.Request.Context(), role, c.Param("id"), profile)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, accountView(account))
	}
}
