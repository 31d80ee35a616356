package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
)

// respond writes the success envelope
func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps err to a status and writes the error envelope.
// Credential failures and dependency errors never expose their cause.
func respondError(c *gin.Context, err error) {
	kind := domain.Kind(err)
	status := statusFor(err, kind)

	msg := err.Error()
	switch kind {
	case domain.KindAuth:
		msg = "Invalid credentials"
		if errors.Is(err, domain.ErrUnauthorized) {
			msg = "Unauthorized"
		}
	case domain.KindDependency:
		log.Printf("ERROR: %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "Internal server error"
	}

	body := gin.H{"success": false, "error": msg, "code": kind.String()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	var throttle *domain.ThrottleError
	if errors.As(err, &throttle) {
		body["retry_after"] = throttle.RetryAfterSeconds
		c.Header("Retry-After", strconv.FormatInt(throttle.RetryAfterSeconds, 10))
	}

	c.JSON(status, body)
}

func statusFor(err error, kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindConflict, domain.KindToken:
		return http.StatusBadRequest
	case domain.KindNotFound:
		if errors.Is(err, domain.ErrNoPendingSignup) {
			return http.StatusBadRequest
		}
		return http.StatusNotFound
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindThrottled:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// bindJSON decodes the body, reporting malformed input as a validation error
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

// roleParam reads the :role path segment
func roleParam(c *gin.Context) (domain.Role, error) {
	role, err := domain.ParseRole(c.Param("role"))
	if err != nil {
		return "", &domain.ValidationError{Field: "role", Reason: "must be doctor or patient"}
	}
	return role, nil
}

// idKey is the response field naming an account ID, e.g. doctor_id
func idKey(role domain.Role) string {
	return string(role) + "_id"
}

func accountView(a *domain.Account) gin.H {
	view := gin.H{
		idKey(a.Role):    a.ID,
		"role":           a.Role,
		"email":          a.Email,
		"username":       a.Username,
		"mobile":         a.Mobile,
		"status":         a.Status,
		"email_verified": a.EmailVerified,
	}
	if a.Status != domain.StatusPendingProfile {
		view["profile"] = a.Profile
	}
	if !a.CreatedAt.IsZero() {
		view["created_at"] = a.CreatedAt
	}
	if !a.UpdatedAt.IsZero() {
		view["updated_at"] = a.UpdatedAt
	}
	return view
}

func authView(result *domain.AuthResult) gin.H {
	view := gin.H{
		"access_token": result.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   result.ExpiresIn,
	}
	if result.RefreshToken != "" {
		view["refresh_token"] = result.RefreshToken
	}
	if result.Account != nil {
		view[idKey(result.Account.Role)] = result.Account.ID
		view["account"] = accountView(result.Account)
	}
	return view
}
