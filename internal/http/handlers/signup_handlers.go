package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/medrecsvc/domain"
)

// SignupHandlers handles the signup and OTP endpoints
type SignupHandlers struct {
	signupSvc domain.SignupService
	// exposeCode echoes the OTP in send responses, for development only
	exposeCode bool
}

// NewSignupHandlers creates new signup handlers
func NewSignupHandlers(signupSvc domain.SignupService, exposeCode bool) *SignupHandlers {
	return &SignupHandlers{signupSvc: signupSvc, exposeCode: exposeCode}
}

// SendOTPRequest represents an OTP send request. Purpose defaults to the path role.
type SendOTPRequest struct {
	Email   string `json:"email" binding:"required"`
	Purpose string `json:"purpose,omitempty"`
}

// ResendOTPRequest represents an OTP resend request
type ResendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest represents an OTP verification request
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// Signup handles POST /auth/:role/signup
func (h *SignupHandlers) Signup(c *gin.Context) {
	role, err := roleParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req domain.SignupFields
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	if err := h.signupSvc.StartSignup(c.Request.Context(), role, req); err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusCreated, gin.H{
		"message": "Signup details saved. Request an OTP to verify your email.",
		"email":   req.Email,
		"role":    role,
	})
}

// SendOTP handles POST /auth/:role/send-otp
func (h *SignupHandlers) SendOTP(c *gin.Context) {
	role, err := roleParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req SendOTPRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = role.SignupPurpose()
	}
	if purpose != role.SignupPurpose() {
		respondError(c, domain.ErrPurposeMismatch)
		return
	}

	dispatch, err := h.signupSvc.SendOTP(c.Request.Context(), req.Email, purpose)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, h.dispatchView(dispatch))
}

// ResendOTP handles POST /auth/:role/resend-otp
func (h *SignupHandlers) ResendOTP(c *gin.Context) {
	role, err := roleParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req ResendOTPRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	dispatch, err := h.signupSvc.ResendOTP(c.Request.Context(), role, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, h.dispatchView(dispatch))
}

// VerifyOTP handles POST /auth/:role/verify-otp
func (h *SignupHandlers) VerifyOTP(c *gin.Context) {
	role, err := roleParam(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var req VerifyOTPRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.signupSvc.VerifyOTP(c.Request.Context(), role, req.Email, req.OTP, req.Token)
	if err != nil {
		respondError(c, err)
		return
	}

	view := authView(result)
	view["message"] = "Email verified. Complete your profile to activate the account."
	respond(c, http.StatusCreated, view)
}

func (h *SignupHandlers) dispatchView(d *domain.OTPDispatch) gin.H {
	view := gin.H{
		"email":      d.Email,
		"purpose":    d.Purpose,
		"token":      d.Token,
		"expires_at": d.ExpiresAt,
		"delivered":  d.Delivered,
	}
	if !d.Delivered {
		view["warning"] = "OTP could not be delivered: " + d.DeliveryError
	}
	if h.exposeCode {
		view["otp"] = d.Code
	}
	return view
}
