package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/services"
)

// AuthHandlers exposes a client's identity flow
type AuthHandlers struct{}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers() *AuthHandlers {
	return &AuthHandlers{}
}

// FlowResponse is returned by every flow step
type FlowResponse struct {
	Status  services.FlowStatus    `json:"status"`
	Session domain.SessionSnapshot `json:"session"`
}

// ChallengeRequest carries a solved anti-abuse challenge
type ChallengeRequest struct {
	RecaptchaToken string `json:"recaptchaToken"`
}

// VerifyOTPRequest carries the code typed by the user
type VerifyOTPRequest struct {
	OTP string `json:"otp"`
}

// SendResetOTPRequest starts a password reset
type SendResetOTPRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	DialCode   string `json:"dialCode"`
}

// ResetPasswordRequest completes an email password reset
type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// ResetPasswordByPhoneRequest completes a phone password reset
type ResetPasswordByPhoneRequest struct {
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandlers) respond(c *gin.Context, cc *services.ClientContext, status services.FlowStatus, err error) {
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, FlowResponse{Status: status, Session: cc.Session.Snapshot()})
}

// Register handles email and phone registration
func (h *AuthHandlers) Register(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req services.RegisterInput
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.Register(c.Request.Context(), req)
	h.respond(c, cc, status, err)
}

// Login handles email+password and phone login
func (h *AuthHandlers) Login(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req services.LoginInput
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.Login(c.Request.Context(), req)
	h.respond(c, cc, status, err)
}

// ArmChallenge stores the solved challenge used by the next phone send
func (h *AuthHandlers) ArmChallenge(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req ChallengeRequest
	if !bind(c, &req) {
		return
	}
	if err := cc.Flow.ArmChallenge(req.RecaptchaToken); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	okMessage(c, "Challenge accepted", nil)
}

// VerifyOTP answers the pending challenge
func (h *AuthHandlers) VerifyOTP(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req VerifyOTPRequest
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.VerifyOtp(c.Request.Context(), req.OTP)
	h.respond(c, cc, status, err)
}

// ResendOTP sends the pending challenge again
func (h *AuthHandlers) ResendOTP(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	status, err := cc.Flow.ResendOtp(c.Request.Context())
	h.respond(c, cc, status, err)
}

// SendPasswordResetOTP starts a password reset
func (h *AuthHandlers) SendPasswordResetOTP(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req SendResetOTPRequest
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.SendPasswordResetOtp(c.Request.Context(), req.Identifier, req.DialCode)
	h.respond(c, cc, status, err)
}

// ResetPassword completes an email password reset
func (h *AuthHandlers) ResetPassword(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	h.respond(c, cc, status, err)
}

// ResetPasswordByPhone completes a phone password reset
func (h *AuthHandlers) ResetPasswordByPhone(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req ResetPasswordByPhoneRequest
	if !bind(c, &req) {
		return
	}
	status, err := cc.Flow.ResetPasswordByPhone(c.Request.Context(), req.OTP, req.NewPassword)
	h.respond(c, cc, status, err)
}

// Status returns where the client is in the identity flow
func (h *AuthHandlers) Status(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	h.respond(c, cc, cc.Flow.Status(c.Request.Context()), nil)
}

// Cancel abandons any pending challenge
func (h *AuthHandlers) Cancel(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	cc.Flow.Reset(c.Request.Context())
	h.respond(c, cc, cc.Flow.Status(c.Request.Context()), nil)
}
