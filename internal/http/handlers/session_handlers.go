package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/services"
)

// SessionHandlers exposes the session and the profile of a client
type SessionHandlers struct{}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers() *SessionHandlers {
	return &SessionHandlers{}
}

// Session validates and returns the client's session
func (h *SessionHandlers) Session(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	ok(c, cc.Session.Validate(c.Request.Context()))
}

// Logout ends the client's session
func (h *SessionHandlers) Logout(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	if err := cc.Session.Logout(c.Request.Context(), services.LogoutReasonUser); err != nil {
		middleware.AbortWithError(c, domain.NewNetworkError("Could not complete logout. Please try again.", err))
		return
	}
	okMessage(c, "Logged out successfully", cc.Session.Snapshot())
}

// Profile returns the backend profile of the logged-in user
func (h *SessionHandlers) Profile(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	user, err := cc.Flow.GetProfile(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	ok(c, gin.H{"user": user})
}

// UpdateProfile edits the profile of the logged-in user
func (h *SessionHandlers) UpdateProfile(c *gin.Context) {
	cc, found := client(c)
	if !found {
		return
	}
	var req domain.ProfileUpdate
	if !bind(c, &req) {
		return
	}
	user, err := cc.Flow.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	okMessage(c, "Profile updated successfully", gin.H{"user": user})
}
