package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/services"
)

// Response is the envelope of every successful response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func okMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

// bind decodes the JSON body into req, recording a validation error on failure
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.AbortWithError(c, &domain.Error{
			Kind:    domain.KindValidation,
			Field:   "body",
			Message: "Invalid request",
			Err:     err,
		})
		return false
	}
	return true
}

func client(c *gin.Context) (*services.ClientContext, bool) {
	cc := middleware.Client(c)
	if cc == nil {
		middleware.AbortWithError(c, domain.ErrNotAuthenticated)
		return nil, false
	}
	return cc, true
}
