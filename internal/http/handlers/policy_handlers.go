package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/middleware"
)

// PolicyHandlers manages the gateway's route policies
type PolicyHandlers struct{ policies domain.PolicyService }

// NewPolicyHandlers creates new policy handlers
func NewPolicyHandlers(policies domain.PolicyService) *PolicyHandlers {
	return &PolicyHandlers{policies: policies}
}

// PolicyRequest names one route policy
type PolicyRequest struct {
	Role     string `json:"role" binding:"required"`
	Resource string `json:"resource" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func (h *PolicyHandlers) List(c *gin.Context) {
	ok(c, gin.H{"policies": h.policies.GetPolicies()})
}

func (h *PolicyHandlers) Add(c *gin.Context) {
	var r PolicyRequest
	if !bind(c, &r) {
		return
	}
	if err := h.policies.AddPolicy(r.Role, r.Resource, r.Action); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PolicyHandlers) Remove(c *gin.Context) {
	var r PolicyRequest
	if !bind(c, &r) {
		return
	}
	if err := h.policies.RemovePolicy(r.Role, r.Resource, r.Action); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
