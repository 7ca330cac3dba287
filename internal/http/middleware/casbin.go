package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/services"
)

// RouteGuard authorizes every request against the route policies. Clients
// without a session are checked as role_anonymous; a denied anonymous client
// is asked to log in, a denied authenticated one is refused.
func RouteGuard(enforcer domain.CasbinEnforcer) gin.HandlerFunc {
	return func(c *gin.Context) {
		cc := Client(c)
		if cc == nil {
			AbortWithError(c, fmt.Errorf("route guard: no client context"))
			return
		}

		snap := cc.Session.Validate(c.Request.Context())
		role := ""
		if snap.IsAuthenticated {
			role = domain.RoleUser
			if snap.User != nil && snap.User.Role != "" {
				role = snap.User.Role
			}
		}

		path := c.FullPath() // route pattern so policies can use keyMatch2 params
		if path == "" {
			path = c.Request.URL.Path
		}

		allowed, err := enforcer.Enforce(services.RoleSubject(role), path, c.Request.Method)
		if err != nil {
			AbortWithError(c, fmt.Errorf("authorization check failed: %w", err))
			return
		}
		if !allowed {
			if !snap.IsAuthenticated {
				AbortWithError(c, domain.ErrNotAuthenticated)
				return
			}
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}
