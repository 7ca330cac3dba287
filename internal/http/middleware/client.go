package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/you/kycstore/internal/services"
)

// Context keys set by ClientSession
const (
	ClientIDKey = "client_id"
	clientKey   = "client"
)

// CookieConfig configures the client id cookie
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// ClientSession identifies the browser by its cookie, issuing a new id when
// none or a malformed one is presented, and attaches its client context
func ClientSession(registry *services.ClientRegistry, cfg CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cfg.Name)
		if err != nil {
			id = ""
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cfg.Name, id, int(cfg.MaxAge.Seconds()), "/", "", cfg.Secure, true)

		c.Set(ClientIDKey, id)
		c.Set(clientKey, registry.Get(c.Request.Context(), id))
		c.Next()
	}
}

// Client returns the client context attached by ClientSession
func Client(c *gin.Context) *services.ClientContext {
	v, ok := c.Get(clientKey)
	if !ok {
		return nil
	}
	cc, _ := v.(*services.ClientContext)
	return cc
}
