package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kycstore/internal/metrics"
	"go.uber.org/zap"
)

// RecoveryResponse is answered when a handler panics
type RecoveryResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Actions []string `json:"actions"`
}

// Recovery contains handler panics. The panic is logged and the client is
// offered a reload or a way home instead of a dropped connection.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			metrics.PanicsRecovered.Inc()
			logger.Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stack"))
			c.AbortWithStatusJSON(http.StatusInternalServerError, RecoveryResponse{
				Error:   "Something went wrong",
				Actions: []string{"reload", "home"},
			})
		}()
		c.Next()
	}
}
