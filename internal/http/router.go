package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/http/handlers"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/services"
	"go.uber.org/zap"
)

// RouterDeps are what the storefront gateway is built from
type RouterDeps struct {
	Registry *services.ClientRegistry
	Checkout *services.CheckoutService
	Policies domain.PolicyService
	Enforcer domain.CasbinEnforcer
	Cookie   middleware.CookieConfig
	Logger   *zap.Logger
}

func BuildRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(d.Logger), middleware.Recovery(d.Logger), middleware.ErrorHandling())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ah := handlers.NewAuthHandlers()
	sh := handlers.NewSessionHandlers()
	ch := handlers.NewCartHandlers()
	co := handlers.NewCheckoutHandlers(d.Checkout)
	ph := handlers.NewPolicyHandlers(d.Policies)

	v := r.Group("/", middleware.ClientSession(d.Registry, d.Cookie), middleware.RouteGuard(d.Enforcer))

	auth := v.Group("/auth")
	auth.GET("/status", ah.Status)
	auth.POST("/register", ah.Register)
	auth.POST("/login", ah.Login)
	auth.POST("/challenge", ah.ArmChallenge)
	auth.POST("/otp/verify", ah.VerifyOTP)
	auth.POST("/otp/resend", ah.ResendOTP)
	auth.POST("/cancel", ah.Cancel)
	auth.POST("/password/send-otp", ah.SendPasswordResetOTP)
	auth.POST("/password/reset", ah.ResetPassword)
	auth.POST("/password/reset-phone", ah.ResetPasswordByPhone)

	v.GET("/session", sh.Session)
	v.POST("/session/logout", sh.Logout)
	v.GET("/profile", sh.Profile)
	v.PUT("/profile", sh.UpdateProfile)

	v.GET("/cart", ch.Get)
	v.PUT("/cart", ch.SetSelection)
	v.PUT("/cart/billing-period", ch.SetBillingPeriod)
	v.POST("/cart/coupon", ch.ApplyCoupon)
	v.DELETE("/cart/coupon", ch.RemoveCoupon)

	v.POST("/checkout", co.Begin)
	v.POST("/checkout/complete", co.Complete)
	v.POST("/checkout/dismiss", co.Dismiss)
	v.GET("/orders", co.Orders)

	adm := v.Group("/admin")
	adm.GET("/policies", ph.List)
	adm.POST("/policies", ph.Add)
	adm.DELETE("/policies", ph.Remove)

	return r
}
