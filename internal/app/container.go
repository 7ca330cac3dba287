package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/you/kycstore/domain"
	"github.com/you/kycstore/internal/config"
	"github.com/you/kycstore/internal/http/middleware"
	"github.com/you/kycstore/internal/infrastructure/auth"
	"github.com/you/kycstore/internal/infrastructure/backend"
	"github.com/you/kycstore/internal/infrastructure/database"
	"github.com/you/kycstore/internal/infrastructure/identity"
	"github.com/you/kycstore/internal/infrastructure/notifications"
	"github.com/you/kycstore/internal/infrastructure/payment"
	"github.com/you/kycstore/internal/infrastructure/repositories"
	"github.com/you/kycstore/internal/logging"
	"github.com/you/kycstore/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Casbin      *auth.CasbinService

	// Stores
	TokenStore   domain.TokenStore
	PendingStore domain.PendingStore
	Throttle     domain.ResendThrottle
	Journal      domain.CheckoutJournal

	// Services
	Audit           domain.AuditLogger
	NotificationSvc domain.NotificationService
	PolicySvc       domain.PolicyService
	Enforcer        domain.CasbinEnforcer
	Registry        *services.ClientRegistry
	Checkout        *services.CheckoutService
}

// NewContainer creates and initializes all dependencies
func NewContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	container := &Container{Config: cfg, Logger: logger}

	// Amounts travel as plain JSON numbers, to the backend and to the browser
	decimal.MarshalJSONWithoutQuotes = true

	if err := container.initDatabase(); err != nil {
		return nil, err
	}
	if err := container.initRedis(ctx); err != nil {
		return nil, err
	}
	if err := container.initPolicies(); err != nil {
		return nil, err
	}
	container.initStores()
	container.initServices()

	return container, nil
}

func (c *Container) initDatabase() error {
	db, err := database.Open(c.Config.DBDriver, c.Config.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	c.DB = db
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rc := database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB)
	if err := rc.Ping(ctx); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	c.RedisClient = rc.Client
	return nil
}

func (c *Container) initPolicies() error {
	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return err
	}
	seeded, err := cas.SeedDefaults()
	if err != nil {
		return fmt.Errorf("seed route policies: %w", err)
	}
	if seeded {
		c.Logger.Info("casbin: seeded default route policies")
	}
	c.Casbin = cas
	c.Enforcer = services.NewCasbinEnforcer(cas.E)
	c.PolicySvc = services.NewRoutePolicyService(c.Enforcer)
	return nil
}

func (c *Container) initStores() {
	c.TokenStore = repositories.NewTokenStore(c.RedisClient, c.Config.SessionMaxAge)
	c.PendingStore = repositories.NewPendingStore(c.RedisClient, c.Config.PendingTTL)
	c.Throttle = repositories.NewResendThrottle(c.RedisClient, c.Config.OTPResendWindow)
	c.Journal = repositories.NewCheckoutJournal(c.DB)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.Audit = logging.NewAuditLogger(c.Logger)
	c.NotificationSvc = notifications.NewTwilioService(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom, c.Logger)

	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout)
	clock := services.RealClock()

	c.Registry = services.NewClientRegistry(services.RegistryDeps{
		Session: services.SessionDeps{
			Store:     c.TokenStore,
			Inspector: auth.NewJWTInspector(),
			Audit:     c.Audit,
			Clock:     clock,
			Logger:    c.Logger,
			MaxAge:    cfg.SessionMaxAge,
		},
		Flow: services.FlowDeps{
			Auth:            backend.NewAuthAPI(client),
			Provider:        identity.NewFirebaseProvider(cfg.FirebaseBaseURL, cfg.FirebaseAPIKey, cfg.OTPSendTimeout),
			Verifiers:       identity.RecaptchaFactory{},
			Pending:         c.PendingStore,
			Throttle:        c.Throttle,
			Audit:           c.Audit,
			Clock:           clock,
			Logger:          c.Logger,
			SendTimeout:     cfg.OTPSendTimeout,
			DefaultDialCode: cfg.DefaultDialCode,
		},
		Cart: services.CartDeps{
			Catalog: services.NewPriceCatalog(cfg.DefaultServicePrice, cfg.ServicePrices),
			Coupons: backend.NewCouponAPI(client),
			Audit:   c.Audit,
			Logger:  c.Logger,
		},
		IdleTTL: 2 * cfg.PendingTTL,
		Logger:  c.Logger,
	})

	c.Checkout = services.NewCheckoutService(services.CheckoutDeps{
		Orders: backend.NewOrderAPI(client),
		Widget: payment.NewRazorpayWidget(payment.RazorpayConfig{
			KeyID:        cfg.RazorpayKeyID,
			ScriptURL:    cfg.RazorpayScriptURL,
			LoadTimeout:  cfg.RazorpayLoadTimeout,
			MerchantName: cfg.MerchantName,
			ThemeColor:   cfg.ThemeColor,
		}),
		Journal:  c.Journal,
		Notifier: c.NotificationSvc,
		Audit:    c.Audit,
		Logger:   c.Logger,
		Currency: cfg.Currency,
	})
}

// CookieConfig returns the client cookie settings
func (c *Container) CookieConfig() middleware.CookieConfig {
	return middleware.CookieConfig{
		Name:   c.Config.CookieName,
		Secure: c.Config.CookieSecure,
		MaxAge: c.Config.SessionMaxAge,
	}
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
