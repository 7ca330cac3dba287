package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/kycstore/internal/config"
	httpx "github.com/you/kycstore/internal/http"
	"github.com/you/kycstore/internal/logging"
)

const shutdownTimeout = 15 * time.Second

// Run wires the storefront gateway and serves it until SIGINT or SIGTERM
func Run(cfg *config.Config) error {
	logger, err := logging.New(logging.Config{
		ServiceName: "kycstore",
		Environment: cfg.Environment,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	gin.SetMode(cfg.GinMode)
	r := httpx.BuildRouter(httpx.RouterDeps{
		Registry: c.Registry,
		Checkout: c.Checkout,
		Policies: c.PolicySvc,
		Enforcer: c.Enforcer,
		Cookie:   c.CookieConfig(),
		Logger:   logger,
	})

	go c.Registry.RunValidator(ctx, cfg.SessionValidateEvery)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
