// Package server wires the rtcauth components together: configuration,
// stores, the SMS gateway, the auth and upload services, and the gRPC and
// HTTP transports. It runs them until the context is cancelled or a signal
// arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/captoken"
	"github.com/dmitrijs2005/rtcauth/internal/server/config"
	"github.com/dmitrijs2005/rtcauth/internal/server/httpserver"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/rtcauth/internal/server/services"
	"github.com/dmitrijs2005/rtcauth/internal/server/verification"
	"github.com/dmitrijs2005/rtcauth/internal/telemetry"

	gs "github.com/dmitrijs2005/rtcauth/internal/server/grpc"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	repos         *repomanager.Manager
	authService   *services.AuthService
	uploadService *services.UploadService
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	clk := clock.Real()

	issuer, err := captoken.NewIssuer(cfg.RTCAppID, cfg.RTCAppKey)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	repos, err := repomanager.Open(ctx, cfg, clk, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	if cfg.SMSProvider != config.SMSProviderVolc {
		logger.Warn(ctx, "static sms provider active: any phone can log in with the fixed code, do not use in production",
			"sms_provider", cfg.SMSProvider)
	}

	as := services.NewAuthService(repos.Users(), repos.Sessions(), newGateway(cfg), issuer, clk, logger, services.OptionsFromConfig(cfg))
	us := services.NewUploadService(as, cfg, clk, logger)

	return &App{config: cfg, logger: logger, repos: repos, authService: as, uploadService: us}, nil
}

func newGateway(cfg *config.Config) verification.Gateway {
	if cfg.SMSProvider == config.SMSProviderVolc {
		return verification.NewVolcGateway(verification.VolcOptions{
			AccessKey:  cfg.SMSAccessKey,
			SecretKey:  cfg.SMSSecretKey,
			Account:    cfg.SMSAccount,
			Sign:       cfg.SMSSign,
			TemplateID: cfg.SMSTemplateID,
			Scene:      cfg.SMSScene,
			CodeType:   cfg.SMSCodeType,
			CodeExpire: cfg.SMSCodeExpire,
			TryCount:   cfg.SMSTryCount,
		})
	}
	return verification.NewStaticGateway(cfg.SMSStaticCode)
}

// uploads is nil when no bucket is configured, which disables the route.
func (app *App) uploads() *services.UploadService {
	if app.config.S3Bucket == "" {
		return nil
	}
	return app.uploadService
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM/SIGQUIT arrives, then
// stops every component and closes the stores.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	shutdownTracing, err := telemetry.Setup(ctx, app.config.ServiceName, app.config.OTelEndpoint)
	if err != nil {
		app.logger.Warn(ctx, "tracing disabled", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var us gs.UploadService
		if u := app.uploads(); u != nil {
			us = u
		}
		return gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.authService, us).Run(gctx)
	})

	g.Go(func() error {
		var us httpserver.UploadService
		if u := app.uploads(); u != nil {
			us = u
		}
		h := httpserver.NewHandler(app.authService, us, app.logger)
		router := httpserver.NewRouter(app.config.ServiceName, h, app.logger)
		return httpserver.NewServer(app.config.HTTPAddr, router, app.logger).Run(gctx)
	})

	if sweeper, ok := app.repos.Sweeper(); ok && app.config.SessionSweepInterval > 0 {
		g.Go(func() error {
			sweepSessions(gctx, sweeper, app.config.SessionSweepInterval, app.logger)
			return nil
		})
	}

	runErr := g.Wait()

	if shutdownTracing != nil {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := shutdownTracing(flushCtx); err != nil {
			app.logger.Warn(ctx, "tracing shutdown", "error", err)
		}
		cancel()
	}

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "closing stores", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	return runErr
}

// sweepSessions purges expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, s sessions.Sweeper, interval time.Duration, l logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				l.Warn(ctx, "session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				l.Debug(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

// NewDefaultLogger writes JSON lines to stdout at the configured level.
func NewDefaultLogger(cfg *config.Config) logging.Logger {
	return logging.NewJSONLogger(os.Stdout, cfg.LogLevel).With("service", cfg.ServiceName)
}
