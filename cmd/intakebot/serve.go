package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/Stagnxzione/ra-userbot/internal/api/http"
	"github.com/Stagnxzione/ra-userbot/internal/api/http/handlers"
	"github.com/Stagnxzione/ra-userbot/internal/auth"
	"github.com/Stagnxzione/ra-userbot/internal/bot"
	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/events"
	"github.com/Stagnxzione/ra-userbot/internal/lifecycle"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
	"github.com/Stagnxzione/ra-userbot/internal/service"
	"github.com/Stagnxzione/ra-userbot/internal/wizard"
	"github.com/Stagnxzione/ra-userbot/internal/worker"
)

const shutdownGrace = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot and the webhook server",
		Long: `Connects to the chat platform selected by CHAT_PLATFORM and serves
drivers until SIGINT or SIGTERM. When HTTP_ENABLED is true the webhook,
health and metrics endpoints listen on APP_HOST:APP_PORT.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("serve: init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", cfg.App.Name))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	metrics := observability.NewMetrics()

	s, err := openStore(ctx, cfg, logger, cfg.Store.Driver == "sqlite" || cfg.Postgres.RunMigrations)
	if err != nil {
		return err
	}
	defer s.close()

	sessions, rdb := newSessionStore(cfg, logger)
	defer rdb.Close()

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, metrics).RegisterHandlers()

	platform, err := newPlatform(cfg.Chat, logger)
	if err != nil {
		return err
	}

	engine, err := wizard.NewEngine(wizard.EngineOpts{
		Store:      s.repo,
		Sessions:   sessions,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	controller, err := lifecycle.NewController(lifecycle.Options{
		Tracker:    newTracker(cfg.Tracker, logger, metrics),
		Store:      s.repo,
		Config:     cfg.Tracker,
		Dispatch:   bot.NewDispatch(platform, cfg.Dispatch),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	b, err := bot.New(bot.Options{
		Platform:   platform,
		Engine:     engine,
		Controller: controller,
		Metrics:    metrics,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var authMW *auth.AuthMiddleware
	if cfg.App.HTTPEnabled {
		if authMW, err = newAuthMiddleware(cfg.Auth, logger); err != nil {
			return err
		}
	}

	botDone := worker.NewBotWorker(b, logger).Start(ctx)

	var stopHTTP func()
	if cfg.App.HTTPEnabled {
		deps := map[string]handlers.Pinger{"store": s.repo}
		if rdb != nil {
			deps["redis"] = rdb
		}
		app := httptransport.NewApp(cfg.App.Name, httptransport.Deps{
			Logger:  logger,
			Metrics: metrics,
			Timeout: cfg.App.RequestTimeout(),
		}, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
			Metrics:        handlers.NewMetricsHandler(metrics),
			WebApp:         handlers.NewWebAppHandler(b, logger),
			AuthMiddleware: authMW,
		})
		go func() {
			logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Error("fiber listen", zap.Error(err))
				cancel()
			}
		}()
		stopHTTP = func() {
			if err := app.ShutdownWithTimeout(shutdownGrace); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		}
	}

	waitForShutdown(ctx, logger, botDone)

	cancel()
	if stopHTTP != nil {
		stopHTTP()
	}
	if err := platform.Close(); err != nil {
		logger.Warn("platform close", zap.Error(err))
	}
	select {
	case <-botDone:
	case <-time.After(shutdownGrace):
		logger.Warn("bot loop did not stop in time")
	}
	return nil
}

func waitForShutdown(ctx context.Context, logger *zap.Logger, botDone <-chan struct{}) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-botDone:
		logger.Info("bot loop ended; shutting down")
	case <-ctx.Done():
		logger.Info("shutting down")
	}
}
