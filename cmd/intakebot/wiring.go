package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/auth"
	"github.com/Stagnxzione/ra-userbot/internal/chat"
	"github.com/Stagnxzione/ra-userbot/internal/chat/discord"
	"github.com/Stagnxzione/ra-userbot/internal/chat/telegram"
	"github.com/Stagnxzione/ra-userbot/internal/config"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
	"github.com/Stagnxzione/ra-userbot/internal/persistence"
	"github.com/Stagnxzione/ra-userbot/internal/repository"
	"github.com/Stagnxzione/ra-userbot/internal/tracker"
	"github.com/Stagnxzione/ra-userbot/internal/wizard"
	"github.com/Stagnxzione/ra-userbot/pkg/util"
)

// store is an opened draft store together with its release function.
type store struct {
	repo  repository.DraftRepository
	close func()
}

// openStore opens the configured draft store. Schema setup runs when migrate
// is true.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, migrate bool) (*store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		db, err := persistence.NewSQLite(cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := repository.AutoMigrate(db.DB); err != nil {
				db.Close()
				return nil, fmt.Errorf("sqlite migrate: %w", err)
			}
		}
		return &store{repo: repository.NewGormDraftRepository(db.DB), close: db.Close}, nil
	default:
		if cfg.Postgres.DSN == "" {
			return nil, util.NewConfigMissing("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &store{repo: repository.NewDraftRepository(pg.PoolHandle()), close: pg.Close}, nil
	}
}

// newSessionStore returns the session slot store and, for Redis, the client
// so readiness can probe it.
func newSessionStore(cfg *config.Config, logger *zap.Logger) (wizard.SessionStore, *persistence.Redis) {
	if cfg.Session.Backend != "redis" {
		return wizard.NewMemorySessionStore(), nil
	}
	rdb := persistence.NewRedis(cfg.Redis, logger)
	return wizard.NewRedisSessionStore(rdb.Client, cfg.Session.KeyPrefix), rdb
}

func newPlatform(cfg config.ChatConfig, logger *zap.Logger) (chat.Platform, error) {
	switch cfg.Platform {
	case "discord":
		return discord.New(discord.AdapterOpts{BotToken: cfg.DiscordToken, Logger: logger})
	default:
		if cfg.TelegramToken == "" {
			return nil, util.NewConfigMissing("BOT_TOKEN is required when CHAT_PLATFORM=telegram")
		}
		return telegram.New(telegram.Opts{Token: cfg.TelegramToken, PollTimeout: cfg.PollTimeoutSeconds, Logger: logger})
	}
}

// newTracker returns nil when credentials are absent; tracker operations
// then report the missing configuration to the user.
func newTracker(cfg config.TrackerConfig, logger *zap.Logger, metrics *observability.Metrics) tracker.Client {
	if !cfg.Configured() {
		logger.Warn("tracker not configured; ticket creation is disabled")
		return nil
	}
	return tracker.NewJiraClient(cfg, logger, metrics)
}

// newAuthMiddleware guards the webhook routes. Without AUTH_JWT_SECRET only
// API keys are accepted; with neither credential the server must not start.
func newAuthMiddleware(cfg config.AuthConfig, logger *zap.Logger) (*auth.AuthMiddleware, error) {
	if cfg.JWTSecret == "" && cfg.APIKeyHash == "" {
		return nil, util.NewConfigMissing("AUTH_JWT_SECRET or WEBHOOK_API_KEY_HASH is required when HTTP_ENABLED=true")
	}
	var tokens *auth.TokenManager
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, cfg.TokenTTLMinutes)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; bearer tokens are rejected")
	}
	return auth.NewAuthMiddleware(tokens, cfg.APIKeyHash), nil
}
