package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/parley-im/parley/internal/admin"
	"github.com/parley-im/parley/internal/alert"
	"github.com/parley-im/parley/internal/api"
	"github.com/parley-im/parley/internal/auth"
	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/cooldown"
	"github.com/parley-im/parley/internal/database"
	"github.com/parley-im/parley/internal/journal"
	"github.com/parley-im/parley/internal/memory"
	"github.com/parley-im/parley/internal/middleware"
	inats "github.com/parley-im/parley/internal/nats"
	"github.com/parley-im/parley/internal/pacing"
	"github.com/parley-im/parley/internal/persona"
	"github.com/parley-im/parley/internal/provider"
	iredis "github.com/parley-im/parley/internal/redis"
	"github.com/parley-im/parley/internal/registry"
	"github.com/parley-im/parley/internal/respond"
	"github.com/parley-im/parley/internal/server"
	"github.com/parley-im/parley/internal/xmpp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Migrations
	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS JetStream
	natsClient, err := inats.NewClient(ctx, cfg.NATS)
	if err != nil {
		slog.Error("connecting to nats", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	publisher := inats.NewPublisher(natsClient.JetStream())
	consumerMgr := inats.NewConsumerManager(natsClient.JetStream())

	// Provider fallback chain
	var providers []provider.Provider
	for _, name := range cfg.Providers.Order {
		pcfg, ok := cfg.Providers.ByName(name)
		if !ok {
			slog.Warn("unknown provider in order, skipping", "provider", name)
			continue
		}
		if !pcfg.Enabled() {
			slog.Info("provider has no api key, skipping", "provider", name)
			continue
		}
		providers = append(providers, provider.NewOpenAICompatible(pcfg, cfg.Providers.EmbedModel))
	}
	chain := provider.NewChain(providers, cfg.Providers.MaxRetries, cfg.Providers.RequestTimeout)
	slog.Info("provider chain ready", "order", chain.Names())

	// Memory
	shortTerm := memory.NewShortTermStore(redisClient, cfg.Memory.MaxTurns, cfg.Memory.TTL)
	var longTerm memory.LongTermRepository
	if cfg.Memory.LongTerm {
		longTerm = memory.NewPostgresLongTerm(pool)
	}
	memSvc := memory.NewService(shortTerm, longTerm, chain, cfg.Memory)

	// Channel and ignore-list registry
	regRepo := registry.NewPostgresRepository(pool)
	regSvc := registry.NewService(regRepo)
	if err := regSvc.Load(ctx); err != nil {
		slog.Error("loading registry", "error", err)
		os.Exit(1)
	}

	// Responder pipeline
	nick := xmpp.Nick(cfg.XMPP.JID)
	trigger := respond.NewTrigger(redisClient, regSvc, cfg.Bot, nick)
	limiter := cooldown.New(redisClient, cfg.Bot)
	pers := persona.Load(cfg.Bot.PersonaPath)
	notifier := alert.NewWebhook(cfg.Alert.WebhookURL)
	responder := respond.NewResponder(publisher, consumerMgr, trigger, limiter, memSvc, pers, chain, notifier, cfg.Bot)

	// XMPP session
	xmppHandler := xmpp.NewHandler(publisher, nick)
	xmppClient, err := xmpp.NewClient(cfg.XMPP, xmppHandler, func() map[string]string {
		rooms := make(map[string]string)
		for _, ch := range regSvc.Channels() {
			rooms[ch.JID] = ch.Nick
		}
		return rooms
	})
	if err != nil {
		slog.Error("building xmpp client", "error", err)
		os.Exit(1)
	}

	pacer := pacing.New(cfg.Bot)
	relay := xmpp.NewOutboundRelay(xmppClient.Sender(), pacer, consumerMgr)

	// Exchange journal
	journalRepo := journal.NewRepository(pool)
	journalConsumer := journal.NewConsumer(journalRepo, consumerMgr)

	// Admin API
	jwtManager := auth.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.TokenExpiry)
	adminHandler := admin.NewHandler(
		cfg.Admin.PasswordHash,
		jwtManager,
		responder,
		regSvc,
		memSvc,
		journalRepo,
		limiter,
		trigger,
		xmppClient,
		chain.Names(),
	)

	loginLimiter := middleware.NewRateLimiter(redisClient, cfg.Admin.LoginMaxPerWindow, 60)

	router := api.NewRouter(
		pool,
		api.RedisPingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
		natsClient,
		xmppClient,
		api.RouterConfig{
			CORSAllowedOrigins: cfg.Admin.CORSAllowedOrigins,
			LoginRateLimiter:   loginLimiter.Middleware,
		},
		api.HandlerSet{
			Login: adminHandler.Login,

			Status: adminHandler.Status,
			Pause:  adminHandler.Pause,
			Resume: adminHandler.Resume,

			ListChannels:      adminHandler.ListChannels,
			ActivateChannel:   adminHandler.ActivateChannel,
			DeactivateChannel: adminHandler.DeactivateChannel,

			ListIgnored:  adminHandler.ListIgnored,
			IgnoreUser:   adminHandler.IgnoreUser,
			UnignoreUser: adminHandler.UnignoreUser,

			WipeMemory:   adminHandler.WipeMemory,
			RememberNote: adminHandler.RememberNote,

			ScopeStatus:  adminHandler.ScopeStatus,
			ReleaseScope: adminHandler.ReleaseScope,

			RecentExchanges: adminHandler.RecentExchanges,
			ExchangeStats:   adminHandler.ExchangeStats,

			AuthMiddleware: auth.Middleware(jwtManager),
		},
	)

	srv := server.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return xmppClient.Start(gctx) })
	g.Go(func() error { return responder.Start(gctx) })
	g.Go(func() error { return relay.Start(gctx) })
	g.Go(func() error { return journalConsumer.Start(gctx) })
	g.Go(func() error { return srv.Start(gctx) })

	if err := g.Wait(); err != nil {
		slog.Error("shutting down after error", "error", err)
		os.Exit(1)
	}
	slog.Info("parley stopped")
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
