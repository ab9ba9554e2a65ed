package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/BoranPatron/tradeboard/internal/api"
	"github.com/BoranPatron/tradeboard/internal/config"
	"github.com/BoranPatron/tradeboard/internal/engine"
	"github.com/BoranPatron/tradeboard/internal/history"
	"github.com/BoranPatron/tradeboard/internal/publisher"
	"github.com/BoranPatron/tradeboard/internal/rate"
	internalsecrets "github.com/BoranPatron/tradeboard/internal/secrets"
	"github.com/BoranPatron/tradeboard/internal/source"
	"github.com/BoranPatron/tradeboard/internal/store"
	"github.com/BoranPatron/tradeboard/pkg/eventbus"
	"github.com/BoranPatron/tradeboard/pkg/logger"
	"github.com/BoranPatron/tradeboard/pkg/secrets"
	"github.com/BoranPatron/tradeboard/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init("tradeboard", cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [tradeboard]...")
	logg.Info("marketplace: ", cfg.MarketplaceBaseURL, " token: ", utils.MaskToken(cfg.MarketplaceToken))

	if cfg.ActorID <= 0 {
		logg.Fatal("ACTOR_ID must be set to the acting service provider id")
	}

	// --- API token resolution (AWS Secrets Manager, optional) ---
	var provider secrets.Provider
	if cfg.UseAWSAuth {
		p, err := secrets.NewAWSProvider(cfg.AWSRegion)
		if err != nil {
			logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
		}
		provider = p
	}

	tokenCache := secrets.NewCache[secrets.APIToken](15 * time.Minute)
	stopCleaner := make(chan struct{})
	go tokenCache.StartCleaner(5*time.Minute, stopCleaner)

	resolver := internalsecrets.NewTokenResolver(
		logg.Desugar(),
		cfg.Env,
		provider,
		tokenCache,
		cfg.MarketplaceToken,
	)

	// --- Connect to NATS (optional) ---
	var nc *nats.Conn
	var pub *publisher.Publisher
	if cfg.NATSUrl != "" {
		conn, err := nats.Connect(cfg.NATSUrl)
		if err != nil {
			logg.Fatalw("failed to connect to NATS", "error", err)
		}
		nc = conn

		pub, err = publisher.New(nc, "tradeboard", cfg.ActorID)
		if err != nil {
			logg.Fatalw("failed to init publisher", "error", err)
		}
	} else {
		logg.Warn("NATS_URL not configured; event publishing disabled")
	}

	// --- Rate limiter ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
	})

	// --- Store (Redis) ---
	st, err := store.New(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPassword, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Quote history writer (Postgres, optional) ---
	var quoteWriter *history.QuoteWriter
	if cfg.DatabaseURL != "" {
		logg.Info("connecting to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logg.Fatalw("failed to init postgres pool", "error", err)
		}
		defer pool.Close()
		quoteWriter = history.NewQuoteWriter(pool, logger.L(), "tradeboard")
	} else {
		logg.Warn("DATABASE_URL not configured; quote history disabled")
	}

	// --- Marketplace source client ---
	client := source.NewClient(
		logg.Desugar(),
		rateMgr,
		cfg.MarketplaceBaseURL,
		resolver,
	)

	// --- Engine ---
	bus := eventbus.New()
	ownership := engine.NewOwnershipResolver(logg.Desugar())
	cache := engine.NewCache(logg.Desugar(), ownership, cfg.ActorID)
	fb := engine.NewFallback(logg.Desugar())

	scheduler := engine.NewScheduler(
		logg.Desugar(),
		client,
		cache,
		fb,
		st,
		bus,
		engine.SchedulerOpts{
			Interval:      cfg.RefreshInterval,
			OnAuthExpired: resolver.Bust,
			OnRefreshed: func(snap engine.ViewSnapshot) {
				if pub == nil {
					return
				}
				pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := pub.PublishViewRefreshed(pubCtx, snap); err != nil {
					logg.Warnw("view_refreshed publish failed", "error", err)
				}
			},
		},
	)

	var quotePub engine.QuotePublisher
	var historyWriter engine.HistoryWriter
	if pub != nil {
		quotePub = pub
	}
	if quoteWriter != nil {
		historyWriter = quoteWriter
	}
	svc := engine.NewService(
		logg.Desugar(),
		client,
		scheduler,
		cache,
		bus,
		quotePub,
		historyWriter,
		st,
	)

	scheduler.Start(ctx)

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	handler := api.NewTradeHandler(logg.Desugar(), svc, scheduler)
	api.RegisterRoutes(app, nc, st, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.ServerPort)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.ServerPort)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[tradeboard] running",
		"env", cfg.Env,
		"actor_id", cfg.ActorID,
		"refresh_interval", cfg.RefreshInterval,
		"nats", cfg.NATSUrl != "",
		"history", quoteWriter != nil)

	<-ctx.Done()
	logg.Info("shutting down [tradeboard]...")

	close(stopCleaner)
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber shutdown failed", "error", err)
	}
	if pub != nil {
		pub.Close()
	} else if nc != nil {
		nc.Close()
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store close failed", "error", err)
	}
	logg.Info("[tradeboard] stopped")
}
