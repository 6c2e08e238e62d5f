package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voltparts/storefront/cmd/storefront/cli"
	"github.com/voltparts/storefront/internal/app"
	"github.com/voltparts/storefront/internal/auth"
	"github.com/voltparts/storefront/internal/catalog"
	"github.com/voltparts/storefront/internal/checkout"
	"github.com/voltparts/storefront/internal/crud"
	"github.com/voltparts/storefront/internal/observability"
	"github.com/voltparts/storefront/internal/platform/cache"
	"github.com/voltparts/storefront/internal/platform/db"
	"github.com/voltparts/storefront/internal/rbac"
	roleshttp "github.com/voltparts/storefront/internal/roles/http"
	"github.com/voltparts/storefront/internal/shared"
	"github.com/voltparts/storefront/internal/users"
	"github.com/voltparts/storefront/jobs"
)

const sessionCookie = "storefront_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger, Recorder: metrics}

	authRepo := auth.NewRepository(dbpool)
	provider := auth.NewCachedProvider(authRepo, cfg.ProfileCacheSize, cfg.ProfileCacheTTL)
	authHandler := auth.NewHandler(logger, auth.NewService(authRepo), sessionManager, csrfManager, provider)

	storage := crud.NewRedisStorage(redisClient, cfg.StorePrefix)
	catalogService, err := catalog.NewService(ctx, storage, shared.FlashNotifier{}, cfg.FavoriteCacheSize)
	if err != nil {
		logger.Error("load catalog", slog.Any("error", err))
		os.Exit(1)
	}

	usersService := users.NewService(users.NewRepository(dbpool), provider)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpt)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	var gateway checkout.Gateway
	paypal, err := checkout.NewPayPalClient(ctx, cfg.PayPal())
	switch {
	case errors.Is(err, checkout.ErrNotConfigured):
		logger.Warn("paypal credentials missing, checkout disabled")
	case err != nil:
		logger.Error("init paypal client", slog.Any("error", err))
		os.Exit(1)
	default:
		gateway = paypal
	}
	checkoutService := checkout.NewService(gateway, shared.NewIdempotencyStore(dbpool), jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthLoader:      auth.Loader{Provider: provider, Logger: logger, Timeout: 2 * time.Second},
		AuthHandler:     authHandler,
		CatalogHandler:  catalog.NewHandler(logger, catalogService, rbacMiddleware),
		UsersHandler:    users.NewHandler(logger, usersService, rbacMiddleware),
		RolesHandler:    roleshttp.NewHandler(rbacMiddleware),
		CheckoutHandler: checkout.NewHandler(logger, checkoutService, rbacMiddleware),
		JobHandler:      jobs.NewHandler(inspector, logger, rbacMiddleware),
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles "storefront jobs stats|archived|trigger <task>".
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	c := cli.NewJobsCLI(cfg.RedisAddr)
	defer c.Close()

	if len(args) == 0 {
		return errors.New("usage: storefront jobs stats|archived|trigger <task>")
	}
	switch args[0] {
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "archived":
		tasks, err := c.ListArchived(ctx, 20)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s %s %s\n", t.ID, t.Type, t.LastErr)
		}
	case "trigger":
		if len(args) < 2 {
			return errors.New("usage: storefront jobs trigger <task>")
		}
		info, err := c.Trigger(ctx, args[1], cfg.IdempotencyRetention)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
	return nil
}
