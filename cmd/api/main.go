package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaptam/internal/api"
	"kaptam/internal/catalog"
	"kaptam/internal/config"
	"kaptam/internal/database"
	"kaptam/internal/domain"
	"kaptam/internal/events"
	"kaptam/internal/google"
	"kaptam/internal/logging"
	"kaptam/internal/metrics"
	"kaptam/internal/notify"
	"kaptam/internal/repository"
	"kaptam/internal/service"
	"kaptam/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	games, err := catalog.Load(cfg.Catalog.BoardgamesPath, cfg.Catalog.VideogamesPath, logging.Component(logger, "catalog"))
	if err != nil {
		logger.Error().Err(err).Msg("load catalog")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	syncWorker := initSheetsSync(ctx, cfg, db, redisClient, logger)

	bus := events.NewEventBus()
	dispatcher := initNotifications(cfg, bus, logger)

	admission := service.NewAdmission(db, games, service.AdmissionConfig{
		MaxPerDate:     cfg.Reservations.MaxPerDate,
		MaxItems:       cfg.Reservations.MaxItems,
		MaxAdvanceDays: cfg.Reservations.MaxAdvanceDays,
	}, logging.Component(logger, "admission"))
	reservations := service.NewReservationService(
		db, admission, service.NewCodeGenerator(db),
		bus, syncWorker,
		logging.Component(logger, "reservations"),
	)
	auth := service.NewAuthService(cfg.Admin, logging.Component(logger, "auth"))
	if cfg.Admin.PasswordHash == "" {
		logger.Warn().Msg("admin password hash is not set, admin login is disabled (run setup-admin)")
	}

	retention := service.NewRetentionService(db, cfg.Retention.Days, cfg.Retention.Interval, logging.Component(logger, "retention"))
	go retention.Start(ctx)

	backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logging.Component(logger, "backup"))
	go backup.Start(ctx)

	startMetrics(ctx, cfg, logger)

	router := api.NewRouter(cfg, api.Dependencies{
		Reservations: reservations,
		Auth:         auth,
		Catalog:      games,
		Health:       db,
		RateLimiter:  rateLimiter(redisClient, logger),
	}, logging.Component(logger, "http"))
	httpServer := api.NewHTTPServer(cfg, router, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC.Port, cfg.API.GRPC.Reflection, db, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	err = serve(ctx, httpServer, grpcServer, logger)

	// notifications already in flight get a short grace period
	waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if werr := dispatcher.Wait(waitCtx); werr != nil {
		logger.Warn().Err(werr).Msg("pending notifications abandoned")
	}
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// rateLimiter prefers Redis and falls back to the in-process limiter.
func rateLimiter(client *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	if client == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(client), memory, logging.Component(logger, "ratelimit"))
}

func initSheetsSync(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) domain.SyncWorker {
	if !cfg.Google.SheetsEnabled() {
		logger.Info().Msg("google sheets sync disabled")
		return nil
	}

	sheetsLogger := logging.Component(logger, "sheets")
	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.ReservationsSpreadsheetID, sheetsLogger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile); emailErr == nil {
			logger.Warn().Err(err).Str("share_with", email).Msg("google sheets unreachable, share the spreadsheet with the service account")
		} else {
			logger.Warn().Err(err).Msg("google sheets unreachable")
		}
	} else if err := sheetsService.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("write sheets header")
	}
	go sheetsService.Start(ctx)

	retry := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	syncWorker := worker.NewSyncWorker(db, sheetsService, redisClient, retry, logging.Component(logger, "sheets-worker"))
	go syncWorker.Start(ctx)

	logger.Info().Msg("google sheets sync enabled")
	return syncWorker
}

func initNotifications(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *notify.Dispatcher {
	notifyLogger := logging.Component(logger, "notify")
	var notifiers []domain.Notifier

	if cfg.Email.Enabled {
		email, err := notify.NewEmailNotifier(cfg.Email, cfg.App.SiteURL, notifyLogger)
		if err != nil {
			logger.Warn().Err(err).Msg("email notifier init failed, continuing without email")
		} else {
			notifiers = append(notifiers, email)
		}
	}

	if cfg.Telegram.BotToken != "" && len(cfg.Telegram.AdminChatIDs) > 0 {
		bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram bot init failed, continuing without telegram")
		} else {
			notifiers = append(notifiers, notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatIDs, notifyLogger))
		}
	}

	dispatcher := notify.NewDispatcher(0, notifyLogger, notifiers...)
	if dispatcher.Len() > 0 {
		dispatcher.Subscribe(bus)
	}
	logger.Info().Int("channels", dispatcher.Len()).Msg("notifications configured")
	return dispatcher
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, grpcServer *api.GRPCServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 2)

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	logger.Info().Int("port", port).Msg("metrics listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
