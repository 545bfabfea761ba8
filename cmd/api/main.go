package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobBoard/internal/analytics"
	"jobBoard/internal/api"
	"jobBoard/internal/application"
	"jobBoard/internal/auth"
	"jobBoard/internal/config"
	"jobBoard/internal/content"
	"jobBoard/internal/database"
	"jobBoard/internal/jobs"
	"jobBoard/internal/mail"
	"jobBoard/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.App.LogLevel)}))
	slog.SetDefault(logger)
	loc := cfg.App.Location()

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}
	logger.Info("database ready", slog.String("host", cfg.Database.Host), slog.String("db", cfg.Database.Name))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	privatePEM, err := os.ReadFile(cfg.Auth.PrivateKeyFile)
	if err != nil {
		log.Fatalf("read session private key: %v", err)
	}
	publicPEM, err := os.ReadFile(cfg.Auth.PublicKeyFile)
	if err != nil {
		log.Fatalf("read session public key: %v", err)
	}
	authService, err := auth.NewAuthService(privatePEM, publicPEM, cfg.Auth.SessionTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	contentStore := content.NewStore(db, storageClient, cfg.App.SiteName, cfg.Upload.MaxBytes, logger)

	notifierOpts := []mail.NotifierOption{
		mail.WithContent(contentStore),
		mail.WithLocation(loc),
		mail.WithLogger(logger),
	}
	if cfg.Mail.UseQueue {
		asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
		defer func() {
			if err := asynqClient.Close(); err != nil {
				logger.Error("close asynq client failed", slog.Any("error", err))
			}
		}()
		notifierOpts = append(notifierOpts, mail.WithQueue(asynqClient))
	}
	notifier := mail.NewNotifier(mail.NewSMTPSender(cfg.Mail), cfg.App.SiteName, cfg.Mail.AdminAddress, notifierOpts...)

	var scanner application.Scanner
	if addr := strings.TrimSpace(cfg.Upload.ClamdAddr); addr != "" {
		scanner = application.NewClamdScanner(addr)
		logger.Info("attachment virus scanning enabled", slog.String("clamd_addr", addr))
	}

	catalog := jobs.NewCatalog(db, loc)
	workflow := application.NewWorkflow(db, catalog, storageClient, notifier, application.Options{
		MaxBytes:      cfg.Upload.MaxBytes,
		MaxAdditional: cfg.Upload.MaxAdditional,
		Scanner:       scanner,
		Logger:        logger,
	})

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, api.Dependencies{
		DB:          db,
		Redis:       redisClient,
		AuthService: authService,
		Revocations: auth.NewRevocationList(redisClient),
		Catalog:     catalog,
		Workflow:    workflow,
		Content:     contentStore,
		Analytics:   analytics.NewAggregator(db, loc),
		Signer:      storageClient,
		LoginPolicy: api.LoginPolicy{
			RateLimitPerHour:  cfg.Auth.LoginRateLimitPerHour,
			LockThreshold:     cfg.Auth.LoginLockThreshold,
			LockTTL:           cfg.Auth.LoginLockTTL,
			MinPasswordLength: cfg.Auth.MinPasswordLength,
		},
		CookieName:    cfg.Auth.CookieName,
		CookieDomain:  cfg.Auth.CookieDomain,
		DocumentTTL:   cfg.Upload.DocumentURLTTL,
		MaxBytes:      cfg.Upload.MaxBytes,
		MaxAdditional: cfg.Upload.MaxAdditional,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// 附件上传需要较长的读取时间。
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown failed", slog.Any("error", err))
	}
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
