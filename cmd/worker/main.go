package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"jobBoard/internal/config"
	"jobBoard/internal/content"
	"jobBoard/internal/database"
	"jobBoard/internal/mail"
	"jobBoard/internal/metrics"
	"jobBoard/internal/tasks"
	"jobBoard/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	// Logo 不在邮件中使用，文案读取无需对象存储。
	contentStore := content.NewStore(db, nil, cfg.App.SiteName, 0, logger)
	notifier := mail.NewNotifier(
		mail.NewSMTPSender(cfg.Mail),
		cfg.App.SiteName,
		cfg.Mail.AdminAddress,
		mail.WithContent(contentStore),
		mail.WithLocation(cfg.App.Location()),
		mail.WithLogger(logger),
	)

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 5,
	})

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeAdminNotify, worker.NewAdminNotifyHandler(db, notifier, logger))

	logger.Info("worker service started", slog.String("redis_addr", redisAddr))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
