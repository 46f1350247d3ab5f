// Command worker delivers the mail queued by the API: request approvals and
// payment notices to suppliers.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"procurement/internal/config"
	"procurement/internal/logger"
	"procurement/internal/notification"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}

	log := logger.NewForEnvironment(cfg.AppEnv, cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker := notification.NewWorker(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB},
		notification.NewSMTPMailer(cfg.SMTP),
		log,
	)

	log.Info("mail worker started", zap.String("redis", cfg.Redis.Addr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("mail worker stopped", zap.Error(err))
	}
	log.Info("mail worker stopped")
}
