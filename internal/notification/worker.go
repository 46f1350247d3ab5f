package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker wraps the Asynq server that delivers queued mail.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *zap.Logger
}

func NewWorker(redisOpts asynq.RedisClientOpt, mailer Mailer, log *zap.Logger) *Worker {
	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSendEmail, HandleSendEmailTask(mailer, log))
	return &Worker{server: srv, mux: mux, log: log}
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks. Undecodable payloads are not retried.
func HandleSendEmailTask(mailer Mailer, log *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var msg Message
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			log.Warn("dropping malformed mail task", zap.Error(err))
			return fmt.Errorf("decode mail payload: %w", asynq.SkipRetry)
		}
		if msg.To == "" {
			return fmt.Errorf("%w: %w", ErrNoRecipient, asynq.SkipRetry)
		}
		if err := mailer.Send(ctx, msg); err != nil {
			log.Warn("mail delivery failed", zap.String("to", msg.To), zap.Error(err))
			return err
		}
		log.Info("mail delivered", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return nil
	}
}
