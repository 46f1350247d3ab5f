package notification

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// ErrNoRecipient is returned for messages without an address
var ErrNoRecipient = errors.New("notification: recipient is required")

// Notifier hands messages off for asynchronous delivery
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier enqueues mail:send tasks for the worker
type QueueNotifier struct {
	client enqueuer
}

func NewQueueNotifier(client *asynq.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

func (n *QueueNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	task, err := NewSendEmailTask(msg)
	if err != nil {
		return err
	}
	_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// NopNotifier drops every message
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Message) error { return nil }
