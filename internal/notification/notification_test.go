package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"procurement/internal/config"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: QueueDefault}, nil
}

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestQueueNotifier_EnqueuesMailTask(t *testing.T) {
	q := &fakeEnqueuer{}
	n := &QueueNotifier{client: q}

	err := n.Notify(context.Background(), Message{To: "req@example.com", Subject: "Request approved", Body: "REQ-20260301-0001"})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TaskTypeSendEmail, q.tasks[0].Type())

	var msg Message
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &msg))
	assert.Equal(t, "req@example.com", msg.To)

	assert.ErrorIs(t, n.Notify(context.Background(), Message{Subject: "x"}), ErrNoRecipient)

	q.err = errors.New("redis unavailable")
	assert.Error(t, n.Notify(context.Background(), Message{To: "a@b.c"}))
}

func TestHandleSendEmailTask(t *testing.T) {
	mailer := &fakeMailer{}
	handle := HandleSendEmailTask(mailer, zap.NewNop())
	ctx := context.Background()

	task, err := NewSendEmailTask(Message{To: "bursar@example.com", Subject: "Voucher paid"})
	require.NoError(t, err)
	require.NoError(t, handle(ctx, task))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Voucher paid", mailer.sent[0].Subject)

	err = handle(ctx, asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	empty, _ := NewSendEmailTask(Message{Subject: "no one"})
	err = handle(ctx, empty)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, ErrNoRecipient)

	mailer.err = errors.New("smtp down")
	err = handle(ctx, task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestSMTPMailer_Compose(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "no-reply@procurement.local"})
	msg := m.compose(Message{To: "a@example.com", Subject: "Hello", Body: "Body"})

	assert.Equal(t, []string{"no-reply@procurement.local"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"a@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, msg.GetHeader("Subject"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}
