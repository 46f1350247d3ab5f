package service

import (
	"context"

	"procurement/internal/notification"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster pushes an event to connected websocket clients
type Broadcaster interface {
	Publish(v any) error
}

// TransitionRecorder counts committed transitions and the mail they trigger
type TransitionRecorder interface {
	ObserveTransition(entity, action, status string)
	ObserveRelease(quantity int, ok bool)
	ObserveNotification(err error)
}

// TransitionEvent is broadcast after every committed status change
type TransitionEvent struct {
	Type   string    `json:"type"`
	Entity string    `json:"entity"`
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Action string    `json:"action"`
}

const eventTypeTransition = "workflow.transition"

// Events fans committed changes out to metrics, websocket clients and email. Every sink
// is optional and failures are logged only: the change is already committed.
type Events struct {
	broadcaster Broadcaster
	recorder    TransitionRecorder
	notifier    notification.Notifier
	log         *zap.Logger
}

func NewEvents(broadcaster Broadcaster, recorder TransitionRecorder, notifier notification.Notifier, log *zap.Logger) *Events {
	if log == nil {
		log = zap.NewNop()
	}
	if notifier == nil {
		notifier = notification.NopNotifier{}
	}
	return &Events{broadcaster: broadcaster, recorder: recorder, notifier: notifier, log: log}
}

func (e *Events) transitioned(entity string, id uuid.UUID, action, status string) {
	if e == nil {
		return
	}
	if e.recorder != nil {
		e.recorder.ObserveTransition(entity, action, status)
	}
	if e.broadcaster != nil {
		err := e.broadcaster.Publish(TransitionEvent{
			Type:   eventTypeTransition,
			Entity: entity,
			ID:     id,
			Status: status,
			Action: action,
		})
		if err != nil {
			e.log.Warn("failed to broadcast transition",
				zap.String("entity", entity), zap.Stringer("id", id), zap.Error(err))
		}
	}
}

func (e *Events) released(quantity int, ok bool) {
	if e == nil || e.recorder == nil {
		return
	}
	e.recorder.ObserveRelease(quantity, ok)
}

func (e *Events) notify(ctx context.Context, msg notification.Message) {
	if e == nil || msg.To == "" {
		return
	}
	// detached so a cancelled request does not drop the enqueue
	err := e.notifier.Notify(context.WithoutCancel(ctx), msg)
	if e.recorder != nil {
		e.recorder.ObserveNotification(err)
	}
	if err != nil {
		e.log.Warn("failed to enqueue notification",
			zap.String("subject", msg.Subject), zap.Error(err))
	}
}
