package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Stagnxzione/ra-userbot/internal/events"
	"github.com/Stagnxzione/ra-userbot/internal/observability"
)

// NotificationService turns lifecycle events into structured log lines and
// counters.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventDraftStarted, n.handleDraftStarted)
	n.dispatcher.Subscribe(events.EventTicketFiled, n.handleTicketFiled)
	n.dispatcher.Subscribe(events.EventSubRecordFiled, n.handleSubRecordFiled)
	n.dispatcher.Subscribe(events.EventStatusMarked, n.handleStatusMarked)
	n.dispatcher.Subscribe(events.EventDispatcherNotified, n.handleDispatcherNotified)
	n.dispatcher.Subscribe(events.EventDraftClosed, n.handleDraftClosed)
}

func (n *NotificationService) handleDraftStarted(ctx context.Context, event events.Event) error {
	n.record(event).Info("DraftStarted")
	return nil
}

func (n *NotificationService) handleTicketFiled(ctx context.Context, event events.Event) error {
	log := n.record(event)
	if p, ok := event.Payload.(events.TicketFiledPayload); ok {
		log = log.With(zap.String("tracker_key", p.TrackerKey), zap.String("summary", p.Summary))
	}
	log.Info("TicketFiled")
	return nil
}

func (n *NotificationService) handleSubRecordFiled(ctx context.Context, event events.Event) error {
	log := n.record(event)
	if p, ok := event.Payload.(events.SubRecordFiledPayload); ok {
		log = log.With(
			zap.String("kind", string(p.Kind)),
			zap.String("parent_key", p.ParentKey),
			zap.String("tracker_key", p.TrackerKey),
			zap.String("attempt", p.Attempt))
	}
	log.Info("SubRecordFiled")
	return nil
}

func (n *NotificationService) handleStatusMarked(ctx context.Context, event events.Event) error {
	log := n.record(event)
	if p, ok := event.Payload.(events.StatusMarkedPayload); ok {
		log = log.With(zap.String("status", string(p.Status)), zap.Bool("repeat", p.Repeat))
		if p.Repeat {
			// A repeat mark leaves the done-set alone but still lands in the history.
			log.Debug("status re-marked")
		}
	}
	log.Info("StatusMarked")
	return nil
}

func (n *NotificationService) handleDispatcherNotified(ctx context.Context, event events.Event) error {
	n.record(event).Info("DispatcherNotified", zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleDraftClosed(ctx context.Context, event events.Event) error {
	n.record(event).Info("DraftClosed")
	return nil
}

// record counts the event and returns a logger scoped to it.
func (n *NotificationService) record(event events.Event) *zap.Logger {
	n.metrics.RecordEvent(string(event.Type))
	return n.logger.With(
		zap.String("event_id", event.ID),
		zap.String("draft_id", event.DraftID),
		zap.String("user_id", event.Actor.UserID))
}
