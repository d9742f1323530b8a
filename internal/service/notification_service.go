package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/events"
)

const (
	notificationBuffer = 256
	webhookTimeout     = 5 * time.Second
)

// NotificationService logs hand-off events and forwards them to an optional
// webhook. Delivery is asynchronous so a slow endpoint never stalls routing.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	outbox     chan events.Event
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		outbox:     make(chan events.Event, notificationBuffer),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSessionEscalated, n.handleSessionEscalated)
	n.dispatcher.Subscribe(events.EventChatAssigned, n.handleChatAssigned)
	n.dispatcher.Subscribe(events.EventChatTransferred, n.handleChatTransferred)
	n.dispatcher.Subscribe(events.EventChatCompleted, n.handleChatCompleted)
	n.dispatcher.Subscribe(events.EventStaffStatusChanged, n.handleStaffStatusChanged)
}

// Run delivers queued webhook notifications until ctx is done.
func (n *NotificationService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.outbox:
			if err := n.sendWebhook(event); err != nil {
				n.logger.Warn("webhook notification failed",
					zap.String("event_type", string(event.Type)),
					zap.String("session_id", event.SessionID),
					zap.Error(err))
			}
		}
	}
}

func (n *NotificationService) handleSessionEscalated(_ context.Context, event events.Event) error {
	n.logger.Info("SessionEscalated", zap.String("session_id", event.SessionID), zap.Any("payload", event.Payload))
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleChatAssigned(_ context.Context, event events.Event) error {
	n.logger.Info("ChatAssigned",
		zap.String("session_id", event.SessionID),
		zap.String("staff_id", event.StaffID),
		zap.Any("payload", event.Payload))
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleChatTransferred(_ context.Context, event events.Event) error {
	n.logger.Info("ChatTransferred", zap.String("session_id", event.SessionID), zap.Any("payload", event.Payload))
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleChatCompleted(_ context.Context, event events.Event) error {
	n.logger.Info("ChatCompleted", zap.String("session_id", event.SessionID), zap.String("staff_id", event.StaffID))
	n.enqueueWebhook(event)
	return nil
}

func (n *NotificationService) handleStaffStatusChanged(_ context.Context, event events.Event) error {
	n.logger.Debug("StaffStatusChanged", zap.String("staff_id", event.StaffID), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) enqueueWebhook(event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	select {
	case n.outbox <- event:
	default:
		n.logger.Warn("notification outbox full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("session_id", event.SessionID))
	}
}

func (n *NotificationService) sendWebhook(event events.Event) error {
	agent := fiber.Post(n.cfg.WebhookURL)
	agent.JSON(event)
	agent.Timeout(webhookTimeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	n.logger.Debug("webhook delivered",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("event_type", string(event.Type)))
	return nil
}
