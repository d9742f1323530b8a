package worker

import (
	"context"

	"github.com/handoffdesk/chat-handoff/internal/service"
)

// StartNotificationWorker registers notification handlers and starts webhook delivery.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	go notificationService.Run(ctx)
}
