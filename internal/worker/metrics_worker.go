package worker

import (
	"context"

	"github.com/handoffdesk/chat-handoff/internal/events"
	"github.com/handoffdesk/chat-handoff/internal/observability"
)

// RegisterMetrics keeps hand-off metrics in step with published events.
func RegisterMetrics(dispatcher events.Dispatcher, metrics *observability.Metrics) {
	if dispatcher == nil || metrics == nil {
		return
	}
	dispatcher.Subscribe(events.EventChatAssigned, func(_ context.Context, e events.Event) error {
		outcome := "manual"
		if p, ok := e.Payload.(events.ChatAssignedPayload); ok && p.Automatic {
			outcome = "automatic"
		}
		metrics.RecordAssignment(outcome)
		return nil
	})
	dispatcher.Subscribe(events.EventChatTransferred, func(context.Context, events.Event) error {
		metrics.RecordTransfer("success")
		return nil
	})
	dispatcher.Subscribe(events.EventChatCompleted, func(context.Context, events.Event) error {
		metrics.RecordCompletion()
		return nil
	})
	dispatcher.Subscribe(events.EventSessionEscalated, func(_ context.Context, e events.Event) error {
		trigger := "unknown"
		if p, ok := e.Payload.(events.SessionEscalatedPayload); ok {
			trigger = p.Trigger
		}
		metrics.RecordEscalation(trigger)
		return nil
	})
	dispatcher.Subscribe(events.EventQueueUpdated, func(_ context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.QueueUpdatedPayload); ok {
			metrics.SetQueueLength(p.Stats.Length)
		}
		return nil
	})
}
