package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDispatcherDeliversToTypedAndWildcardHandlers(t *testing.T) {
	d := NewInMemoryDispatcher(nil)

	var typed, all []EventType
	d.Subscribe(EventChatAssigned, func(_ context.Context, e Event) error {
		typed = append(typed, e.Type)
		return errors.New("boom")
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		all = append(all, e.Type)
		return nil
	})

	require.NoError(t, d.Publish(context.Background(), Event{Type: EventChatAssigned}))
	require.NoError(t, d.Publish(context.Background(), Event{Type: EventQueueUpdated}))

	require.Equal(t, []EventType{EventChatAssigned}, typed)
	require.Equal(t, []EventType{EventChatAssigned, EventQueueUpdated}, all)
}
