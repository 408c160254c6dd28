package notification

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

func sequentialIDs(ids ...uuid.UUID) func() uuid.UUID {
	i := 0
	return func() uuid.UUID {
		id := ids[i]
		i++
		return id
	}
}

func TestHandleCommand_RequestNotification(t *testing.T) {
	events, err := HandleCommand(nil, RequestNotification{
		Channel:     ChannelEmail,
		Destination: "jane@example.com",
		Priority:    PriorityHigh,
	}, time.Now(), sequentialIDs(uuid.New()))

	require.NoError(t, err)
	require.Len(t, events, 1)
	requested, ok := events[0].(NotificationRequested)
	require.True(t, ok)
	assert.Equal(t, ChannelEmail, requested.Channel)
	assert.Equal(t, PriorityHigh, requested.Priority)
}

func TestHandleCommand_FullHappyPath(t *testing.T) {
	state, _ := FromEvents([]Event{
		NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail, Destination: "a@b.com"},
	})

	renderEvents, err := HandleCommand(state, StoreRenderedContent{Channel: ChannelEmail, RenderedContent: "hi"}, time.Now(), sequentialIDs())
	require.NoError(t, err)
	Apply(state, renderEvents[0])
	assert.Equal(t, StatusRendered, state.Status)

	dispatchEvents, err := HandleCommand(state, MarkAsDispatched{ExternalID: "ext-1"}, time.Now(), sequentialIDs())
	require.NoError(t, err)
	Apply(state, dispatchEvents[0])
	assert.Equal(t, StatusSent, state.Status)

	deliverEvents, err := HandleCommand(state, MarkAsDelivered{}, time.Now(), sequentialIDs())
	require.NoError(t, err)
	Apply(state, deliverEvents[0])
	assert.Equal(t, StatusDelivered, state.Status)
}

func TestHandleCommand_StoreRenderedContent_RejectsChannelMismatch(t *testing.T) {
	state, _ := FromEvents([]Event{
		NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail, Destination: "a@b.com"},
	})

	_, err := HandleCommand(state, StoreRenderedContent{Channel: ChannelSMS, RenderedContent: "hi"}, time.Now(), sequentialIDs())

	var validationErr *eventsourcing.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestHandleCommand_MarkAsDelivered_RequiresExternalID(t *testing.T) {
	state, _ := FromEvents([]Event{
		NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail},
		ContentRendered{RenderedContent: "hi"},
	})
	state.Status = StatusSent // simulate dispatch without an external id set

	_, err := HandleCommand(state, MarkAsDelivered{}, time.Now(), sequentialIDs())

	var validationErr *eventsourcing.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestHandleCommand_MarkAsFailed_ThenRetry(t *testing.T) {
	state, _ := FromEvents([]Event{
		NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail},
		ContentRendered{RenderedContent: "hi"},
		Dispatched{ExternalID: "ext-1"},
	})

	failEvents, err := HandleCommand(state, MarkAsFailed{Reason: "bounced"}, time.Now(), sequentialIDs())
	require.NoError(t, err)
	Apply(state, failEvents[0])
	assert.Equal(t, StatusFailed, state.Status)

	retryEvents, err := HandleCommand(state, RetryNotification{}, time.Now(), sequentialIDs())
	require.NoError(t, err)
	Apply(state, retryEvents[0])
	assert.Equal(t, StatusRequested, state.Status)
	assert.Empty(t, state.ExternalID)
}

func TestHandleCommand_MarkAsDispatched_AllowedFromFailed(t *testing.T) {
	state, _ := FromEvents([]Event{
		NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail},
		ContentRendered{RenderedContent: "hi"},
		Dispatched{ExternalID: "ext-1"},
		Failed{Reason: "timeout"},
	})

	events, err := HandleCommand(state, MarkAsDispatched{ExternalID: "ext-2"}, time.Now(), sequentialIDs())

	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestHandleCommand_RequestNotification_AlreadyExists(t *testing.T) {
	state, _ := FromEvents([]Event{NotificationRequested{NotificationID: uuid.New(), Channel: ChannelEmail}})

	_, err := HandleCommand(state, RequestNotification{Channel: ChannelEmail}, time.Now(), sequentialIDs(uuid.New()))

	assert.True(t, eventsourcing.IsAlreadyExists(err))
}
