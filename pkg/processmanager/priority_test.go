package processmanager

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/notification"
)

type fakeNotificationLoader struct {
	states map[uuid.UUID]*notification.State
}

func (f *fakeNotificationLoader) Load(ctx context.Context, aggregateID uuid.UUID) (*notification.State, bool, error) {
	s, ok := f.states[aggregateID]
	return s, ok, nil
}

type fakeRenderClient struct {
	content string
}

func (f *fakeRenderClient) Render(ctx context.Context, channel notification.Channel, templateData map[string]string) (string, error) {
	return f.content, nil
}

type fakeDispatchClient struct {
	externalID string
}

func (f *fakeDispatchClient) Dispatch(ctx context.Context, channel notification.Channel, destination string, renderedContent string) (string, error) {
	return f.externalID, nil
}

type fakeNotificationCommander struct {
	loader *fakeNotificationLoader
	calls  []notification.Command
}

func (f *fakeNotificationCommander) Execute(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error) {
	f.calls = append(f.calls, cmd)
	state := f.loader.states[aggregateID]
	switch c := cmd.(type) {
	case notification.StoreRenderedContent:
		state.Status = notification.StatusRendered
		state.RenderedContent = c.RenderedContent
	case notification.MarkAsDispatched:
		state.Status = notification.StatusSent
		state.ExternalID = c.ExternalID
	}
	return state, nil, nil
}

func noopMeta(uuid.UUID) eventsourcing.CommandMetadata { return eventsourcing.CommandMetadata{} }

func TestPriorityRunner_ChainsRenderThenDispatchForHighPriority(t *testing.T) {
	notificationID := uuid.New()
	loader := &fakeNotificationLoader{states: map[uuid.UUID]*notification.State{
		notificationID: {
			ID:          notificationID,
			Channel:     notification.ChannelEmail,
			Destination: "user@example.com",
			Priority:    notification.PriorityHigh,
			Status:      notification.StatusRequested,
		},
	}}
	commander := &fakeNotificationCommander{loader: loader}
	renderExec := NewInlineRenderExecutor(&fakeRenderClient{content: "hello"}, commander, noopMeta)
	dispatchExec := NewInlineDispatchExecutor(&fakeDispatchClient{externalID: "ext-1"}, commander, noopMeta)

	dispatcher := NewDispatcher(map[string]Executor{
		"render-service":   renderExec,
		"dispatch-service": dispatchExec,
	}, DefaultSelector, nil)
	ledger := &fakeLedger{}

	runner := NewPriorityRunner(loader, ledger, dispatcher, nil)
	err := runner.Run(context.Background(), notificationID, 1)
	require.NoError(t, err)

	require.Len(t, commander.calls, 2)
	assert.IsType(t, notification.StoreRenderedContent{}, commander.calls[0])
	assert.IsType(t, notification.MarkAsDispatched{}, commander.calls[1])
	assert.Equal(t, notification.StatusSent, loader.states[notificationID].Status)
	assert.Equal(t, "ext-1", loader.states[notificationID].ExternalID)

	for _, r := range ledger.inserted {
		assert.Equal(t, EffectCompleted, r.Status)
	}
}

func TestPriorityRunner_NoopForNormalPriority(t *testing.T) {
	notificationID := uuid.New()
	loader := &fakeNotificationLoader{states: map[uuid.UUID]*notification.State{
		notificationID: {ID: notificationID, Priority: notification.PriorityNormal, Status: notification.StatusRequested},
	}}
	ledger := &fakeLedger{}
	dispatcher := NewDispatcher(map[string]Executor{}, DefaultSelector, nil)

	runner := NewPriorityRunner(loader, ledger, dispatcher, nil)
	err := runner.Run(context.Background(), notificationID, 1)
	require.NoError(t, err)
	assert.Empty(t, ledger.inserted)
}

func TestPriorityRunner_StopsAtSentStatus(t *testing.T) {
	notificationID := uuid.New()
	loader := &fakeNotificationLoader{states: map[uuid.UUID]*notification.State{
		notificationID: {ID: notificationID, Priority: notification.PriorityHigh, Status: notification.StatusSent},
	}}
	ledger := &fakeLedger{}
	dispatcher := NewDispatcher(map[string]Executor{}, DefaultSelector, nil)

	runner := NewPriorityRunner(loader, ledger, dispatcher, nil)
	err := runner.Run(context.Background(), notificationID, 1)
	require.NoError(t, err)
	assert.Empty(t, ledger.inserted)
}
