package labour

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

func TestHandleCommand_PlanLabour(t *testing.T) {
	newID := sequentialIDs(uuid.New())
	now := time.Now().UTC()

	events, err := HandleCommand(nil, PlanLabour{
		MotherID:    "mother-1",
		MotherName:  "Jane",
		DueDate:     now.Add(24 * time.Hour),
		FirstLabour: true,
	}, now, newID)

	require.NoError(t, err)
	require.Len(t, events, 1)
	planned, ok := events[0].(LabourPlanned)
	require.True(t, ok)
	assert.Equal(t, "mother-1", planned.MotherID)
	assert.True(t, planned.FirstLabour)
}

func TestHandleCommand_PlanLabour_AlreadyExists(t *testing.T) {
	state, _ := FromEvents([]Event{LabourPlanned{LabourID: uuid.New(), MotherID: "m"}})

	_, err := HandleCommand(state, PlanLabour{MotherID: "m"}, time.Now(), sequentialIDs(uuid.New()))

	assert.True(t, eventsourcing.IsAlreadyExists(err))
}

func TestHandleCommand_StartContraction_ImplicitlyBeginsLabour(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
	})
	now := time.Now().UTC()

	events, err := HandleCommand(state, StartContraction{StartTime: now}, now, sequentialIDs(uuid.New()))

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "LabourBegun", events[0].EventType())
	assert.Equal(t, "ContractionStarted", events[1].EventType())
}

func TestHandleCommand_StartContraction_RejectsSecondActive(t *testing.T) {
	contractionID := uuid.New()
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourBegun{StartTime: time.Now()},
		ContractionStarted{ContractionID: contractionID, StartTime: time.Now()},
	})

	_, err := HandleCommand(state, StartContraction{StartTime: time.Now()}, time.Now(), sequentialIDs(uuid.New()))

	var validationErr *eventsourcing.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestHandleCommand_StartContraction_RejectsWhenComplete(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourCompleted{CompletedAt: time.Now()},
	})

	_, err := HandleCommand(state, StartContraction{StartTime: time.Now()}, time.Now(), sequentialIDs(uuid.New()))

	var transitionErr *eventsourcing.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestHandleCommand_EndContraction_SingleContractionKeepsPhase(t *testing.T) {
	start := time.Now().UTC()
	contractionID := uuid.New()
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourBegun{StartTime: start},
		ContractionStarted{ContractionID: contractionID, StartTime: start},
	})

	intensity := 9
	end := start.Add(2 * time.Minute)
	events, err := HandleCommand(state, EndContraction{
		ContractionID: contractionID,
		EndTime:       end,
		Intensity:     &intensity,
	}, end, sequentialIDs())

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ContractionEnded", events[0].EventType())
}

func TestHandleCommand_EndContraction_NotFound(t *testing.T) {
	state, _ := FromEvents([]Event{LabourPlanned{LabourID: uuid.New(), MotherID: "m"}})

	_, err := HandleCommand(state, EndContraction{ContractionID: uuid.New(), EndTime: time.Now()}, time.Now(), sequentialIDs())

	assert.True(t, eventsourcing.IsNotFound(err))
}

func TestHandleCommand_RequestAccess_RequiresMatchingToken(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		SubscriptionTokenGenerated{Token: "T"},
	})

	_, err := HandleCommand(state, RequestAccess{
		SubscriberID: "bob",
		Role:         RoleFriendsAndFamily,
		Token:        "wrong",
	}, time.Now(), sequentialIDs(uuid.New()))

	assert.ErrorIs(t, err, eventsourcing.ErrAuthorisation)
}

func TestHandleCommand_RequestAccess_RejectsSelfSubscribe(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		SubscriptionTokenGenerated{Token: "T"},
	})

	_, err := HandleCommand(state, RequestAccess{
		SubscriberID: "m",
		Role:         RolePartner,
		Token:        "T",
	}, time.Now(), sequentialIDs(uuid.New()))

	var validationErr *eventsourcing.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestHandleCommand_RequestAccess_Succeeds(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		SubscriptionTokenGenerated{Token: "T"},
	})

	events, err := HandleCommand(state, RequestAccess{
		SubscriberID: "bob",
		Role:         RoleFriendsAndFamily,
		Token:        "T",
	}, time.Now(), sequentialIDs(uuid.New()))

	require.NoError(t, err)
	require.Len(t, events, 1)
	req, ok := events[0].(SubscriberRequested)
	require.True(t, ok)
	assert.Equal(t, "bob", req.SubscriberID)
}

func TestHandleCommand_PostLabourUpdate_AnnouncementRateLimited(t *testing.T) {
	postedAt := time.Now().UTC()
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourUpdatePosted{UpdateID: uuid.New(), UpdateType: UpdateTypeAnnouncement, Message: "first", PostedAt: postedAt},
	})

	_, err := HandleCommand(state, PostLabourUpdate{
		UpdateType: UpdateTypeAnnouncement,
		Message:    "second",
		PostedAt:   postedAt.Add(10 * time.Second),
	}, postedAt.Add(10*time.Second), sequentialIDs(uuid.New()))

	var validationErr *eventsourcing.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestHandleCommand_PostLabourUpdate_StatusUpdateNotRateLimited(t *testing.T) {
	postedAt := time.Now().UTC()
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourUpdatePosted{UpdateID: uuid.New(), UpdateType: UpdateTypeAnnouncement, Message: "first", PostedAt: postedAt},
	})

	events, err := HandleCommand(state, PostLabourUpdate{
		UpdateType: UpdateTypeStatusUpdate,
		Message:    "progressing well",
		PostedAt:   postedAt.Add(time.Second),
	}, postedAt.Add(time.Second), sequentialIDs(uuid.New()))

	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestHandleCommand_CompleteLabour(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourBegun{StartTime: time.Now()},
	})

	events, err := HandleCommand(state, CompleteLabour{CompletedAt: time.Now(), Notes: "all well"}, time.Now(), sequentialIDs())

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "LabourCompleted", events[0].EventType())
}

func TestHandleCommand_CompleteLabour_RejectsWhenAlreadyComplete(t *testing.T) {
	state, _ := FromEvents([]Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m"},
		LabourCompleted{CompletedAt: time.Now()},
	})

	_, err := HandleCommand(state, CompleteLabour{CompletedAt: time.Now()}, time.Now(), sequentialIDs())

	var transitionErr *eventsourcing.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)
}

func TestFromEvents_EmptyLogIsNotFound(t *testing.T) {
	state, ok := FromEvents(nil)

	assert.False(t, ok)
	assert.Nil(t, state)
}
