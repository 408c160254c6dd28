package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/labour"
)

func newSubscribedState(labourID uuid.UUID, subscriptionID uuid.UUID, subscriberID string, methods ...labour.ContactMethod) *labour.State {
	state, _ := labour.FromEvents([]labour.Event{
		labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"},
		labour.SubscriberRequested{SubscriptionID: subscriptionID, SubscriberID: subscriberID, Role: labour.RoleFriendsAndFamily},
		labour.SubscriberApproved{SubscriptionID: subscriptionID, AccessLevel: labour.AccessBasic, ContactMethods: methods},
	})
	return state
}

func TestRegistry_LabourPlanned_GeneratesToken(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	event := labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"}

	effects := reg.Apply(event, Context{State: &labour.State{ID: labourID, MotherID: "mother-1"}, Sequence: 1})

	require.Len(t, effects, 1)
	tokenEffect, ok := effects[0].(GenerateSubscriptionToken)
	require.True(t, ok)
	assert.Equal(t, labourID, tokenEffect.LabourID)
}

func TestRegistry_LabourBegun_NotifiesSubscribedSubscribers(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	subID := uuid.New()
	state := newSubscribedState(labourID, subID, "bob", labour.ContactEmail, labour.ContactSMS)

	effects := reg.Apply(labour.LabourBegun{}, Context{State: state, Sequence: 5})

	require.Len(t, effects, 2)
	for _, e := range effects {
		send, ok := e.(SendNotification)
		require.True(t, ok)
		assert.Equal(t, labourID, send.Intent.LabourID)
		_, isSubscriber := send.Intent.Context.(SubscriberRecipient)
		assert.True(t, isSubscriber)
	}
}

func TestRegistry_LabourBegun_SkipsUnapprovedSubscription(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	subID := uuid.New()
	state, _ := labour.FromEvents([]labour.Event{
		labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"},
		labour.SubscriberRequested{SubscriptionID: subID, SubscriberID: "bob", Role: labour.RoleFriendsAndFamily},
	})

	effects := reg.Apply(labour.LabourBegun{}, Context{State: state, Sequence: 2})

	assert.Empty(t, effects)
}

func TestRegistry_SubscriberRequested_NotifiesOwnerByEmail(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	state, _ := labour.FromEvents([]labour.Event{labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"}})

	effects := reg.Apply(labour.SubscriberRequested{SubscriberID: "bob", SubscriptionID: uuid.New()}, Context{State: state, Sequence: 3})

	require.Len(t, effects, 1)
	send := effects[0].(SendNotification)
	assert.Equal(t, labour.ContactEmail, send.Intent.Channel)
	_, isOwner := send.Intent.Context.(LabourOwnerRecipient)
	assert.True(t, isOwner)
}

func TestRegistry_LabourUpdatePosted_SuppressesStatusUpdate(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	subID := uuid.New()
	state := newSubscribedState(labourID, subID, "bob", labour.ContactEmail)

	effects := reg.Apply(labour.LabourUpdatePosted{UpdateType: labour.UpdateTypeStatusUpdate, Message: "8cm"}, Context{State: state, Sequence: 6})

	assert.Empty(t, effects)
}

func TestRegistry_LabourUpdatePosted_NotifiesOnAnnouncement(t *testing.T) {
	reg := NewRegistry()
	labourID := uuid.New()
	subID := uuid.New()
	state := newSubscribedState(labourID, subID, "bob", labour.ContactEmail)

	effects := reg.Apply(labour.LabourUpdatePosted{UpdateType: labour.UpdateTypeAnnouncement, Message: "it's time!"}, Context{State: state, Sequence: 7})

	require.Len(t, effects, 1)
	send := effects[0].(SendNotification)
	announcement, ok := send.Intent.Payload.(AnnouncementPosted)
	require.True(t, ok)
	assert.Equal(t, "it's time!", announcement.Message)
}

func TestDeriveNotificationIdempotencyKey_Deterministic(t *testing.T) {
	labourID := uuid.New()
	a := DeriveNotificationIdempotencyKey(labourID, 5, "bob", "labour_begun")
	b := DeriveNotificationIdempotencyKey(labourID, 5, "bob", "labour_begun")
	c := DeriveNotificationIdempotencyKey(labourID, 6, "bob", "labour_begun")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
