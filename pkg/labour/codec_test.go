package labour

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTripsAllEventTypes(t *testing.T) {
	codec := NewCodec()
	intensity := 7
	endTime := time.Now().UTC()

	events := []Event{
		LabourPlanned{LabourID: uuid.New(), MotherID: "m", MotherName: "Jane", DueDate: endTime, FirstLabour: true},
		LabourBegun{StartTime: endTime},
		ContractionStarted{ContractionID: uuid.New(), StartTime: endTime},
		ContractionEnded{ContractionID: uuid.New(), EndTime: endTime, Intensity: &intensity},
		ContractionUpdated{ContractionID: uuid.New(), StartTime: endTime, EndTime: &endTime, Intensity: &intensity},
		ContractionRemoved{ContractionID: uuid.New()},
		LabourPhaseChanged{Phase: PhaseActive},
		LabourCompleted{CompletedAt: endTime, Notes: "fine"},
		SubscriberRequested{SubscriptionID: uuid.New(), SubscriberID: "bob", Role: RolePartner},
		SubscriberApproved{SubscriptionID: uuid.New(), AccessLevel: AccessFull, ContactMethods: []ContactMethod{ContactEmail}},
		SubscriberBlocked{SubscriptionID: uuid.New()},
		SubscriberRemoved{SubscriptionID: uuid.New()},
		SubscriberUnsubscribed{SubscriptionID: uuid.New()},
		SubscriptionAccessLevelUpdated{SubscriptionID: uuid.New(), AccessLevel: AccessBasic},
		SubscriptionTokenGenerated{Token: "T"},
		LabourUpdatePosted{UpdateID: uuid.New(), UpdateType: UpdateTypeStatusUpdate, Message: "hi", PostedBy: "m", PostedAt: endTime},
	}

	for _, event := range events {
		data, err := codec.Encode(event)
		require.NoError(t, err)

		decoded, err := codec.Decode(event.EventType(), event.EventVersion(), data)
		require.NoError(t, err)
		assert.Equal(t, event, decoded)
	}
}

func TestCodec_Decode_UnknownEventType(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode("NotARealEvent", 1, []byte(`{}`))

	assert.Error(t, err)
}

func TestCodec_Decode_UnsupportedVersion(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode("LabourBegun", 2, []byte(`{}`))

	assert.Error(t, err)
}

func TestAllEventTypes_CoversEveryEvent(t *testing.T) {
	assert.Len(t, AllEventTypes(), 16)
}
