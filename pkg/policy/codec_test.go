package policy

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/labour"
)

func TestEncodeDecodeEffect_SendNotification_RoundTrips(t *testing.T) {
	original := SendNotification{Intent: NotificationIntent{
		IdempotencyKey: uuid.New(),
		LabourID:       uuid.New(),
		Context:        SubscriberRecipient{SubscriptionID: uuid.New(), SubscriberID: "bob", Channel: labour.ContactSMS},
		Channel:        labour.ContactSMS,
		Sender:         "system",
		Payload:        LabourStarted{LabourID: uuid.New()},
	}}

	data, err := EncodeEffect(original)
	require.NoError(t, err)

	decoded, err := DecodeEffect(data)
	require.NoError(t, err)

	roundTripped, ok := decoded.(SendNotification)
	require.True(t, ok)
	assert.Equal(t, original.Intent.IdempotencyKey, roundTripped.Intent.IdempotencyKey)
	assert.Equal(t, original.Intent.Channel, roundTripped.Intent.Channel)
	sub, ok := roundTripped.Intent.Context.(SubscriberRecipient)
	require.True(t, ok)
	assert.Equal(t, "bob", sub.SubscriberID)
	payload, ok := roundTripped.Intent.Payload.(LabourStarted)
	require.True(t, ok)
	assert.Equal(t, original.Intent.Payload.(LabourStarted).LabourID, payload.LabourID)
}

func TestEncodeDecodeEffect_GenerateSubscriptionToken_RoundTrips(t *testing.T) {
	original := GenerateSubscriptionToken{IdempotencyKey: uuid.New(), LabourID: uuid.New(), MotherID: "mother-1"}

	data, err := EncodeEffect(original)
	require.NoError(t, err)

	decoded, err := DecodeEffect(data)
	require.NoError(t, err)

	assert.Equal(t, original, decoded)
}
