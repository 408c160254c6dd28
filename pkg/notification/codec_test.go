package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTripsAllEventTypes(t *testing.T) {
	codec := NewCodec()

	events := []Event{
		NotificationRequested{Channel: ChannelWhatsApp, Destination: "+100000", TemplateData: map[string]string{"name": "Jane"}, Priority: PriorityHigh},
		ContentRendered{RenderedContent: "hello"},
		Dispatched{ExternalID: "ext-1"},
		Delivered{},
		Failed{Reason: "bounced"},
		RetryRequeued{},
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

	_, err := codec.Decode("NotReal", 1, []byte(`{}`))

	assert.Error(t, err)
}

func TestAllEventTypes_CoversEveryEvent(t *testing.T) {
	assert.Len(t, AllEventTypes(), 6)
}
