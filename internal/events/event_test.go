package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookInboundMessage(t *testing.T) {
	body := []byte(`{
		"type": "InboundMessage",
		"contactId": "contact_001",
		"locationId": "loc_001",
		"message": {"type": "SMS", "body": "Thinking about selling my house", "direction": "inbound"},
		"contact": {
			"contactId": "contact_001",
			"firstName": "Maria",
			"tags": ["Needs Qualifying"],
			"customFields": {}
		}
	}`)

	evt, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, KindMessageReceived, evt.Kind)
	assert.Equal(t, "contact_001", evt.ContactID)
	assert.Equal(t, "loc_001", evt.LocationID)
	assert.Equal(t, "Thinking about selling my house", evt.MessageBody)
	assert.Equal(t, DirectionInbound, evt.MessageDirection)
	assert.Equal(t, []string{"Needs Qualifying"}, evt.ContactTags)
	assert.True(t, evt.IsContactMessage())
}

func TestParseWebhookTagUpdate(t *testing.T) {
	body := []byte(`{
		"type": "ContactTagUpdate",
		"contactId": "contact_002",
		"locationId": "loc_001",
		"tag": "Buyer-Lead",
		"contact": {"contactId": "contact_002", "tags": ["Buyer-Lead", "Website"]}
	}`)

	evt, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, KindTagApplied, evt.Kind)
	assert.Equal(t, "Buyer-Lead", evt.Tag)
	assert.False(t, evt.IsContactMessage())
}

func TestParseWebhookOutboundEcho(t *testing.T) {
	body := []byte(`{
		"type": "InboundMessage",
		"contactId": "contact_003",
		"locationId": "loc_001",
		"message": {"type": "SMS", "body": "Agent reply", "direction": "outbound"}
	}`)

	evt, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, DirectionOutbound, evt.MessageDirection)
	assert.False(t, evt.IsContactMessage(), "agent echoes must never trigger a bot")
}

func TestParseWebhookContactIDFallback(t *testing.T) {
	body := []byte(`{
		"type": "InboundMessage",
		"locationId": "loc_001",
		"message": {"body": "hi", "direction": "inbound"},
		"contact": {"contactId": "contact_004"}
	}`)

	evt, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Equal(t, "contact_004", evt.ContactID)
}

func TestParseWebhookErrors(t *testing.T) {
	_, err := ParseWebhook([]byte(`{"type": "InboundMessage", "locationId": "loc"}`))
	assert.ErrorIs(t, err, ErrMissingContact)

	_, err = ParseWebhook([]byte(`{"type": "SomethingElse", "contactId": "x"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestActionConstructors(t *testing.T) {
	assert.Equal(t, Action{Type: ActionAddTag, Tag: "Hot-Lead"}, AddTag("Hot-Lead"))
	assert.Equal(t, Action{Type: ActionRemoveTag, Tag: "Needs Qualifying"}, RemoveTag("Needs Qualifying"))
	assert.Equal(t, Action{Type: ActionUpdateCustomField, Field: "f1", Value: "650000"}, UpdateCustomField("f1", "650000"))

	wf := TriggerWorkflow("wf_123", map[string]any{"reason": "hot"})
	assert.Equal(t, ActionTriggerWorkflow, wf.Type)
	assert.Equal(t, "wf_123", wf.WorkflowID)
}
