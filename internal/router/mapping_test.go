package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborhomes/leadrouter/internal/events"
)

func TestParseFieldMapping(t *testing.T) {
	m, err := ParseFieldMapping(`{"price_expectation":"field_abc","motivation":"field_def"}`)
	require.NoError(t, err)
	assert.Equal(t, "field_abc", m["price_expectation"])

	m, err = ParseFieldMapping("")
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = ParseFieldMapping("{broken")
	require.Error(t, err)
}

func TestMapPreferencesFailOpen(t *testing.T) {
	mapping := FieldMapping{"price_expectation": "field_price"}
	result := mapPreferences(map[string]any{
		"price_expectation": "650000",
		"motivation":        "relocation",
		"timeline_days":     float64(45),
	}, mapping, MappingFailOpen)

	assert.False(t, result.suppressed)
	assert.Equal(t, []string{"motivation", "timeline_days"}, result.missing)
	require.Len(t, result.actions, 1)
	assert.Equal(t, events.ActionUpdateCustomField, result.actions[0].Type)
	assert.Equal(t, "field_price", result.actions[0].Field)
	assert.Equal(t, "650000", result.actions[0].Value)
}

func TestMapPreferencesFailClosed(t *testing.T) {
	mapping := FieldMapping{"price_expectation": "field_price"}
	result := mapPreferences(map[string]any{
		"price_expectation": "650000",
		"motivation":        "relocation",
	}, mapping, MappingFailClosed)

	assert.True(t, result.suppressed)
	assert.Empty(t, result.actions)
	assert.Equal(t, []string{"motivation"}, result.missing)
}

func TestMapPreferencesSkipsEmptyAndStructured(t *testing.T) {
	mapping := FieldMapping{"price_expectation": "field_price", "notes": "field_notes"}
	result := mapPreferences(map[string]any{
		"price_expectation": "",
		"notes":             map[string]any{"nested": true},
	}, mapping, MappingFailOpen)

	assert.Empty(t, result.actions)
	assert.Empty(t, result.missing)
}

func TestDetectOptOut(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"STOP", true},
		{"please stop texting me", true},
		{"I'd like to unsubscribe", true},
		{"not interested, remove me", true},
		{"what's the next step?", false},
		{"sounds good, let's proceed", false},
	}
	for _, tc := range cases {
		_, got := detectOptOut(tc.message)
		assert.Equal(t, tc.want, got, "message %q", tc.message)
	}
}
