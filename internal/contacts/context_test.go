package contacts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePreferencesNonDestructive(t *testing.T) {
	c := NewContext()
	c.MergePreferences(map[string]any{
		"price_expectation": "650000",
		"motivation":        "relocating",
	})

	c.MergePreferences(map[string]any{
		"price_expectation": nil,
		"motivation":        "",
		"timeline_days":     30,
	})

	assert.Equal(t, "650000", c.BotPreferences["price_expectation"], "nil update must not clear a set value")
	assert.Equal(t, "relocating", c.BotPreferences["motivation"], "empty string must not clear a set value")
	assert.Equal(t, 30, c.BotPreferences["timeline_days"])
}

func TestMergePreferencesOverwritesWithRealValues(t *testing.T) {
	c := NewContext()
	c.MergePreferences(map[string]any{"timeline_days": 90})
	c.MergePreferences(map[string]any{"timeline_days": 14})
	assert.Equal(t, 14, c.BotPreferences["timeline_days"])
}

func TestMergePreferencesSkipsEmptyCollections(t *testing.T) {
	c := NewContext()
	c.MergePreferences(map[string]any{"neighborhoods": []any{"Alta Loma"}})
	c.MergePreferences(map[string]any{
		"neighborhoods": []any{},
		"amenities":     map[string]any{},
		"":              "ignored",
	})
	assert.Equal(t, []any{"Alta Loma"}, c.BotPreferences["neighborhoods"])
	assert.NotContains(t, c.BotPreferences, "amenities")
	assert.NotContains(t, c.BotPreferences, "")
}

func TestMergePreferencesNilReceiverMap(t *testing.T) {
	c := &Context{}
	c.MergePreferences(map[string]any{"motivation": "downsizing"})
	assert.Equal(t, "downsizing", c.BotPreferences["motivation"])
}

func TestAppendMessageCapsHistory(t *testing.T) {
	c := NewContext()
	for i := 0; i < maxHistoryMessages+10; i++ {
		c.AppendMessage("user", fmt.Sprintf("message %d", i))
	}
	assert.Len(t, c.ConversationHistory, maxHistoryMessages)
	assert.Equal(t, fmt.Sprintf("message %d", 10), c.ConversationHistory[0].Content)
}

func TestAppendMessageIgnoresBlank(t *testing.T) {
	c := NewContext()
	c.AppendMessage("assistant", "   ")
	assert.Empty(t, c.ConversationHistory)
}
