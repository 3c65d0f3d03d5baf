// Package contacts holds the per-contact conversation state and its
// Redis-backed store.
package contacts

import (
	"strings"
	"time"
)

// Ghost state values mirrored from the tracker into the context blob.
const (
	GhostActive  = "active"
	GhostGhosted = "ghosted"
)

const maxHistoryMessages = 50

// ChatMessage is one turn of the qualification conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SlotOption is a calendar slot a bot proposed to the contact.
type SlotOption struct {
	Start      time.Time `json:"start"`
	Label      string    `json:"label"`
	CalendarID string    `json:"calendar_id,omitempty"`
}

// PendingAppointment tracks a slot proposal awaiting the contact's
// selection. A nil pointer on the context means no proposal is pending.
type PendingAppointment struct {
	Options   []SlotOption `json:"options"`
	Attempts  int          `json:"attempts"`
	FlowTag   string       `json:"flow_tag,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// MaxAppointmentAttempts bounds slot re-prompts before escalating to
// manual scheduling.
const MaxAppointmentAttempts = 2

// Context is the per-(contact, location) conversation state. It is
// created on first event for a contact and mutated by the event router
// after every processed event; it is never explicitly deleted.
type Context struct {
	ConversationHistory []ChatMessage       `json:"conversation_history"`
	BotPreferences      map[string]any      `json:"bot_preferences"`
	PendingAppointment  *PendingAppointment `json:"pending_appointment,omitempty"`
	GhostState          string              `json:"ghost_state"`
	FollowupSuppressed  bool                `json:"followup_suppressed"`
	LastBotInteraction  time.Time           `json:"last_bot_interaction"`
}

// NewContext returns the state used for a contact's first event.
func NewContext() *Context {
	return &Context{
		BotPreferences: make(map[string]any),
		GhostState:     GhostActive,
	}
}

// MergePreferences folds extracted qualification fields into the
// context. Updates merge, they never replace: a key that is already set
// is never overwritten with a nil or empty value. This rule is enforced
// here, centrally, and nowhere else.
func (c *Context) MergePreferences(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	if c.BotPreferences == nil {
		c.BotPreferences = make(map[string]any, len(updates))
	}
	for key, value := range updates {
		if key == "" || isEmptyValue(value) {
			continue
		}
		c.BotPreferences[key] = value
	}
}

// AppendMessage records a conversation turn, capping retained history.
func (c *Context) AppendMessage(role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	c.ConversationHistory = append(c.ConversationHistory, ChatMessage{Role: role, Content: content})
	if len(c.ConversationHistory) > maxHistoryMessages {
		c.ConversationHistory = c.ConversationHistory[len(c.ConversationHistory)-maxHistoryMessages:]
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
