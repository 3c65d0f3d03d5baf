package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harborhomes/leadrouter/internal/contacts"
	"github.com/harborhomes/leadrouter/internal/events"
)

// appointmentTurn is the scripted outcome of handling an inbound
// message while a slot proposal is pending.
type appointmentTurn struct {
	message string
	actions []events.Action
	// handled means the turn consumed the message and no bot engine
	// runs for this event.
	handled bool
}

// handlePendingAppointment resolves one inbound message against the
// contact's pending slot proposal. A numeric reply inside the option
// range selects that slot; anything else re-prompts until the attempt
// budget runs out, then the contact is escalated to manual scheduling.
// An expired proposal is dropped and the event flows to the bot engine
// as usual.
func handlePendingAppointment(c *contacts.Context, message string, now time.Time) appointmentTurn {
	pending := c.PendingAppointment
	if pending == nil {
		return appointmentTurn{}
	}
	if !pending.ExpiresAt.IsZero() && now.After(pending.ExpiresAt) {
		c.PendingAppointment = nil
		return appointmentTurn{}
	}

	if idx, ok := parseSlotSelection(message, len(pending.Options)); ok {
		selected := pending.Options[idx]
		var actions []events.Action
		if pending.FlowTag != "" {
			actions = append(actions, events.AddTag(pending.FlowTag))
		}
		c.PendingAppointment = nil
		return appointmentTurn{
			message: fmt.Sprintf("Perfect, you're confirmed for %s. Talk soon!", selected.Label),
			actions: actions,
			handled: true,
		}
	}

	// Attempts counts invalid replies; the contact gets a re-prompt for
	// each of the first MaxAppointmentAttempts, then escalates.
	pending.Attempts++
	if pending.Attempts > contacts.MaxAppointmentAttempts {
		c.PendingAppointment = nil
		return appointmentTurn{
			message: "No problem! One of our team members will reach out to find a time that works for you.",
			actions: []events.Action{events.AddTag(events.TagManualScheduling)},
			handled: true,
		}
	}

	return appointmentTurn{
		message: reprompt(pending.Options),
		handled: true,
	}
}

func parseSlotSelection(message string, optionCount int) (int, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(message), "."))
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	if n < 1 || n > optionCount {
		return 0, false
	}
	return n - 1, true
}

func reprompt(options []contacts.SlotOption) string {
	var b strings.Builder
	b.WriteString("Just reply with a number to pick a time: ")
	for i, opt := range options {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d) %s", i+1, opt.Label)
	}
	return b.String()
}
