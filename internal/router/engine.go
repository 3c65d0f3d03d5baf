package router

import (
	"context"

	"github.com/harborhomes/leadrouter/internal/contacts"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/routing"
)

// Classification is the bot engine's temperature read on the lead.
type Classification string

const (
	ClassificationHot  Classification = "hot"
	ClassificationWarm Classification = "warm"
	ClassificationCold Classification = "cold"
)

// EngineRequest is everything a bot engine may inspect for one turn.
// The context is read-only from the engine's point of view; extracted
// fields come back through EngineResult.Preferences and are merged by
// the router.
type EngineRequest struct {
	ContactID   string
	LocationID  string
	UserMessage string
	Mode        routing.Mode
	Context     *contacts.Context
}

// EngineResult is the opaque collaborator output: a reply, raw CRM
// actions, a temperature classification, and any qualification fields
// the engine extracted from the turn.
type EngineResult struct {
	Message        string
	Actions        []events.Action
	Classification Classification
	HandoffSignals map[string]any
	Preferences    map[string]any

	// Scripted marks tone-engine output subject to the single-segment
	// SMS ceiling. Assembled responses get two segments.
	Scripted bool

	// ProposedSlots, when set, opens a pending appointment awaiting the
	// contact's numeric selection.
	ProposedSlots []contacts.SlotOption
}

// BotEngine produces one conversational turn. Engines must be stateless
// across calls; everything they need arrives in the request.
type BotEngine interface {
	ProcessResponse(ctx context.Context, req EngineRequest) (*EngineResult, error)
}
