package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/harborhomes/leadrouter/internal/cache"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

// GhostState marks whether a contact has gone quiet.
type GhostState string

const (
	GhostActive  GhostState = "active"
	GhostGhosted GhostState = "ghosted"
)

const defaultGhostTTL = 30 * 24 * time.Hour

// GhostTracker records ghosted/active state per contact.
//
// An external follow-up scheduler drives Active -> Ghosted; the event
// router drives Ghosted -> Active the moment a ghosted contact sends
// any inbound message, firing the unstale-lead workflow exactly once
// through the enrollment engine.
type GhostTracker struct {
	cache             cache.Store
	engine            *Engine
	unstaleWorkflowID string
	ttl               time.Duration
	logger            *logging.Logger
}

func NewGhostTracker(store cache.Store, engine *Engine, unstaleWorkflowID string, logger *logging.Logger) *GhostTracker {
	if store == nil {
		panic("workflows: cache store cannot be nil")
	}
	if engine == nil {
		panic("workflows: enrollment engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GhostTracker{
		cache:             store,
		engine:            engine,
		unstaleWorkflowID: unstaleWorkflowID,
		ttl:               defaultGhostTTL,
		logger:            logger,
	}
}

// WithTTL overrides the ghost-state retention window.
func (t *GhostTracker) WithTTL(ttl time.Duration) *GhostTracker {
	if ttl > 0 {
		t.ttl = ttl
	}
	return t
}

// State returns the stored ghost state, defaulting to Active.
func (t *GhostTracker) State(ctx context.Context, contactID string) (GhostState, error) {
	value, ok, err := t.cache.Get(ctx, ghostKey(contactID))
	if err != nil {
		return GhostActive, err
	}
	if !ok || GhostState(value) != GhostGhosted {
		return GhostActive, nil
	}
	return GhostGhosted, nil
}

// MarkGhosted is the entry point for the external follow-up scheduler.
func (t *GhostTracker) MarkGhosted(ctx context.Context, contactID string) error {
	if err := t.cache.Set(ctx, ghostKey(contactID), string(GhostGhosted), t.ttl); err != nil {
		return fmt.Errorf("workflows: failed to mark %s ghosted: %w", contactID, err)
	}
	return nil
}

// Reactivate flips a ghosted contact back to active with a fresh TTL
// and enrolls the unstale-lead workflow. The bool reports whether a
// reactivation actually happened.
func (t *GhostTracker) Reactivate(ctx context.Context, contactID string) ([]events.Action, bool, error) {
	state, err := t.State(ctx, contactID)
	if err != nil {
		return nil, false, fmt.Errorf("workflows: failed to read ghost state for %s: %w", contactID, err)
	}
	if state != GhostGhosted {
		return nil, false, nil
	}

	if err := t.cache.Set(ctx, ghostKey(contactID), string(GhostActive), t.ttl); err != nil {
		return nil, false, fmt.Errorf("workflows: failed to reactivate %s: %w", contactID, err)
	}

	actions := t.engine.Enroll(ctx, contactID, []Candidate{{
		WorkflowID: t.unstaleWorkflowID,
		Condition:  true,
		Reason:     "ghost_reactivated",
	}})
	t.logger.Info("ghosted contact reactivated", "contact_id", contactID, "unstale_triggered", len(actions) > 0)
	return actions, true, nil
}

func ghostKey(contactID string) string {
	return fmt.Sprintf("ghost:%s", contactID)
}
