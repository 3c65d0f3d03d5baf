// Package workflows deduplicates CRM automation triggers so a replayed
// or repeated webhook never double-enrolls a contact.
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/harborhomes/leadrouter/internal/cache"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

const (
	defaultDedupTTL  = 30 * 24 * time.Hour
	workflowIDPrefix = 12
)

// Candidate pairs a workflow id with an already-evaluated trigger
// condition. A candidate with an empty workflow id is an unconfigured
// automation and produces nothing.
type Candidate struct {
	WorkflowID string
	Condition  bool
	Reason     string
	Data       map[string]any
}

// Engine turns candidates into at-most-once TriggerWorkflow actions.
//
// Dedup is read-decide-write against the cache store. Two concurrent
// deliveries for the same contact can both observe "not enrolled" and
// both fire; that race is inherent to this contract and is only closed
// when the engine is switched to atomic mode (SetNX).
type Engine struct {
	cache  cache.Store
	logger *logging.Logger
	ttl    time.Duration
	atomic bool
}

func NewEngine(store cache.Store, logger *logging.Logger) *Engine {
	if store == nil {
		panic("workflows: cache store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		cache:  store,
		logger: logger,
		ttl:    defaultDedupTTL,
	}
}

// WithTTL overrides the dedup window.
func (e *Engine) WithTTL(ttl time.Duration) *Engine {
	if ttl > 0 {
		e.ttl = ttl
	}
	return e
}

// WithAtomicDedup switches enrollment to SetNX-based dedup.
func (e *Engine) WithAtomicDedup(atomic bool) *Engine {
	e.atomic = atomic
	return e
}

// Enroll emits one TriggerWorkflow action per candidate whose condition
// holds and whose dedup key is not yet present. Each emitted trigger is
// recorded immediately so the next evaluation within the TTL window
// skips it.
func (e *Engine) Enroll(ctx context.Context, contactID string, candidates []Candidate) []events.Action {
	var actions []events.Action
	for _, c := range candidates {
		if !c.Condition || c.WorkflowID == "" {
			continue
		}
		key := Key(contactID, c.WorkflowID)

		if e.atomic {
			ok, err := e.cache.SetNX(ctx, key, "1", e.ttl)
			if err != nil {
				e.logger.Error("workflow dedup setnx failed", "error", err, "contact_id", contactID, "workflow_id", c.WorkflowID)
				continue
			}
			if !ok {
				continue
			}
			actions = append(actions, events.TriggerWorkflow(c.WorkflowID, c.Data))
			continue
		}

		_, enrolled, err := e.cache.Get(ctx, key)
		if err != nil {
			// A firing decision we cannot verify is skipped rather than
			// risked as a duplicate enrollment.
			e.logger.Error("workflow dedup read failed", "error", err, "contact_id", contactID, "workflow_id", c.WorkflowID)
			continue
		}
		if enrolled {
			continue
		}
		actions = append(actions, events.TriggerWorkflow(c.WorkflowID, c.Data))
		if err := e.cache.Set(ctx, key, "1", e.ttl); err != nil {
			e.logger.Error("workflow dedup write failed", "error", err, "contact_id", contactID, "workflow_id", c.WorkflowID)
		}
		e.logger.Info("workflow enrolled", "contact_id", contactID, "workflow_id", c.WorkflowID, "reason", c.Reason)
	}
	return actions
}

// Key derives the dedup key from the contact id and a stable prefix of
// the workflow id; the prefix bounds key length.
func Key(contactID, workflowID string) string {
	prefix := workflowID
	if len(prefix) > workflowIDPrefix {
		prefix = prefix[:workflowIDPrefix]
	}
	return fmt.Sprintf("wf:%s:%s", contactID, prefix)
}
