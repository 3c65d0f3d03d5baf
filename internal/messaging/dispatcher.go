package messaging

import (
	"context"
	"time"

	"github.com/harborhomes/leadrouter/internal/compliance"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/voice"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

// CRMClient is the consumer-side view of the CRM collaborator. Every
// method is network-bound and fallible.
type CRMClient interface {
	SendMessage(ctx context.Context, contactID, text, channel string) error
	AddTags(ctx context.Context, contactID string, tags []string) error
	RemoveTags(ctx context.Context, contactID string, tags []string) error
	UpdateCustomField(ctx context.Context, contactID, field, value string) error
	TriggerWorkflow(ctx context.Context, contactID, workflowID string) error
}

type voiceCaller interface {
	StartCall(ctx context.Context, req voice.CallRequest) (string, error)
}

const (
	defaultVoiceAttempts  = 3
	defaultVoiceBaseDelay = time.Second
)

// Dispatcher wraps the CRM client in a safe wrapper: failures are
// logged and turn into a Delivery-Failed tag, never an error back into
// the request path.
type Dispatcher struct {
	crm    CRMClient
	voice  voiceCaller
	audit  *compliance.AuditTrail
	logger *logging.Logger

	voiceAttempts  int
	voiceBaseDelay time.Duration
}

func NewDispatcher(crm CRMClient, logger *logging.Logger) *Dispatcher {
	if crm == nil {
		panic("messaging: CRM client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		crm:            crm,
		logger:         logger,
		voiceAttempts:  defaultVoiceAttempts,
		voiceBaseDelay: defaultVoiceBaseDelay,
	}
}

// WithVoiceClient enables outbound voice handoffs.
func (d *Dispatcher) WithVoiceClient(client voiceCaller) *Dispatcher {
	d.voice = client
	return d
}

// WithAuditTrail records delivery failures for later review.
func (d *Dispatcher) WithAuditTrail(trail *compliance.AuditTrail) *Dispatcher {
	d.audit = trail
	return d
}

// WithVoiceRetry overrides the attempt count and base delay.
func (d *Dispatcher) WithVoiceRetry(attempts int, baseDelay time.Duration) *Dispatcher {
	if attempts > 0 {
		d.voiceAttempts = attempts
	}
	if baseDelay > 0 {
		d.voiceBaseDelay = baseDelay
	}
	return d
}

// SendMessage delivers outbound text. On failure the contact is tagged
// Delivery-Failed; a failure of that tagging attempt is logged and
// swallowed.
func (d *Dispatcher) SendMessage(ctx context.Context, locationID, contactID, text, channel string) {
	if text == "" {
		return
	}
	if err := d.crm.SendMessage(ctx, contactID, text, channel); err != nil {
		d.handleFailure(ctx, locationID, contactID, "send_message", err)
	}
}

// ApplyActions executes CRM mutations in order. A failed action tags
// the contact once and the remaining actions still run.
func (d *Dispatcher) ApplyActions(ctx context.Context, locationID, contactID string, actions []events.Action) {
	tagged := false
	for _, action := range actions {
		var err error
		switch action.Type {
		case events.ActionAddTag:
			err = d.crm.AddTags(ctx, contactID, []string{action.Tag})
		case events.ActionRemoveTag:
			err = d.crm.RemoveTags(ctx, contactID, []string{action.Tag})
		case events.ActionUpdateCustomField:
			err = d.crm.UpdateCustomField(ctx, contactID, action.Field, action.Value)
		case events.ActionTriggerWorkflow:
			err = d.crm.TriggerWorkflow(ctx, contactID, action.WorkflowID)
		default:
			d.logger.Warn("skipping unknown action type", "type", string(action.Type), "contact_id", contactID)
			continue
		}
		if err != nil {
			if tagged {
				d.logger.Error("crm action failed", "error", err, "action", string(action.Type), "contact_id", contactID)
				continue
			}
			d.handleFailure(ctx, locationID, contactID, string(action.Type), err)
			tagged = true
		}
	}
}

// StartOutboundCall attempts a voice handoff with bounded exponential
// backoff (1s, 2s, 4s by default). On exhaustion the contact is tagged
// Voice-Handoff-Failed and a structured log event is emitted so a human
// can follow up.
func (d *Dispatcher) StartOutboundCall(ctx context.Context, locationID string, req voice.CallRequest) {
	if d.voice == nil {
		d.logger.Warn("voice handoff requested but no voice client configured", "contact_id", req.ContactID)
		return
	}

	delay := d.voiceBaseDelay
	var lastErr error
	for attempt := 1; attempt <= d.voiceAttempts; attempt++ {
		callID, err := d.voice.StartCall(ctx, req)
		if err == nil {
			d.logger.Info("voice handoff started", "contact_id", req.ContactID, "call_id", callID, "attempt", attempt)
			return
		}
		lastErr = err
		d.logger.Warn("voice call attempt failed", "error", err, "contact_id", req.ContactID, "attempt", attempt)

		if attempt == d.voiceAttempts {
			break
		}
		select {
		case <-ctx.Done():
			d.logger.Warn("voice handoff cancelled", "contact_id", req.ContactID)
			return
		case <-time.After(delay):
		}
		delay *= 2
	}

	d.logger.Error("voice handoff exhausted all attempts",
		"contact_id", req.ContactID,
		"attempts", d.voiceAttempts,
		"error", lastErr,
	)
	if err := d.crm.AddTags(ctx, req.ContactID, []string{events.TagVoiceHandoffFailed}); err != nil {
		d.logger.Error("failed to tag voice handoff failure", "error", err, "contact_id", req.ContactID)
	}
	if d.audit != nil {
		_ = d.audit.LogDeliveryFailure(ctx, locationID, req.ContactID, "voice_handoff", lastErr)
	}
}

func (d *Dispatcher) handleFailure(ctx context.Context, locationID, contactID, operation string, failure error) {
	d.logger.Error("outbound dispatch failed", "error", failure, "operation", operation, "contact_id", contactID)
	if err := d.crm.AddTags(ctx, contactID, []string{events.TagDeliveryFailed}); err != nil {
		d.logger.Error("failed to tag delivery failure", "error", err, "contact_id", contactID)
	}
	if d.audit != nil {
		_ = d.audit.LogDeliveryFailure(ctx, locationID, contactID, operation, failure)
	}
}
