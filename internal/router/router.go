// Package router is the event orchestrator: it turns one normalized
// inbound CRM event into at most one reply and one set of CRM
// mutations, in a fixed order. Mode resolution, conversation state,
// bot invocation, compliance, enrollment dedup and dispatch each live
// in their own package; this one only sequences them.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harborhomes/leadrouter/internal/compliance"
	"github.com/harborhomes/leadrouter/internal/contacts"
	"github.com/harborhomes/leadrouter/internal/dispatch"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/messaging"
	"github.com/harborhomes/leadrouter/internal/observability/metrics"
	"github.com/harborhomes/leadrouter/internal/routing"
	"github.com/harborhomes/leadrouter/internal/voice"
	"github.com/harborhomes/leadrouter/internal/workflows"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

// Status summarizes how an event left the router.
type Status string

const (
	StatusIgnored     Status = "ignored"
	StatusDeactivated Status = "deactivated"
	StatusSkipped     Status = "skipped"
	StatusOptedOut    Status = "opted_out"
	StatusProcessed   Status = "processed"
	StatusError       Status = "error"
)

// Outcome reports what one event produced. The correlation id ties the
// webhook response, logs and audit rows together.
type Outcome struct {
	CorrelationID string
	Mode          routing.Mode
	Status        Status
	JobID         string
	Reply         string
	Actions       []events.Action
}

// Scripted reply used when a bot engine fails or none is wired for the
// resolved mode. The contact still hears back.
const safeModeReply = "Thanks for reaching out! Let me pull a few details together and I'll follow up with you shortly."

// Fixed acknowledgment for opt-out requests.
const optOutAck = "Understood, we'll stop messaging you. If anything changes down the road, just reach out."

var negativeSentimentKeywords = []string{
	"frustrated", "angry", "annoyed", "upset", "fed up", "waste of time",
}

var rejectedOfferKeywords = []string{
	"too low", "lowball", "low ball", "insulting", "way off", "not even close",
}

// Config carries the routing business rules the orchestrator applies.
type Config struct {
	Flags            routing.Flags
	BuyerTag         string
	LeadTag          string
	DeactivationTags []string

	HotLeadWorkflowID           string
	NegativeSentimentWorkflowID string
	RejectedOfferWorkflowID     string
	NewLeadWorkflowID           string

	FieldMapping FieldMapping
	MappingMode  MappingMode

	// VoiceAssistantID is attached to voice handoff jobs; when empty,
	// handoff signals fall back to tagging only.
	VoiceAssistantID string

	Channel string
}

type jobPublisher interface {
	Enqueue(ctx context.Context, job dispatch.Job) (string, error)
}

// Router sequences one event through resolve, state, engine, gate,
// enrollment and dispatch.
type Router struct {
	cfg       Config
	contacts  *contacts.Store
	workflows *workflows.Engine
	ghosts    *workflows.GhostTracker
	gate      *compliance.Gate
	audit     *compliance.AuditTrail
	publisher jobPublisher
	engines   map[routing.Mode]BotEngine
	metrics   *metrics.RouterMetrics
	logger    *logging.Logger
}

// New wires the orchestrator. The audit trail and metrics may be nil;
// everything else is required.
func New(cfg Config, store *contacts.Store, engine *workflows.Engine, ghosts *workflows.GhostTracker, gate *compliance.Gate, publisher jobPublisher, engines map[routing.Mode]BotEngine, logger *logging.Logger) *Router {
	if store == nil {
		panic("router: contact store cannot be nil")
	}
	if engine == nil {
		panic("router: workflow engine cannot be nil")
	}
	if ghosts == nil {
		panic("router: ghost tracker cannot be nil")
	}
	if gate == nil {
		panic("router: compliance gate cannot be nil")
	}
	if publisher == nil {
		panic("router: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Channel == "" {
		cfg.Channel = "SMS"
	}
	if cfg.MappingMode == "" {
		cfg.MappingMode = MappingFailOpen
	}
	return &Router{
		cfg:       cfg,
		contacts:  store,
		workflows: engine,
		ghosts:    ghosts,
		gate:      gate,
		publisher: publisher,
		engines:   engines,
		logger:    logger,
	}
}

// WithAuditTrail records opt-outs and compliance blocks to Postgres.
func (r *Router) WithAuditTrail(trail *compliance.AuditTrail) *Router {
	r.audit = trail
	return r
}

// WithMetrics attaches the Prometheus instruments.
func (r *Router) WithMetrics(m *metrics.RouterMetrics) *Router {
	r.metrics = m
	return r
}

// HandleEvent processes one inbound event end to end. An error return
// means the top-level handler should answer 5xx; a best-effort fallback
// reply has already been enqueued for the contact by then.
func (r *Router) HandleEvent(ctx context.Context, event events.InboundEvent) (*Outcome, error) {
	started := time.Now()
	outcome := &Outcome{
		CorrelationID: uuid.NewString(),
		Mode:          routing.ModeNone,
	}
	log := r.logger.With(
		"correlation_id", outcome.CorrelationID,
		"contact_id", event.ContactID,
		"location_id", event.LocationID,
		"kind", string(event.Kind),
	)
	defer func() {
		r.metrics.ObserveWebhookLatency(string(event.Kind), time.Since(started).Seconds())
		r.metrics.ObserveEvent(string(event.Kind), string(outcome.Status))
	}()

	// Agent echoes must never trigger bots.
	if event.Kind == events.KindMessageReceived && event.MessageDirection == events.DirectionOutbound {
		outcome.Status = StatusIgnored
		log.Debug("outbound echo ignored")
		return outcome, nil
	}

	contactCtx, created, err := r.contacts.Load(ctx, event.ContactID, event.LocationID)
	if err != nil {
		return r.fail(ctx, outcome, event, log, fmt.Errorf("router: load contact context: %w", err))
	}

	// Opt-out is terminal and runs before any bot-mode work.
	if event.IsContactMessage() {
		if phrase, ok := detectOptOut(event.MessageBody); ok {
			return r.handleOptOut(ctx, outcome, event, contactCtx, phrase, log)
		}
	}

	deactivate := routing.ShouldDeactivate(event.ContactTags, r.cfg.DeactivationTags)
	mode := routing.Resolve(event.ContactTags, deactivate, r.cfg.Flags, r.cfg.BuyerTag, r.cfg.LeadTag)
	outcome.Mode = mode
	r.metrics.ObserveMode(string(mode))

	// Any inbound message reactivates a ghosted contact, whether or not
	// a bot ends up running for it.
	var actions []events.Action
	reactivated := false
	if event.IsContactMessage() {
		ghostActions, ok, ghostErr := r.ghosts.Reactivate(ctx, event.ContactID)
		if ghostErr != nil {
			log.Error("ghost reactivation failed", "error", ghostErr)
		} else if ok {
			reactivated = true
			contactCtx.GhostState = contacts.GhostActive
			actions = append(actions, ghostActions...)
			log.Info("ghosted contact re-engaged")
		}
	}

	if mode == routing.ModeNone {
		if deactivate {
			outcome.Status = StatusDeactivated
			log.Info("contact deactivated, no bot runs")
		} else {
			outcome.Status = StatusSkipped
			log.Debug("no activation tag matched")
		}
		if reactivated {
			outcome.Actions = actions
			if len(actions) > 0 {
				jobID, pubErr := r.publisher.Enqueue(ctx, dispatch.Job{
					CorrelationID: outcome.CorrelationID,
					LocationID:    event.LocationID,
					ContactID:     event.ContactID,
					Channel:       r.cfg.Channel,
					Actions:       actions,
				})
				if pubErr != nil {
					log.Error("failed to enqueue reactivation actions", "error", pubErr)
				} else {
					outcome.JobID = jobID
				}
			}
			if saveErr := r.contacts.Save(ctx, event.ContactID, event.LocationID, contactCtx); saveErr != nil {
				log.Error("failed to save contact context", "error", saveErr)
			}
		}
		return outcome, nil
	}

	var (
		reply    string
		scripted bool
		result   *EngineResult
	)

	turn := appointmentTurn{}
	if event.IsContactMessage() {
		turn = handlePendingAppointment(contactCtx, event.MessageBody, time.Now())
	}

	switch {
	case turn.handled:
		reply = turn.message
		scripted = true
		actions = append(actions, turn.actions...)
	default:
		engine := r.engines[mode]
		if engine == nil {
			reply = safeModeReply
			scripted = true
			log.Error("no bot engine wired for mode", "mode", string(mode))
		} else {
			result, err = engine.ProcessResponse(ctx, EngineRequest{
				ContactID:   event.ContactID,
				LocationID:  event.LocationID,
				UserMessage: event.MessageBody,
				Mode:        mode,
				Context:     contactCtx,
			})
			if err != nil {
				// Extraction failures fall back to a scripted reply and
				// leave the stored context untouched by this turn.
				reply = safeModeReply
				scripted = true
				result = nil
				log.Error("bot engine failed, using safe-mode reply", "error", err)
			}
		}
	}

	if result != nil {
		reply = result.Message
		scripted = result.Scripted
		actions = append(actions, result.Actions...)

		contactCtx.MergePreferences(result.Preferences)

		mapped := mapPreferences(result.Preferences, r.cfg.FieldMapping, r.cfg.MappingMode)
		if len(mapped.missing) > 0 {
			log.Warn("canonical field mapping missing",
				"fields", strings.Join(mapped.missing, ","),
				"mode", string(r.cfg.MappingMode),
			)
			if r.audit != nil {
				_ = r.audit.LogMappingSuppressed(ctx, event.LocationID, event.ContactID, outcome.CorrelationID, mapped.missing)
			}
		}
		if mapped.suppressed {
			actions = append(actions, events.AddTag(events.TagCanonicalMappingMissing))
			reply = compliance.FallbackMessage("")
			scripted = true
		} else {
			actions = append(actions, mapped.actions...)
		}

		if len(result.ProposedSlots) > 0 {
			contactCtx.PendingAppointment = &contacts.PendingAppointment{
				Options:   result.ProposedSlots,
				FlowTag:   flowTagFromSignals(result.HandoffSignals),
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}
		}
	}

	if reply != "" {
		gateResult := r.gate.Audit(reply, compliance.AuditContext{Mode: string(mode), ContactID: event.ContactID})
		if gateResult.Status == compliance.StatusBlocked {
			original := reply
			reply = compliance.FallbackMessage(string(mode))
			scripted = true
			actions = append(actions, events.AddTag(events.TagComplianceAlert))
			r.metrics.ObserveComplianceBlock(gateResult.Reason)
			log.Warn("compliance gate blocked reply", "reason", gateResult.Reason)
			if r.audit != nil {
				if auditErr := r.audit.LogBlocked(ctx, event.LocationID, event.ContactID, outcome.CorrelationID, string(mode), original, gateResult, reply); auditErr != nil {
					log.Error("failed to record compliance block", "error", auditErr)
				}
			}
		}
	}

	enrolled := r.workflows.Enroll(ctx, event.ContactID, r.workflowCandidates(event, result, created))
	for range enrolled {
		r.metrics.ObserveEnrollment("enrolled")
	}
	actions = append(actions, enrolled...)

	maxChars := messaging.AssembledSMSMaxChars
	if scripted {
		maxChars = messaging.ScriptedSMSMaxChars
	}
	reply = messaging.Truncate(reply, maxChars)

	if event.IsContactMessage() {
		contactCtx.AppendMessage("user", event.MessageBody)
	}
	if reply != "" {
		contactCtx.AppendMessage("assistant", reply)
	}
	contactCtx.LastBotInteraction = time.Now()

	var voiceCall *voice.CallRequest
	if result != nil && wantsVoiceHandoff(result.HandoffSignals) {
		if r.cfg.VoiceAssistantID != "" && event.Phone != "" {
			voiceCall = &voice.CallRequest{
				Phone:       event.Phone,
				AssistantID: r.cfg.VoiceAssistantID,
			}
		} else {
			log.Warn("voice handoff requested but not configured",
				"has_assistant", r.cfg.VoiceAssistantID != "",
				"has_phone", event.Phone != "",
			)
		}
	}

	outcome.Reply = reply
	outcome.Actions = actions
	if reply != "" || len(actions) > 0 || voiceCall != nil {
		jobID, pubErr := r.publisher.Enqueue(ctx, dispatch.Job{
			CorrelationID: outcome.CorrelationID,
			LocationID:    event.LocationID,
			ContactID:     event.ContactID,
			Message:       reply,
			Channel:       r.cfg.Channel,
			Actions:       actions,
			VoiceCall:     voiceCall,
		})
		if pubErr != nil {
			return r.fail(ctx, outcome, event, log, fmt.Errorf("router: enqueue dispatch job: %w", pubErr))
		}
		outcome.JobID = jobID
	}

	// State saves after dispatch: the reply is already on its way out,
	// and the next event rebuilds from the last stored state on failure.
	if saveErr := r.contacts.Save(ctx, event.ContactID, event.LocationID, contactCtx); saveErr != nil {
		log.Error("failed to save contact context", "error", saveErr)
	}

	outcome.Status = StatusProcessed
	log.Info("event processed",
		"mode", string(mode),
		"job_id", outcome.JobID,
		"actions", len(actions),
		"reply_chars", len(reply),
	)
	return outcome, nil
}

func (r *Router) workflowCandidates(event events.InboundEvent, result *EngineResult, created bool) []workflows.Candidate {
	message := strings.ToLower(event.MessageBody)
	return []workflows.Candidate{
		{
			WorkflowID: r.cfg.HotLeadWorkflowID,
			Condition:  result != nil && result.Classification == ClassificationHot,
			Reason:     "hot_lead",
		},
		{
			WorkflowID: r.cfg.NegativeSentimentWorkflowID,
			Condition:  containsAny(message, negativeSentimentKeywords),
			Reason:     "negative_sentiment",
		},
		{
			WorkflowID: r.cfg.RejectedOfferWorkflowID,
			Condition:  containsAny(message, rejectedOfferKeywords),
			Reason:     "rejected_offer",
		},
		{
			WorkflowID: r.cfg.NewLeadWorkflowID,
			Condition:  created,
			Reason:     "new_lead",
		},
	}
}

// handleOptOut applies the terminal opt-out transition: suppression
// flags on the stored context, AI-Off/Do-Not-Contact tags, removal of
// automation tags present on the contact, and a single fixed ack. No
// bot engine runs. Reversal requires a manual tag change in the CRM.
func (r *Router) handleOptOut(ctx context.Context, outcome *Outcome, event events.InboundEvent, contactCtx *contacts.Context, phrase string, log *logging.Logger) (*Outcome, error) {
	contactCtx.FollowupSuppressed = true
	contactCtx.PendingAppointment = nil
	contactCtx.AppendMessage("user", event.MessageBody)
	contactCtx.AppendMessage("assistant", optOutAck)
	contactCtx.LastBotInteraction = time.Now()

	actions := []events.Action{
		events.AddTag(events.TagAIOff),
		events.AddTag(events.TagDoNotContact),
	}
	present := routing.NormalizeTags(event.ContactTags)
	for _, tag := range r.automationTags() {
		if _, ok := present[strings.ToLower(tag)]; ok {
			actions = append(actions, events.RemoveTag(tag))
		}
	}

	if r.audit != nil {
		if auditErr := r.audit.LogOptOut(ctx, event.LocationID, event.ContactID, outcome.CorrelationID, phrase); auditErr != nil {
			log.Error("failed to record opt-out", "error", auditErr)
		}
	}
	r.metrics.ObserveOptOut()

	jobID, pubErr := r.publisher.Enqueue(ctx, dispatch.Job{
		CorrelationID: outcome.CorrelationID,
		LocationID:    event.LocationID,
		ContactID:     event.ContactID,
		Message:       optOutAck,
		Channel:       r.cfg.Channel,
		Actions:       actions,
	})
	if pubErr != nil {
		return r.fail(ctx, outcome, event, log, fmt.Errorf("router: enqueue opt-out job: %w", pubErr))
	}

	if saveErr := r.contacts.Save(ctx, event.ContactID, event.LocationID, contactCtx); saveErr != nil {
		log.Error("failed to save opt-out context", "error", saveErr)
	}

	outcome.Status = StatusOptedOut
	outcome.JobID = jobID
	outcome.Reply = optOutAck
	outcome.Actions = actions
	log.Info("contact opted out", "phrase", phrase)
	return outcome, nil
}

// fail is the top-level recovery path: best-effort generic reply to the
// contact, then a structured error for the 5xx response. Nothing below
// the router is allowed to propagate past here.
func (r *Router) fail(ctx context.Context, outcome *Outcome, event events.InboundEvent, log *logging.Logger, err error) (*Outcome, error) {
	outcome.Status = StatusError
	log.Error("event processing failed", "error", err)

	if event.IsContactMessage() {
		if _, pubErr := r.publisher.Enqueue(ctx, dispatch.Job{
			CorrelationID: outcome.CorrelationID,
			LocationID:    event.LocationID,
			ContactID:     event.ContactID,
			Message:       compliance.FallbackMessage(""),
			Channel:       r.cfg.Channel,
		}); pubErr != nil {
			log.Error("failed to enqueue fallback reply", "error", pubErr)
		}
	}
	return outcome, err
}

func (r *Router) automationTags() []string {
	tags := []string{routing.SellerQualifyingTag, routing.SellerHitListTag}
	if r.cfg.BuyerTag != "" {
		tags = append(tags, r.cfg.BuyerTag)
	}
	if r.cfg.LeadTag != "" {
		tags = append(tags, r.cfg.LeadTag)
	}
	return tags
}

func containsAny(message string, keywords []string) bool {
	if message == "" {
		return false
	}
	for _, kw := range keywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

func flowTagFromSignals(signals map[string]any) string {
	if signals == nil {
		return ""
	}
	if v, ok := signals["flow_tag"].(string); ok {
		return v
	}
	return ""
}

func wantsVoiceHandoff(signals map[string]any) bool {
	if signals == nil {
		return false
	}
	v, ok := signals["voice_handoff"].(bool)
	return ok && v
}
