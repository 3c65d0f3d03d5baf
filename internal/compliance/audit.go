package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditEventType represents the type of compliance event.
type AuditEventType string

const (
	// EventMessageBlocked is logged when the gate blocks bot output.
	EventMessageBlocked AuditEventType = "compliance.message_blocked"
	// EventOptOut is logged when a contact opts out of automation.
	EventOptOut AuditEventType = "compliance.opt_out"
	// EventDeliveryFailed is logged when outbound dispatch fails.
	EventDeliveryFailed AuditEventType = "dispatch.delivery_failed"
	// EventMappingSuppressed is logged when fail-closed mapping mode
	// suppresses canonical field writes.
	EventMappingSuppressed AuditEventType = "config.mapping_suppressed"
)

// AuditEvent represents an immutable compliance audit record.
type AuditEvent struct {
	ID            string          `json:"id"`
	EventType     AuditEventType  `json:"event_type"`
	LocationID    string          `json:"location_id"`
	ContactID     string          `json:"contact_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	BotMode       string          `json:"bot_mode,omitempty"`
	OriginalText  string          `json:"original_text,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditDetails contains event-specific details.
type AuditDetails struct {
	Violations      []string `json:"violations,omitempty"`
	ReplacementText string   `json:"replacement_text,omitempty"`
	OptOutPhrase    string   `json:"opt_out_phrase,omitempty"`
	FailedOperation string   `json:"failed_operation,omitempty"`
	FailureError    string   `json:"failure_error,omitempty"`
	MissingFields   []string `json:"missing_fields,omitempty"`
}

// AuditTrail persists compliance audit events.
type AuditTrail struct {
	db *sql.DB
}

// NewAuditTrail creates a new audit trail over the shared database.
func NewAuditTrail(db *sql.DB) *AuditTrail {
	return &AuditTrail{db: db}
}

// LogEvent records a compliance audit event.
func (t *AuditTrail) LogEvent(ctx context.Context, event AuditEvent) error {
	if t == nil || t.db == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO compliance_audit_events (
			id, event_type, location_id, contact_id, correlation_id,
			bot_mode, original_text, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := t.db.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.LocationID,
		nullString(event.ContactID),
		nullString(event.CorrelationID),
		nullString(event.BotMode),
		nullString(event.OriginalText),
		event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("compliance: failed to log audit event: %w", err)
	}
	return nil
}

// LogBlocked records a gate block together with every violation.
func (t *AuditTrail) LogBlocked(ctx context.Context, locationID, contactID, correlationID, mode, original string, result Result, replacement string) error {
	details := AuditDetails{
		Violations:      result.Violations,
		ReplacementText: replacement,
	}
	detailsJSON, _ := json.Marshal(details)

	return t.LogEvent(ctx, AuditEvent{
		EventType:     EventMessageBlocked,
		LocationID:    locationID,
		ContactID:     contactID,
		CorrelationID: correlationID,
		BotMode:       mode,
		OriginalText:  original,
		Details:       detailsJSON,
	})
}

// LogOptOut records a terminal opt-out transition.
func (t *AuditTrail) LogOptOut(ctx context.Context, locationID, contactID, correlationID, phrase string) error {
	details := AuditDetails{OptOutPhrase: phrase}
	detailsJSON, _ := json.Marshal(details)

	return t.LogEvent(ctx, AuditEvent{
		EventType:     EventOptOut,
		LocationID:    locationID,
		ContactID:     contactID,
		CorrelationID: correlationID,
		Details:       detailsJSON,
	})
}

// LogDeliveryFailure records an outbound dispatch failure.
func (t *AuditTrail) LogDeliveryFailure(ctx context.Context, locationID, contactID, operation string, failure error) error {
	details := AuditDetails{FailedOperation: operation}
	if failure != nil {
		details.FailureError = failure.Error()
	}
	detailsJSON, _ := json.Marshal(details)

	return t.LogEvent(ctx, AuditEvent{
		EventType:  EventDeliveryFailed,
		LocationID: locationID,
		ContactID:  contactID,
		Details:    detailsJSON,
	})
}

// LogMappingSuppressed records qualification fields dropped because no
// CRM custom-field id is configured for them.
func (t *AuditTrail) LogMappingSuppressed(ctx context.Context, locationID, contactID, correlationID string, missing []string) error {
	details := AuditDetails{MissingFields: missing}
	detailsJSON, _ := json.Marshal(details)

	return t.LogEvent(ctx, AuditEvent{
		EventType:     EventMappingSuppressed,
		LocationID:    locationID,
		ContactID:     contactID,
		CorrelationID: correlationID,
		Details:       detailsJSON,
	})
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
