// Package events defines the normalized inbound event model and the
// CRM mutation actions the router emits.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the webhook variant an event was normalized from.
type Kind string

const (
	KindTagApplied      Kind = "tag_applied"
	KindMessageReceived Kind = "message_received"
)

// Direction distinguishes contact messages from agent echoes.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// InboundEvent is the immutable, normalized form of a webhook delivery.
// It is constructed once per delivery and never mutated afterwards.
type InboundEvent struct {
	ContactID        string    `json:"contact_id"`
	LocationID       string    `json:"location_id"`
	Kind             Kind      `json:"kind"`
	Tag              string    `json:"tag,omitempty"`
	MessageBody      string    `json:"message_body,omitempty"`
	MessageDirection Direction `json:"message_direction,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	ContactTags      []string  `json:"contact_tags"`
}

// ghlWebhookPayload mirrors the GoHighLevel webhook body for both the
// message and tag variants.
type ghlWebhookPayload struct {
	Type       string `json:"type"`
	ContactID  string `json:"contactId"`
	LocationID string `json:"locationId"`
	Tag        string `json:"tag,omitempty"`
	Message    *struct {
		Type      string `json:"type"`
		Body      string `json:"body"`
		Direction string `json:"direction"`
	} `json:"message,omitempty"`
	Contact *struct {
		ContactID    string            `json:"contactId"`
		FirstName    string            `json:"firstName"`
		LastName     string            `json:"lastName"`
		Phone        string            `json:"phone"`
		Email        string            `json:"email"`
		Tags         []string          `json:"tags"`
		CustomFields map[string]string `json:"customFields"`
	} `json:"contact,omitempty"`
}

var (
	ErrMissingContact = errors.New("events: webhook missing contact id")
	ErrUnknownType    = errors.New("events: unknown webhook type")
)

// ParseWebhook normalizes a raw GHL webhook body into an InboundEvent.
func ParseWebhook(body []byte) (InboundEvent, error) {
	var payload ghlWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return InboundEvent{}, fmt.Errorf("events: decode webhook: %w", err)
	}

	evt := InboundEvent{
		ContactID:  strings.TrimSpace(payload.ContactID),
		LocationID: strings.TrimSpace(payload.LocationID),
	}
	if evt.ContactID == "" && payload.Contact != nil {
		evt.ContactID = strings.TrimSpace(payload.Contact.ContactID)
	}
	if evt.ContactID == "" {
		return InboundEvent{}, ErrMissingContact
	}
	if payload.Contact != nil {
		evt.ContactTags = payload.Contact.Tags
		evt.Phone = strings.TrimSpace(payload.Contact.Phone)
	}

	switch payload.Type {
	case "ContactTagUpdate", "TagApplied":
		evt.Kind = KindTagApplied
		evt.Tag = strings.TrimSpace(payload.Tag)
	case "InboundMessage", "OutboundMessage":
		evt.Kind = KindMessageReceived
		if payload.Message != nil {
			evt.MessageBody = payload.Message.Body
			evt.MessageDirection = Direction(strings.ToLower(payload.Message.Direction))
		}
		if evt.MessageDirection == "" {
			if payload.Type == "OutboundMessage" {
				evt.MessageDirection = DirectionOutbound
			} else {
				evt.MessageDirection = DirectionInbound
			}
		}
	default:
		return InboundEvent{}, fmt.Errorf("%w: %q", ErrUnknownType, payload.Type)
	}

	return evt, nil
}

// IsContactMessage reports whether the event is a message typed by the
// contact, as opposed to a tag change or an agent echo.
func (e InboundEvent) IsContactMessage() bool {
	return e.Kind == KindMessageReceived && e.MessageDirection != DirectionOutbound
}
