// Package dispatch moves outbound delivery work through a queue so the
// webhook path can acknowledge quickly and CRM writes happen off the
// request goroutine. The queue points at LocalStack SQS during
// development and AWS SQS in production without touching the handlers.
package dispatch

import (
	"context"

	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/voice"
)

// Job is one unit of outbound work: a reply to deliver, CRM mutations
// to apply, and optionally a voice call to place.
type Job struct {
	ID            string             `json:"id"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	LocationID    string             `json:"location_id"`
	ContactID     string             `json:"contact_id"`
	Message       string             `json:"message,omitempty"`
	Channel       string             `json:"channel,omitempty"`
	Actions       []events.Action    `json:"actions,omitempty"`
	VoiceCall     *voice.CallRequest `json:"voice_call,omitempty"`
}

// delivery pairs a dequeued job with the handle needed to settle it. A
// body that would not decode travels as err, so the worker can drop the
// poison message instead of re-receiving it forever.
type delivery struct {
	job           Job
	receiptHandle string
	err           error
}

// jobQueue is the transport the publisher writes to and the worker
// drains. Implementations own the wire codec; callers only ever see
// typed Jobs.
type jobQueue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context, maxJobs, waitSeconds int) ([]delivery, error)
	Ack(ctx context.Context, receiptHandle string) error
}
