package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/harborhomes/leadrouter/pkg/logging"
)

// Publisher enqueues delivery jobs for the worker pool. It is the only
// write path onto the dispatch queue.
type Publisher struct {
	queue  jobQueue
	logger *logging.Logger
}

// NewPublisher wires a publisher onto the supplied queue.
func NewPublisher(queue jobQueue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue pushes the job onto the queue. The job ID is assigned here
// when the caller left it empty.
func (p *Publisher) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.ContactID == "" {
		return "", fmt.Errorf("dispatch: job requires a contact id")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("dispatch: failed to enqueue job: %w", err)
	}
	p.logger.Debug("dispatch job enqueued",
		"job_id", job.ID,
		"contact_id", job.ContactID,
		"correlation_id", job.CorrelationID,
		"actions", len(job.Actions),
	)
	return job.ID, nil
}
