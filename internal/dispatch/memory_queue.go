package dispatch

import (
	"context"
	"time"
)

// MemoryQueue is the development twin of the SQS transport: jobs move
// through a typed buffered channel, so nothing is serialized, nothing
// is redelivered, and nothing survives a restart.
type MemoryQueue struct {
	jobs chan Job
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{jobs: make(chan Job, buffer)}
}

// Enqueue hands the job to the channel, blocking until there is room or
// ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue waits up to waitSeconds for the first job, then drains
// whatever else is immediately available up to maxJobs.
func (q *MemoryQueue) Dequeue(ctx context.Context, maxJobs, waitSeconds int) ([]delivery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxJobs <= 0 {
		maxJobs = 1
	}

	var first Job
	if waitSeconds > 0 {
		timer := time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case first = <-q.jobs:
		}
	} else {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case first = <-q.jobs:
		}
	}

	out := []delivery{{job: first, receiptHandle: first.ID}}
	for len(out) < maxJobs {
		select {
		case job := <-q.jobs:
			out = append(out, delivery{job: job, receiptHandle: job.ID})
		default:
			return out, nil
		}
	}
	return out, nil
}

// Ack is a no-op: receiving from the channel already consumed the job.
func (q *MemoryQueue) Ack(context.Context, string) error {
	return nil
}
