package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/messaging"
)

type recordingCRM struct {
	mu        sync.Mutex
	sent      []string
	tags      []string
	workflows []string
}

func (c *recordingCRM) SendMessage(_ context.Context, _, text, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *recordingCRM) AddTags(_ context.Context, _ string, tags []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tags...)
	return nil
}

func (c *recordingCRM) RemoveTags(_ context.Context, _ string, _ []string) error { return nil }

func (c *recordingCRM) UpdateCustomField(_ context.Context, _, _, _ string) error { return nil }

func (c *recordingCRM) TriggerWorkflow(_ context.Context, _ string, workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workflows = append(c.workflows, workflowID)
	return nil
}

func (c *recordingCRM) snapshot() (sent, tags, workflows []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...), append([]string(nil), c.tags...), append([]string(nil), c.workflows...)
}

// stubQueue hands out one prepared batch and records acks, standing in
// for the SQS transport in poison-message tests.
type stubQueue struct {
	mu    sync.Mutex
	batch []delivery
	acked []string
}

func (q *stubQueue) Enqueue(context.Context, Job) error { return nil }

func (q *stubQueue) Dequeue(ctx context.Context, _, _ int) ([]delivery, error) {
	q.mu.Lock()
	out := q.batch
	q.batch = nil
	q.mu.Unlock()
	if out == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return out, nil
}

func (q *stubQueue) Ack(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, receiptHandle)
	return nil
}

func (q *stubQueue) ackedHandles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

func TestPublisherAssignsJobID(t *testing.T) {
	queue := NewMemoryQueue(4)
	publisher := NewPublisher(queue, nil)

	id, err := publisher.Enqueue(context.Background(), Job{ContactID: "contact_1", Message: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestPublisherRejectsMissingContact(t *testing.T) {
	queue := NewMemoryQueue(4)
	publisher := NewPublisher(queue, nil)

	_, err := publisher.Enqueue(context.Background(), Job{Message: "hi"})
	require.Error(t, err)
}

func TestWorkerProcessesJob(t *testing.T) {
	queue := NewMemoryQueue(4)
	crm := &recordingCRM{}
	dispatcher := messaging.NewDispatcher(crm, nil)
	worker := NewWorker(queue, dispatcher, nil, nil,
		WithWorkerCount(1),
		WithReceiveWaitSeconds(1),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, worker.Shutdown(ctx))
	}()

	publisher := NewPublisher(queue, nil)
	_, err := publisher.Enqueue(context.Background(), Job{
		ContactID:  "contact_1",
		LocationID: "loc_1",
		Message:    "Thanks for reaching out!",
		Channel:    "SMS",
		Actions: []events.Action{
			events.AddTag("Hot-Lead"),
			events.TriggerWorkflow("wf_hot_lead", nil),
		},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		sent, tags, workflows := crm.snapshot()
		return len(sent) == 1 && len(tags) == 1 && len(workflows) == 1
	}, 3*time.Second, 10*time.Millisecond)

	sent, tags, workflows := crm.snapshot()
	assert.Equal(t, []string{"Thanks for reaching out!"}, sent)
	assert.Equal(t, []string{"Hot-Lead"}, tags)
	assert.Equal(t, []string{"wf_hot_lead"}, workflows)
}

func TestWorkerSettlesPoisonDelivery(t *testing.T) {
	queue := &stubQueue{batch: []delivery{
		{receiptHandle: "poison_1", err: errors.New("dispatch: failed to decode job body")},
		{receiptHandle: "good_1", job: Job{ID: "job_1", ContactID: "contact_1", Message: "after the bad one"}},
	}}
	crm := &recordingCRM{}
	dispatcher := messaging.NewDispatcher(crm, nil)
	worker := NewWorker(queue, dispatcher, nil, nil,
		WithWorkerCount(1),
		WithReceiveWaitSeconds(0),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, worker.Shutdown(ctx))
	}()

	assert.Eventually(t, func() bool {
		sent, _, _ := crm.snapshot()
		return len(sent) == 1 && len(queue.ackedHandles()) == 2
	}, 3*time.Second, 10*time.Millisecond)

	sent, _, _ := crm.snapshot()
	assert.Equal(t, []string{"after the bad one"}, sent)
	assert.ElementsMatch(t, []string{"poison_1", "good_1"}, queue.ackedHandles())
}

func TestMemoryQueueDequeueTimesOut(t *testing.T) {
	queue := NewMemoryQueue(4)
	start := time.Now()
	deliveries, err := queue.Dequeue(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueBatchesAvailableJobs(t *testing.T) {
	queue := NewMemoryQueue(8)
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Enqueue(context.Background(), Job{ID: "job", ContactID: "contact_1"}))
	}

	deliveries, err := queue.Dequeue(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Len(t, deliveries, 2)

	deliveries, err = queue.Dequeue(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Len(t, deliveries, 1)
}
