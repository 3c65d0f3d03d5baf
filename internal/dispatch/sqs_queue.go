package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSQueue moves jobs over AWS/LocalStack SQS as JSON bodies. The codec
// lives here; a body that fails to decode is reported on its delivery
// so the worker can settle it as poison.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("dispatch: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("dispatch: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

func (q *SQSQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("dispatch: failed to encode job %s: %w", job.ID, err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to send job %s: %w", job.ID, err)
	}
	return nil
}

func (q *SQSQueue) Dequeue(ctx context.Context, maxJobs, waitSeconds int) ([]delivery, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxJobs),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to receive jobs: %w", err)
	}

	deliveries := make([]delivery, 0, len(output.Messages))
	for _, msg := range output.Messages {
		d := delivery{receiptHandle: aws.ToString(msg.ReceiptHandle)}
		if decodeErr := json.Unmarshal([]byte(aws.ToString(msg.Body)), &d.job); decodeErr != nil {
			d.err = fmt.Errorf("dispatch: failed to decode job body: %w", decodeErr)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

func (q *SQSQueue) Ack(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to settle job: %w", err)
	}
	return nil
}
