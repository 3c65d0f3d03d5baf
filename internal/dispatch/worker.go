package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harborhomes/leadrouter/internal/messaging"
	"github.com/harborhomes/leadrouter/internal/observability/metrics"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

const (
	defaultWorkers          = 2
	defaultReceiveWait      = 2  // seconds
	defaultReceiveMax       = 5  // jobs
	maxReceiveWaitSeconds   = 20 // SQS limit
	maxReceiveBatchMessages = 10
)

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
}

// WorkerOption configures the pool.
type WorkerOption func(*workerConfig)

// WithWorkerCount overrides the number of queue polling goroutines.
func WithWorkerCount(workers int) WorkerOption {
	return func(cfg *workerConfig) {
		if workers > 0 {
			cfg.workers = workers
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait time for dequeue calls.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxReceiveWaitSeconds {
			seconds = maxReceiveWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize overrides how many jobs each poll should return.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchMessages {
			size = maxReceiveBatchMessages
		}
		cfg.receiveBatchSize = size
	}
}

// Worker drains delivery jobs off the queue and hands them to the
// outbound dispatcher. Jobs are fire-and-forget: the dispatcher already
// converts failures into CRM tags, so the worker settles every delivery
// exactly once, poison or not.
type Worker struct {
	queue      jobQueue
	dispatcher *messaging.Dispatcher
	metrics    *metrics.DispatchMetrics
	logger     *logging.Logger

	cfg workerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker starts the polling goroutines immediately.
func NewWorker(queue jobQueue, dispatcher *messaging.Dispatcher, dm *metrics.DispatchMetrics, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if dispatcher == nil {
		panic("dispatch: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkers,
		receiveWaitSecs:  defaultReceiveWait,
		receiveBatchSize: defaultReceiveMax,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		queue:      queue,
		dispatcher: dispatcher,
		metrics:    dm,
		logger:     logger,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(i + 1)
	}

	return w
}

// Shutdown stops the polling goroutines and waits for in-flight jobs.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (w *Worker) run(workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		deliveries, err := w.queue.Dequeue(w.ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to dequeue dispatch jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, d := range deliveries {
			w.handleDelivery(d)
		}
	}
}

func (w *Worker) handleDelivery(d delivery) {
	started := time.Now()

	if d.err != nil {
		w.logger.Error("dropping undecodable dispatch job", "error", d.err)
		w.settle(d.receiptHandle)
		w.metrics.ObserveJob("decode_error", time.Since(started).Seconds())
		return
	}

	w.process(d.job)
	w.settle(d.receiptHandle)
	w.metrics.ObserveJob("processed", time.Since(started).Seconds())
}

func (w *Worker) process(job Job) {
	ctx := w.ctx

	if job.Message != "" {
		w.dispatcher.SendMessage(ctx, job.LocationID, job.ContactID, job.Message, job.Channel)
	}
	if len(job.Actions) > 0 {
		w.dispatcher.ApplyActions(ctx, job.LocationID, job.ContactID, job.Actions)
	}
	if job.VoiceCall != nil {
		call := *job.VoiceCall
		call.ContactID = job.ContactID
		w.dispatcher.StartOutboundCall(ctx, job.LocationID, call)
	}

	w.logger.Info("dispatch job processed",
		"job_id", job.ID,
		"contact_id", job.ContactID,
		"correlation_id", job.CorrelationID,
		"actions", len(job.Actions),
		"has_message", job.Message != "",
		"has_voice_call", job.VoiceCall != nil,
	)
}

// settle removes the delivery from the queue with a fresh timeout, so a
// shutdown mid-job still acks what was processed.
func (w *Worker) settle(receiptHandle string) {
	ackCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Ack(ackCtx, receiptHandle); err != nil {
		w.logger.Error("failed to settle dispatch job", "error", err)
	}
}
