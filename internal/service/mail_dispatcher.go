package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelier-ops/atelier-api/pkg/config"
	"github.com/atelier-ops/atelier-api/pkg/jobs"
	"github.com/atelier-ops/atelier-api/pkg/mailer"
)

// MailDispatcher pushes transactional email through a background worker
// queue. Delivery is best-effort: a failed send never propagates back to
// the request that triggered it.
type MailDispatcher struct {
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewMailDispatcher wires a sender behind a retrying queue.
func NewMailDispatcher(sender mailer.Sender, cfg config.JobsConfig, metrics *MetricsService, logger *zap.Logger) *MailDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &MailDispatcher{metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mailer.Message)
		if !ok {
			logger.Error("mail queue received unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return sender.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the queue workers.
func (d *MailDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *MailDispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch enqueues a message. Errors are logged and swallowed.
func (d *MailDispatcher) Dispatch(msg mailer.Message) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "email",
		Payload: msg,
	})
	if err != nil {
		d.logger.Warn("failed to enqueue email", zap.String("to", msg.ToEmail), zap.Error(err))
		return
	}
	if d.metrics != nil {
		d.metrics.ObserveMailEnqueued()
	}
}
