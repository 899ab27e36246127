package application

import (
	"context"

	"github.com/AzielCF/az-admin/core/config"
	"github.com/AzielCF/az-admin/notify/domain"
	"github.com/AzielCF/az-admin/pkg/metrics"
	"github.com/AzielCF/az-admin/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher delivers notifications in the background. Send never blocks and
// never fails the caller: full queues and exhausted retries drop the message.
type Dispatcher struct {
	notifier domain.Notifier
	queue    *taskqueue.Queue
}

func NewDispatcher(notifier domain.Notifier, cfg config.NotifyConfig) *Dispatcher {
	q := taskqueue.New(taskqueue.Config{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
	})
	q.OnExhausted = func(job taskqueue.Job, err error) {
		metrics.Notifications.WithLabelValues("exhausted").Inc()
		logrus.WithError(err).WithField("user_id", job.Key).Warn("[NOTIFY] giving up on notification")
	}
	return &Dispatcher{notifier: notifier, queue: q}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Notify satisfies domain.Notifier by queueing the delivery.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) error {
	d.Send(n)
	return nil
}

// Send queues n for delivery and reports whether it was accepted. The id is
// fixed here so retries of the same job store one row.
func (d *Dispatcher) Send(n domain.Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	ok := d.queue.TryDispatch(taskqueue.Job{
		Key: n.UserID,
		Handler: func(ctx context.Context) error {
			if err := d.notifier.Notify(ctx, n); err != nil {
				return err
			}
			metrics.Notifications.WithLabelValues("delivered").Inc()
			return nil
		},
	})
	if !ok {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		logrus.WithField("user_id", n.UserID).Warn("[NOTIFY] queue full, notification dropped")
	}
	return ok
}

func (d *Dispatcher) Stats() taskqueue.Stats {
	return d.queue.Stats()
}
