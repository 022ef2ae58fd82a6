package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"billing-reconciler/internal/domain/model"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/infra/metrics"
	"billing-reconciler/internal/infra/worker"
)

var _ adapter.NotificationSender = (*Dispatcher)(nil)

// Dispatcher hands notifications to a worker pool so the caller never waits
// on the transport. Send only fails when the request could not be queued.
type Dispatcher struct {
	next     adapter.NotificationSender
	users    adapter.UserDirectory
	messages MessageRenderer
	pool     *worker.Pool
	timeout  time.Duration
	log      *zerolog.Logger
}

// MessageRenderer turns a notification into user-facing text.
type MessageRenderer interface {
	Render(n model.NotificationRequest) string
}

func NewDispatcher(next adapter.NotificationSender, users adapter.UserDirectory, pool *worker.Pool, timeout time.Duration, logger *zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "NotificationDispatcher").Logger()
	return &Dispatcher{next: next, users: users, pool: pool, timeout: timeout, log: &l}
}

// WithMessages fills Message on every request that arrives without one.
func (d *Dispatcher) WithMessages(r MessageRenderer) *Dispatcher {
	d.messages = r
	return d
}

func (d *Dispatcher) Send(_ context.Context, n model.NotificationRequest) error {
	err := d.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return d.deliver(ctx, n)
	})
	if err != nil {
		metrics.IncNotification(string(n.Kind), "dropped")
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, n model.NotificationRequest) error {
	if n.Email == "" && d.users != nil {
		if u, err := d.users.Lookup(ctx, n.UserID); err == nil && u != nil {
			n.Email = u.Email
		} else if err != nil {
			d.log.Debug().Err(err).Str("user_id", n.UserID).Msg("user lookup failed")
		}
	}
	if n.Message == "" && d.messages != nil {
		n.Message = d.messages.Render(n)
	}
	if err := d.next.Send(ctx, n); err != nil {
		metrics.IncNotification(string(n.Kind), "failed")
		d.log.Warn().Err(err).Str("subscription_id", n.SubscriptionID).Str("kind", string(n.Kind)).Msg("notification delivery failed")
		return err
	}
	metrics.IncNotification(string(n.Kind), "sent")
	return nil
}
