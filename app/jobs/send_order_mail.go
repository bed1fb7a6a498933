// Package jobs holds the queued background jobs.
package jobs

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/foodie/app/notifications"
	"github.com/shashiranjanraj/foodie/app/repositories"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/mail"
	"github.com/shashiranjanraj/foodie/pkg/notification"
	"github.com/shashiranjanraj/foodie/pkg/queue"
)

// SendOrderMail notifies the customer (and the kitchen for new orders)
// about an order event. The order is reloaded so the message shows its
// current state.
type SendOrderMail struct {
	Event   string `json:"event"`
	OrderID string `json:"order_id"`

	orders *repositories.OrderRepository
}

func (*SendOrderMail) Name() string { return "order.mail" }

func (j *SendOrderMail) Handle(ctx context.Context) error {
	if j.orders == nil {
		return errors.New("jobs: SendOrderMail has no order repository")
	}

	order, err := j.orders.FindByID(ctx, j.OrderID)
	if errors.Is(err, repositories.ErrNotFound) {
		logger.WithCtx(ctx).Warn("order mail skipped, order gone", "order_id", j.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	n := &notifications.OrderUpdate{
		Event:        j.Event,
		Order:        order,
		MailEnabled:  mail.Configured(),
		SlackEnabled: notification.SlackConfigured(),
	}
	if len(n.Via()) == 0 {
		return nil
	}
	return notification.Send(ctx, order.Email, n)
}

// Register makes the queue able to decode the jobs of this package.
func Register(orders *repositories.OrderRepository) {
	queue.Register(func() queue.Job { return &SendOrderMail{orders: orders} })
}

// NewSendOrderMail builds a job ready to run inline, mostly for tests.
func NewSendOrderMail(orders *repositories.OrderRepository, event, orderID string) *SendOrderMail {
	return &SendOrderMail{Event: event, OrderID: orderID, orders: orders}
}
