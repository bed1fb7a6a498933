// Package listeners connects order events to the websocket feed, Kafka and
// the mail queue.
package listeners

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shashiranjanraj/foodie/app/events"
	"github.com/shashiranjanraj/foodie/app/jobs"
	"github.com/shashiranjanraj/foodie/pkg/broker"
	"github.com/shashiranjanraj/foodie/pkg/event"
	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/queue"
	"github.com/shashiranjanraj/foodie/pkg/ws"
)

const publishTimeout = 5 * time.Second

// Feed receives the JSON of every order event. *ws.Hub satisfies it.
type Feed interface {
	Publish(msg []byte) bool
}

var _ Feed = (*ws.Hub)(nil)

// Register subscribes the listeners on bus. A nil feed or publisher skips
// that listener; the mail queue is always subscribed.
func Register(bus *event.Bus, feed Feed, pub broker.Publisher) {
	for _, name := range events.All {
		if feed != nil {
			bus.Listen(name, toFeed(feed))
		}
		if pub != nil {
			bus.Listen(name, toBroker(pub))
		}
		bus.Listen(name, toMailQueue)
	}
}

func decode(ctx context.Context, payload any) (events.OrderEvent, []byte, bool) {
	ev, ok := payload.(events.OrderEvent)
	if !ok || ev.Order == nil {
		logger.WithCtx(ctx).Warn("listeners: unexpected payload", "type", payload)
		return events.OrderEvent{}, nil, false
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		logger.WithCtx(ctx).Error("listeners: marshal event", "event", ev.Name, "error", err)
		return events.OrderEvent{}, nil, false
	}
	return ev, raw, true
}

func toFeed(feed Feed) event.Handler {
	return func(ctx context.Context, payload any) {
		ev, raw, ok := decode(ctx, payload)
		if ok && !feed.Publish(raw) {
			logger.WithCtx(ctx).Debug("listeners: feed dropped event", "event", ev.Name, "order_id", ev.Order.ID)
		}
	}
}

// toBroker keys messages by order id so one order's events stay ordered
// on a single partition.
func toBroker(pub broker.Publisher) event.Handler {
	return func(ctx context.Context, payload any) {
		ev, raw, ok := decode(ctx, payload)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, ev.Order.ID, ev.Name, raw); err != nil {
			logger.WithCtx(ctx).Error("listeners: kafka publish failed", "event", ev.Name, "order_id", ev.Order.ID, "error", err)
		}
	}
}

func toMailQueue(ctx context.Context, payload any) {
	ev, ok := payload.(events.OrderEvent)
	if !ok || ev.Order == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := queue.Dispatch(ctx, &jobs.SendOrderMail{Event: ev.Name, OrderID: ev.Order.ID}); err != nil {
		logger.WithCtx(ctx).Error("listeners: queue order mail", "event", ev.Name, "order_id", ev.Order.ID, "error", err)
	}
}
