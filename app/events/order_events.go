// Package events names the order events and their payload.
package events

import (
	"time"

	"github.com/shashiranjanraj/foodie/app/models"
)

const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	OrderCancelled     = "order.cancelled"
	OrderStatusChanged = "order.status_changed"
)

// All lists every order event, for listeners that subscribe to everything.
var All = []string{OrderCreated, OrderPaid, OrderCancelled, OrderStatusChanged}

// OrderEvent is the payload of every order event.
type OrderEvent struct {
	Name       string        `json:"event"`
	Order      *models.Order `json:"order"`
	Actor      string        `json:"actor"` // "owner" | "admin" | "system"
	OccurredAt time.Time     `json:"occurredAt"`
}

func New(name string, order *models.Order, actor string) OrderEvent {
	return OrderEvent{Name: name, Order: order, Actor: actor, OccurredAt: time.Now().UTC()}
}
