package models

import "fmt"

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	StatusPlaced         OrderStatus = "placed"
	StatusProcessing     OrderStatus = "processing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// PaymentStatus is the money state of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Event drives a transition.
type Event string

const (
	EventProcess  Event = "process"
	EventDispatch Event = "dispatch"
	EventDeliver  Event = "deliver"
	EventCancel   Event = "cancel"

	EventConfirm Event = "confirm"
	EventRefund  Event = "refund"
)

var fulfillment = map[OrderStatus]map[Event]OrderStatus{
	StatusPlaced: {
		EventProcess:  StatusProcessing,
		EventDispatch: StatusOutForDelivery,
		EventDeliver:  StatusDelivered,
		EventCancel:   StatusCancelled,
	},
	StatusProcessing: {
		EventDispatch: StatusOutForDelivery,
		EventDeliver:  StatusDelivered,
		EventCancel:   StatusCancelled,
	},
	StatusOutForDelivery: {
		EventDeliver: StatusDelivered,
		EventCancel:  StatusCancelled,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var payment = map[PaymentStatus]map[Event]PaymentStatus{
	PaymentPending:   {EventConfirm: PaymentSucceeded},
	PaymentSucceeded: {EventRefund: PaymentRefunded},
	PaymentRefunded:  {},
}

// IllegalTransitionError is returned when an event is not allowed from the
// current state.
type IllegalTransitionError struct {
	Machine string
	From    string
	Event   Event
}

func (e *IllegalTransitionError) Error() string {
	switch {
	case e.Machine == "order" && e.Event == EventCancel && e.From == string(StatusCancelled):
		return "Order is already cancelled"
	case e.Machine == "order" && e.Event == EventCancel && e.From == string(StatusDelivered):
		return "Cannot cancel a delivered order"
	}
	return fmt.Sprintf("cannot %s %s in state %q", e.Event, e.Machine, e.From)
}

// Next returns the status reached by ev, or an *IllegalTransitionError.
func (s OrderStatus) Next(ev Event) (OrderStatus, error) {
	if to, ok := fulfillment[s][ev]; ok {
		return to, nil
	}
	return s, &IllegalTransitionError{Machine: "order", From: string(s), Event: ev}
}

func (s OrderStatus) Valid() bool {
	_, ok := fulfillment[s]
	return ok
}

// Terminal reports whether no further fulfillment event is possible.
func (s OrderStatus) Terminal() bool { return len(fulfillment[s]) == 0 }

func (s PaymentStatus) Next(ev Event) (PaymentStatus, error) {
	if to, ok := payment[s][ev]; ok {
		return to, nil
	}
	return s, &IllegalTransitionError{Machine: "payment", From: string(s), Event: ev}
}

// EventFor returns the event that moves an order into target.
func EventFor(target OrderStatus) (Event, bool) {
	switch target {
	case StatusProcessing:
		return EventProcess, true
	case StatusOutForDelivery:
		return EventDispatch, true
	case StatusDelivered:
		return EventDeliver, true
	case StatusCancelled:
		return EventCancel, true
	}
	return "", false
}
