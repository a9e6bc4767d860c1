package domain

import (
	"errors"
	"fmt"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderShipped, OrderCompleted, OrderCancelled}

func (s OrderStatus) Valid() bool {
	for _, x := range OrderStatuses {
		if s == x {
			return true
		}
	}
	return false
}

// Terminal states accept no further actions.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

type Action string

const (
	ActionPay      Action = "pay"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
	ActorNone   Actor = ""
)

// Transition is one edge of the order state machine.
type Transition struct {
	Action Action
	From   OrderStatus
	To     OrderStatus
	Actor  Actor
}

// Cancellation is allowed from pending only; a paid order has to run to completion.
var transitions = map[Action]Transition{
	ActionPay:      {Action: ActionPay, From: OrderPending, To: OrderPaid, Actor: ActorBuyer},
	ActionShip:     {Action: ActionShip, From: OrderPaid, To: OrderShipped, Actor: ActorSeller},
	ActionComplete: {Action: ActionComplete, From: OrderShipped, To: OrderCompleted, Actor: ActorBuyer},
	ActionCancel:   {Action: ActionCancel, From: OrderPending, To: OrderCancelled, Actor: ActorBuyer},
}

func TransitionFor(a Action) (Transition, bool) {
	t, ok := transitions[a]
	return t, ok
}

var (
	ErrUnknownAction     = errors.New("unknown order action")
	ErrIllegalTransition = errors.New("order status does not allow this action")
	ErrNotPermitted      = errors.New("not permitted to perform this action on the order")
)

// TransitionError describes a rejected action.
type TransitionError struct {
	Action Action
	Status OrderStatus
	Actor  Actor
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s on %s order (as %s): %v", e.Action, e.Status, actorName(e.Actor), e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func actorName(a Actor) string {
	if a == ActorNone {
		return "outsider"
	}
	return string(a)
}

// Next returns the status an order moves to when actor performs a on an order in status.
func Next(status OrderStatus, a Action, actor Actor) (OrderStatus, error) {
	t, ok := transitions[a]
	if !ok {
		return status, &TransitionError{Action: a, Status: status, Actor: actor, Err: ErrUnknownAction}
	}
	if actor != t.Actor {
		return status, &TransitionError{Action: a, Status: status, Actor: actor, Err: ErrNotPermitted}
	}
	if status != t.From {
		return status, &TransitionError{Action: a, Status: status, Actor: actor, Err: ErrIllegalTransition}
	}
	return t.To, nil
}

// ActorOf tells which side of the order userID is on.
func (o Order) ActorOf(userID int64) Actor {
	switch userID {
	case o.BuyerID:
		return ActorBuyer
	case o.SellerID:
		return ActorSeller
	}
	return ActorNone
}

// Allowed lists the actions actor may take on the order in its current status.
func (o Order) Allowed(actor Actor) []Action {
	var out []Action
	for _, a := range []Action{ActionPay, ActionShip, ActionComplete, ActionCancel} {
		if _, err := Next(o.Status, a, actor); err == nil {
			out = append(out, a)
		}
	}
	return out
}
