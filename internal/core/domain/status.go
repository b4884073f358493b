package domain

import (
	"fmt"
	"slices"
	"time"
)

// forward is the happy path; every status maps to its single successor.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:   OrderStatusConfirmed,
	OrderStatusConfirmed: OrderStatusPreparing,
	OrderStatusPreparing: OrderStatusReady,
	OrderStatusReady:     OrderStatusPickedUp,
	OrderStatusPickedUp:  OrderStatusEnRoute,
	OrderStatusEnRoute:   OrderStatusDelivered,
}

// Statuses lists every canonical status in lifecycle order.
var Statuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusPickedUp,
	OrderStatusEnRoute,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	return slices.Contains(Statuses, s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Next returns the forward successor, false for terminal states.
func (s OrderStatus) Next() (OrderStatus, bool) {
	next, ok := forward[s]
	return next, ok
}

func ParseStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
	}
	return st, nil
}

// ParseLegacyStatus maps the five-state enumeration used by older order
// rows onto the canonical one. It never produces confirmed, ready or
// picked_up.
func ParseLegacyStatus(s string) (OrderStatus, error) {
	switch s {
	case "pending":
		return OrderStatusPending, nil
	case "preparing":
		return OrderStatusPreparing, nil
	case "en_route":
		return OrderStatusEnRoute, nil
	case "delivered":
		return OrderStatusDelivered, nil
	case "cancelled":
		return OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("%w: unknown legacy status %q", ErrInvalidTransition, s)
}

// CanTransition returns nil when target is reachable from the current
// status by the forward-or-cancel rule.
func CanTransition(from, target OrderStatus) error {
	if !target.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, from)
	}
	if target == OrderStatusCancelled {
		return nil
	}
	if next, ok := from.Next(); ok && next == target {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
}

// ApplyTransition returns a copy of order moved to target. Only Status and
// UpdatedAt differ from the input.
func ApplyTransition(order Order, target OrderStatus, actor Viewer, now time.Time) (Order, error) {
	if err := CanTransition(order.Status, target); err != nil {
		return Order{}, err
	}

	permitted := false
	for _, a := range AvailableActions(order, actor) {
		if a.Target == target {
			permitted = true
			break
		}
	}
	if !permitted {
		return Order{}, fmt.Errorf("%w: %s cannot move order to %s", ErrActionNotPermitted, actor.Role, target)
	}

	updated := order
	updated.Items = slices.Clone(order.Items)
	updated.Status = target
	updated.UpdatedAt = now
	return updated, nil
}
