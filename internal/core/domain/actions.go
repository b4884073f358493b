package domain

type ActionKind string

const (
	ActionAdvance ActionKind = "advance"
	ActionCancel  ActionKind = "cancel"
	ActionRate    ActionKind = "rate"
)

type Action struct {
	Kind   ActionKind  `json:"kind"`
	Target OrderStatus `json:"target,omitempty"`
}

// AvailableActions lists what viewer may do with order right now.
func AvailableActions(order Order, viewer Viewer) []Action {
	switch viewer.Role {
	case RoleAdmin:
		return staffActions(order)
	case RoleVendor:
		if viewer.VendorID == "" || viewer.VendorID != order.VendorID {
			return nil
		}
		return staffActions(order)
	case RoleCustomer:
		if viewer.UserID == "" || viewer.UserID != order.UserID {
			return nil
		}
		switch order.Status {
		case OrderStatusPending:
			return []Action{{Kind: ActionCancel, Target: OrderStatusCancelled}}
		case OrderStatusDelivered:
			return []Action{{Kind: ActionRate}}
		}
	}
	return nil
}

func staffActions(order Order) []Action {
	if order.Status.IsTerminal() {
		return nil
	}
	var actions []Action
	if next, ok := order.Status.Next(); ok {
		actions = append(actions, Action{Kind: ActionAdvance, Target: next})
	}
	return append(actions, Action{Kind: ActionCancel, Target: OrderStatusCancelled})
}

// HasAction reports whether kind is among actions.
func HasAction(actions []Action, kind ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
