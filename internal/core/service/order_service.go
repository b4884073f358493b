package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/metrics"
	"github.com/chopnow/storefront/internal/port"
)

type CheckoutLine struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"min=1,max=99"`
}

type CheckoutRequest struct {
	IdempotencyKey  string         `json:"-" validate:"required,max=128"`
	VendorID        string         `json:"vendor_id" validate:"required"`
	Items           []CheckoutLine `json:"items" validate:"required,min=1,max=50,dive"`
	DeliveryAddress string         `json:"delivery_address" validate:"required,max=500"`
	Notes           string         `json:"notes" validate:"max=1000"`
}

// MyOrders splits a customer's orders, newest first, into those still in
// flight and those that reached a terminal status.
type MyOrders struct {
	Active []domain.Order
	Past   []domain.Order
}

type OrderService struct {
	db     port.DatabaseRepository
	cache  port.CacheRepository
	events port.EventPublisher
	logger zerolog.Logger
	now    func() time.Time
}

func NewOrderService(db port.DatabaseRepository, cache port.CacheRepository, events port.EventPublisher, logger zerolog.Logger) *OrderService {
	return &OrderService{
		db:     db,
		cache:  cache,
		events: events,
		logger: logger.With().Str("component", "order_service").Logger(),
		now:    time.Now,
	}
}

func (s *OrderService) Checkout(ctx context.Context, identity *domain.Identity, req CheckoutRequest) (domain.Order, error) {
	order, err := s.checkout(ctx, identity, req)
	metrics.Checkouts.WithLabelValues(checkoutResult(err)).Inc()
	return order, err
}

func (s *OrderService) checkout(ctx context.Context, identity *domain.Identity, req CheckoutRequest) (_ domain.Order, err error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Order{}, err
	}
	if err := validateInput(req); err != nil {
		return domain.Order{}, err
	}

	idempotencyKey := fmt.Sprintf("checkout:%s:%s", identity.UserID, req.IdempotencyKey)
	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return domain.Order{}, domain.Collaborator("idempotency check", err)
	}
	if !ok {
		return domain.Order{}, domain.ErrDuplicateRequest
	}
	// A collaborator failure leaves no order behind, so the key goes back
	// for the retry. Rejections keep it.
	defer func() {
		if err != nil && errors.Is(err, domain.ErrCollaboratorFailure) {
			s.releaseIdempotency(ctx, idempotencyKey)
		}
	}()

	vendor, err := loadVendor(ctx, s.db, req.VendorID)
	if err != nil {
		return domain.Order{}, err
	}
	if vendor.Status != domain.VendorStatusApproved {
		return domain.Order{}, fmt.Errorf("%w: %s is %s", domain.ErrVendorNotApproved, vendor.ID, vendor.Status)
	}

	ids := make([]string, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.MenuItemID
	}
	menu, err := s.db.QueryMenuItems(ctx, port.Query{
		Filters: []port.Filter{port.Eq("vendor_id", vendor.ID), port.In("id", ids...)},
	})
	if err != nil {
		return domain.Order{}, domain.Collaborator("query menu items", err)
	}
	byID := make(map[string]domain.MenuItem, len(menu))
	for _, it := range menu {
		byID[it.ID] = it
	}

	lines := make([]domain.LineItem, 0, len(req.Items))
	for _, line := range req.Items {
		it, ok := byID[line.MenuItemID]
		if !ok {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrMenuItemNotFound, line.MenuItemID)
		}
		if !it.Available {
			return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrMenuItemUnavailable, it.Name)
		}
		lines = append(lines, domain.LineItem{
			MenuItemID: it.ID,
			Name:       it.Name,
			Quantity:   line.Quantity,
			Price:      it.Price,
		})
	}

	now := s.now()
	order := domain.Order{
		ID:              newID(),
		UserID:          identity.UserID,
		VendorID:        vendor.ID,
		Items:           lines,
		Total:           domain.LineTotal(lines),
		Status:          domain.OrderStatusPending,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.db.InsertOrder(ctx, order); err != nil {
		return domain.Order{}, domain.Collaborator("insert order", err)
	}
	order.Vendor = &domain.VendorSummary{Name: vendor.Name, Address: vendor.Address, Phone: vendor.Phone}

	s.publish(ctx, domain.OrderEvent{
		Type:       domain.OrderEventCreated,
		OrderID:    order.ID,
		UserID:     order.UserID,
		VendorID:   order.VendorID,
		To:         order.Status,
		ActorID:    identity.UserID,
		OccurredAt: now,
	})

	s.logger.Info().
		Str("order_id", order.ID).
		Str("user_id", order.UserID).
		Str("vendor_id", order.VendorID).
		Str("total", order.Total.StringFixed(2)).
		Msg("order placed")
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, identity *domain.Identity) (MyOrders, error) {
	if err := requireIdentity(identity); err != nil {
		return MyOrders{}, err
	}
	orders, err := s.db.QueryOrders(ctx, port.Query{
		Filters: []port.Filter{port.Eq("user_id", identity.UserID)},
		OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
		Embed:   []port.Relation{port.RelationVendor},
	})
	if err != nil {
		return MyOrders{}, domain.Collaborator("query orders", err)
	}

	mine := MyOrders{Active: []domain.Order{}, Past: []domain.Order{}}
	for _, o := range orders {
		if o.Status.IsTerminal() {
			mine.Past = append(mine.Past, o)
		} else {
			mine.Active = append(mine.Active, o)
		}
	}
	return mine, nil
}

// Actions returns what identity may do with the order right now.
func (s *OrderService) Actions(ctx context.Context, identity *domain.Identity, orderID string) ([]domain.Action, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	viewer, err := viewerFor(ctx, s.db, identity)
	if err != nil {
		return nil, err
	}
	actions := domain.AvailableActions(order, viewer)
	if actions == nil {
		actions = []domain.Action{}
	}
	return actions, nil
}

// Transition moves the order to target on behalf of identity and writes the
// new status back. The read and the write are separate round trips.
func (s *OrderService) Transition(ctx context.Context, identity *domain.Identity, orderID string, target domain.OrderStatus) (domain.Order, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Order{}, err
	}
	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	viewer, err := viewerFor(ctx, s.db, identity)
	if err != nil {
		return domain.Order{}, err
	}

	updated, err := domain.ApplyTransition(order, target, viewer, s.now())
	if err != nil {
		metrics.OrderTransitions.WithLabelValues(string(order.Status), string(target), transitionResult(err)).Inc()
		return domain.Order{}, err
	}

	err = s.db.UpdateRow(ctx, port.EntityOrders, order.ID, port.Patch{
		"status":     string(updated.Status),
		"updated_at": updated.UpdatedAt,
	})
	if err != nil {
		metrics.OrderTransitions.WithLabelValues(string(order.Status), string(target), "error").Inc()
		return domain.Order{}, domain.Collaborator("update order status", err)
	}
	metrics.OrderTransitions.WithLabelValues(string(order.Status), string(target), "ok").Inc()

	s.publish(ctx, domain.OrderEvent{
		Type:       domain.OrderEventStatusChanged,
		OrderID:    updated.ID,
		UserID:     updated.UserID,
		VendorID:   updated.VendorID,
		From:       order.Status,
		To:         updated.Status,
		ActorID:    identity.UserID,
		OccurredAt: updated.UpdatedAt,
	})

	s.logger.Info().
		Str("order_id", updated.ID).
		Str("from", string(order.Status)).
		Str("to", string(updated.Status)).
		Str("actor", identity.UserID).
		Msg("order status changed")
	return updated, nil
}

func (s *OrderService) releaseIdempotency(ctx context.Context, key string) {
	if err := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

// publish never fails the caller; the order row is already the source of
// truth.
func (s *OrderService) publish(ctx context.Context, event domain.OrderEvent) {
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", event.OrderID).
			Str("type", string(event.Type)).
			Msg("failed to publish order event")
	}
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTerminalState):
		return "terminal"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, domain.ErrActionNotPermitted):
		return "forbidden"
	}
	return "error"
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return "duplicate"
	case errors.Is(err, domain.ErrCollaboratorFailure):
		return "error"
	}
	return "rejected"
}
