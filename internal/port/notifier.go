package port

import (
	"context"

	"github.com/chopnow/storefront/internal/core/domain"
)

type IdentityNotifier interface {
	// PublishIdentityChange tells subscribers of change.UserID to recompose
	PublishIdentityChange(ctx context.Context, change domain.IdentityChange) error

	// SubscribeIdentityChanges streams changes for userID until ctx is done
	SubscribeIdentityChanges(ctx context.Context, userID string) (<-chan domain.IdentityChange, error)
}

type EventPublisher interface {
	// PublishOrderEvent emits an order lifecycle event
	PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error
}
