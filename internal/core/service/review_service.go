package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

type ReviewService struct {
	db     port.DatabaseRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewReviewService(db port.DatabaseRepository, logger zerolog.Logger) *ReviewService {
	return &ReviewService{
		db:     db,
		logger: logger.With().Str("component", "review").Logger(),
		now:    time.Now,
	}
}

// Rate records the purchaser's review of a delivered order. Each order takes
// one review.
func (s *ReviewService) Rate(ctx context.Context, identity *domain.Identity, orderID string, req ReviewRequest) (domain.Review, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Review{}, err
	}
	if err := validateInput(req); err != nil {
		return domain.Review{}, err
	}

	order, err := loadOrder(ctx, s.db, orderID)
	if err != nil {
		return domain.Review{}, err
	}
	viewer, err := viewerFor(ctx, s.db, identity)
	if err != nil {
		return domain.Review{}, err
	}
	if !domain.HasAction(domain.AvailableActions(order, viewer), domain.ActionRate) {
		return domain.Review{}, fmt.Errorf("%w: order %s cannot be rated", domain.ErrActionNotPermitted, order.ID)
	}

	n, err := s.db.CountRows(ctx, port.EntityReviews, port.Eq("order_id", order.ID))
	if err != nil {
		return domain.Review{}, domain.Collaborator("count reviews", err)
	}
	if n > 0 {
		return domain.Review{}, domain.ErrAlreadyReviewed
	}

	review := domain.Review{
		ID:        newID(),
		UserID:    identity.UserID,
		VendorID:  order.VendorID,
		OrderID:   order.ID,
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: s.now(),
	}
	if err := s.db.InsertReview(ctx, review); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return domain.Review{}, domain.ErrAlreadyReviewed
		}
		return domain.Review{}, domain.Collaborator("insert review", err)
	}
	s.logger.Info().Str("order_id", order.ID).Int("rating", review.Rating).Msg("order reviewed")
	return review, nil
}
