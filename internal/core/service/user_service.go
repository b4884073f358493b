package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

// ProfileUpdate changes the caller's own contact details. Nil fields are
// left as they are.
type ProfileUpdate struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Location *string `json:"location" validate:"omitempty,max=255"`
}

type UserService struct {
	db     port.DatabaseRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewUserService(db port.DatabaseRepository, logger zerolog.Logger) *UserService {
	return &UserService{
		db:     db,
		logger: logger.With().Str("component", "user_service").Logger(),
		now:    time.Now,
	}
}

func (s *UserService) Profile(ctx context.Context, identity *domain.Identity) (domain.User, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.User{}, err
	}
	return loadUser(ctx, s.db, identity.UserID)
}

// UpdateProfile writes the given fields to the caller's user row and
// returns the row as stored.
func (s *UserService) UpdateProfile(ctx context.Context, identity *domain.Identity, update ProfileUpdate) (domain.User, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.User{}, err
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	if err := validateInput(update); err != nil {
		return domain.User{}, err
	}

	now := s.now()
	patch := port.Patch{"updated_at": now}
	if update.Name != nil {
		patch["name"] = *update.Name
	}
	if update.Phone != nil {
		patch["phone"] = strings.TrimSpace(*update.Phone)
	}
	if update.Location != nil {
		patch["location"] = strings.TrimSpace(*update.Location)
	}
	if len(patch) == 1 {
		return domain.User{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	if err := s.db.UpdateRow(ctx, port.EntityUsers, identity.UserID, patch); err != nil {
		if errors.Is(err, port.ErrRowNotFound) {
			return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, identity.UserID)
		}
		return domain.User{}, domain.Collaborator("update user", err)
	}

	user, err := loadUser(ctx, s.db, identity.UserID)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info().Str("user_id", user.ID).Msg("profile updated")
	return user, nil
}

// ListUsers returns every user, newest first. Admin only.
func (s *UserService) ListUsers(ctx context.Context, identity *domain.Identity) ([]domain.User, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if identity.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins list users", domain.ErrActionNotPermitted)
	}
	users, err := s.db.QueryUsers(ctx, port.Query{
		OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, domain.Collaborator("query users", err)
	}
	return users, nil
}

func loadUser(ctx context.Context, db port.DatabaseRepository, userID string) (domain.User, error) {
	users, err := db.QueryUsers(ctx, port.Query{
		Filters: []port.Filter{port.Eq("id", userID)},
		Limit:   1,
	})
	if err != nil {
		return domain.User{}, domain.Collaborator("query user", err)
	}
	if len(users) == 0 {
		return domain.User{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return users[0], nil
}
