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

type VendorApplication struct {
	Name        string `json:"vendor_name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	Address     string `json:"address" validate:"required,max=500"`
	Phone       string `json:"phone" validate:"omitempty,max=40"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
}

type VendorSort string

const (
	VendorSortName   VendorSort = "name"
	VendorSortNewest VendorSort = "newest"
)

type VendorFilter struct {
	Sort     VendorSort
	Location string // substring of the vendor address
}

type VendorService struct {
	db       port.DatabaseRepository
	notifier port.IdentityNotifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewVendorService(db port.DatabaseRepository, notifier port.IdentityNotifier, logger zerolog.Logger) *VendorService {
	return &VendorService{
		db:       db,
		notifier: notifier,
		logger:   logger.With().Str("component", "vendor_service").Logger(),
		now:      time.Now,
	}
}

// Apply files a vendor application for identity. The vendor starts pending
// until an admin decides on it.
func (s *VendorService) Apply(ctx context.Context, identity *domain.Identity, app VendorApplication) (domain.Vendor, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Vendor{}, err
	}
	if err := validateInput(app); err != nil {
		return domain.Vendor{}, err
	}

	_, exists, err := vendorFor(ctx, s.db, identity.UserID)
	if err != nil {
		return domain.Vendor{}, err
	}
	if exists {
		return domain.Vendor{}, domain.ErrVendorExists
	}

	now := s.now()
	vendor := domain.Vendor{
		ID:          newID(),
		UserID:      identity.UserID,
		Name:        strings.TrimSpace(app.Name),
		Description: app.Description,
		Status:      domain.VendorStatusPending,
		ImageURL:    app.ImageURL,
		Phone:       app.Phone,
		Address:     app.Address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.InsertVendor(ctx, vendor); err != nil {
		if errors.Is(err, port.ErrDuplicateKey) {
			return domain.Vendor{}, domain.ErrVendorExists
		}
		return domain.Vendor{}, domain.Collaborator("insert vendor", err)
	}

	s.notify(ctx, vendor.UserID)
	s.logger.Info().Str("vendor_id", vendor.ID).Str("user_id", vendor.UserID).Msg("vendor application received")
	return vendor, nil
}

// Decide applies an admin decision to a vendor. Status changes are
// unconditional: any status may move to any other.
func (s *VendorService) Decide(ctx context.Context, identity *domain.Identity, vendorID string, decision domain.VendorDecision) (domain.Vendor, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Vendor{}, err
	}
	if identity.Role != domain.RoleAdmin {
		return domain.Vendor{}, fmt.Errorf("%w: only admins decide on vendors", domain.ErrActionNotPermitted)
	}
	status, ok := decision.Status()
	if !ok {
		return domain.Vendor{}, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidInput, decision)
	}

	vendor, err := loadVendor(ctx, s.db, vendorID)
	if err != nil {
		return domain.Vendor{}, err
	}

	now := s.now()
	err = s.db.UpdateRow(ctx, port.EntityVendors, vendor.ID, port.Patch{
		"status":     string(status),
		"updated_at": now,
	})
	if err != nil {
		return domain.Vendor{}, domain.Collaborator("update vendor status", err)
	}
	vendor.Status = status
	vendor.UpdatedAt = now

	s.notify(ctx, vendor.UserID)
	s.logger.Info().
		Str("vendor_id", vendor.ID).
		Str("decision", string(decision)).
		Str("admin", identity.UserID).
		Msg("vendor decision recorded")
	return vendor, nil
}

func (s *VendorService) ListApproved(ctx context.Context, filter VendorFilter) ([]domain.Vendor, error) {
	q := port.Query{
		Filters: []port.Filter{port.Eq("status", string(domain.VendorStatusApproved))},
	}
	if loc := strings.TrimSpace(filter.Location); loc != "" {
		q.Filters = append(q.Filters, port.ILike("address", loc))
	}
	switch filter.Sort {
	case VendorSortNewest:
		q.OrderBy = []port.Sort{{Field: "created_at", Desc: true}}
	default:
		q.OrderBy = []port.Sort{{Field: "vendor_name"}}
	}

	vendors, err := s.db.QueryVendors(ctx, q)
	if err != nil {
		return nil, domain.Collaborator("query approved vendors", err)
	}
	return vendors, nil
}

// ListAll returns every vendor whatever its status, newest first. Admin
// only.
func (s *VendorService) ListAll(ctx context.Context, identity *domain.Identity) ([]domain.Vendor, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if identity.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins list all vendors", domain.ErrActionNotPermitted)
	}
	vendors, err := s.db.QueryVendors(ctx, port.Query{
		OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
	})
	if err != nil {
		return nil, domain.Collaborator("query vendors", err)
	}
	return vendors, nil
}

// ListPending returns applications awaiting review, oldest first.
func (s *VendorService) ListPending(ctx context.Context, identity *domain.Identity) ([]domain.Vendor, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if identity.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins review vendors", domain.ErrActionNotPermitted)
	}
	vendors, err := s.db.QueryVendors(ctx, port.Query{
		Filters: []port.Filter{port.Eq("status", string(domain.VendorStatusPending))},
		OrderBy: []port.Sort{{Field: "created_at"}},
	})
	if err != nil {
		return nil, domain.Collaborator("query pending vendors", err)
	}
	return vendors, nil
}

func (s *VendorService) notify(ctx context.Context, userID string) {
	change := domain.IdentityChange{UserID: userID, Reason: domain.IdentityVendorUpdated}
	if err := s.notifier.PublishIdentityChange(ctx, change); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to publish identity change")
	}
}
