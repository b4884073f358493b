package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

const (
	searchVendorLimit   = 10
	searchItemLimit     = 20
	featuredVendorLimit = 6
	featuredItemLimit   = 8
)

type CatalogResult struct {
	Vendors []domain.Vendor
	Items   []domain.MenuItem
}

type NewMenuItem struct {
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category" validate:"max=60"`
	PrepTime    int             `json:"prep_time" validate:"min=0,max=600"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
}

type CatalogService struct {
	db     port.DatabaseRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewCatalogService(db port.DatabaseRepository, logger zerolog.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    time.Now,
	}
}

// Search matches approved vendors and available menu items against term.
// A blank term matches nothing.
func (s *CatalogService) Search(ctx context.Context, term string) (CatalogResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return CatalogResult{Vendors: []domain.Vendor{}, Items: []domain.MenuItem{}}, nil
	}

	var res CatalogResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.Vendors, err = s.db.QueryVendors(gctx, port.Query{
			Filters: []port.Filter{port.Eq("status", string(domain.VendorStatusApproved))},
			Any: []port.Filter{
				port.ILike("vendor_name", term),
				port.ILike("description", term),
				port.ILike("address", term),
			},
			OrderBy: []port.Sort{{Field: "vendor_name"}},
			Limit:   searchVendorLimit,
		})
		return domain.Collaborator("search vendors", err)
	})
	g.Go(func() error {
		var err error
		res.Items, err = s.db.QueryMenuItems(gctx, port.Query{
			Filters: []port.Filter{port.Eq("available", true)},
			Any: []port.Filter{
				port.ILike("name", term),
				port.ILike("description", term),
				port.ILike("category", term),
			},
			OrderBy: []port.Sort{{Field: "name"}},
			Limit:   searchItemLimit,
			Embed:   []port.Relation{port.RelationVendor},
		})
		return domain.Collaborator("search menu items", err)
	})
	if err := g.Wait(); err != nil {
		return CatalogResult{}, err
	}
	return res, nil
}

// Featured returns the newest approved vendors and available items for the
// landing page.
func (s *CatalogService) Featured(ctx context.Context) (CatalogResult, error) {
	var res CatalogResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		res.Vendors, err = s.db.QueryVendors(gctx, port.Query{
			Filters: []port.Filter{port.Eq("status", string(domain.VendorStatusApproved))},
			OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
			Limit:   featuredVendorLimit,
		})
		return domain.Collaborator("featured vendors", err)
	})
	g.Go(func() error {
		var err error
		res.Items, err = s.db.QueryMenuItems(gctx, port.Query{
			Filters: []port.Filter{port.Eq("available", true)},
			OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
			Limit:   featuredItemLimit,
			Embed:   []port.Relation{port.RelationVendor},
		})
		return domain.Collaborator("featured menu items", err)
	})
	if err := g.Wait(); err != nil {
		return CatalogResult{}, err
	}
	return res, nil
}

// AddMenuItem creates an available item on the caller's own vendor.
func (s *CatalogService) AddMenuItem(ctx context.Context, identity *domain.Identity, in NewMenuItem) (domain.MenuItem, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.MenuItem{}, err
	}
	if identity.Role != domain.RoleVendor {
		return domain.MenuItem{}, fmt.Errorf("%w: only vendors manage menus", domain.ErrActionNotPermitted)
	}
	if err := validateInput(in); err != nil {
		return domain.MenuItem{}, err
	}
	if !in.Price.IsPositive() {
		return domain.MenuItem{}, fmt.Errorf("%w: price must be positive", domain.ErrInvalidInput)
	}

	vendor, ok, err := vendorFor(ctx, s.db, identity.UserID)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if !ok {
		return domain.MenuItem{}, domain.ErrVendorProfileMissing
	}

	now := s.now()
	item := domain.MenuItem{
		ID:          newID(),
		VendorID:    vendor.ID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		ImageURL:    in.ImageURL,
		Available:   true,
		Category:    in.Category,
		PrepTime:    in.PrepTime,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.InsertMenuItem(ctx, item); err != nil {
		return domain.MenuItem{}, domain.Collaborator("insert menu item", err)
	}
	s.logger.Info().Str("item_id", item.ID).Str("vendor_id", vendor.ID).Msg("menu item added")
	return item, nil
}

func (s *CatalogService) SetAvailability(ctx context.Context, identity *domain.Identity, itemID string, available bool) (domain.MenuItem, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.MenuItem{}, err
	}

	items, err := s.db.QueryMenuItems(ctx, port.Query{
		Filters: []port.Filter{port.Eq("id", itemID)},
		Limit:   1,
	})
	if err != nil {
		return domain.MenuItem{}, domain.Collaborator("query menu item", err)
	}
	if len(items) == 0 {
		return domain.MenuItem{}, fmt.Errorf("%w: %s", domain.ErrMenuItemNotFound, itemID)
	}
	item := items[0]

	viewer, err := viewerFor(ctx, s.db, identity)
	if err != nil {
		return domain.MenuItem{}, err
	}
	if viewer.Role != domain.RoleVendor || viewer.VendorID != item.VendorID {
		return domain.MenuItem{}, fmt.Errorf("%w: item belongs to another vendor", domain.ErrActionNotPermitted)
	}

	now := s.now()
	err = s.db.UpdateRow(ctx, port.EntityMenuItems, item.ID, port.Patch{
		"available":  available,
		"updated_at": now,
	})
	if err != nil {
		return domain.MenuItem{}, domain.Collaborator("update menu item", err)
	}
	item.Available = available
	item.UpdatedAt = now
	return item, nil
}
