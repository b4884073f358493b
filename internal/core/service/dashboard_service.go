package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/metrics"
	"github.com/chopnow/storefront/internal/port"
)

const degradedNotice = "Some dashboard figures could not be loaded. Showing empty values for now."

// DashboardUpdate is one result delivered by Watch. Err is set when the
// composition itself failed, e.g. a vendor without a profile.
type DashboardUpdate struct {
	Dashboard domain.Dashboard
	Err       error
}

type DashboardService struct {
	db           port.DatabaseRepository
	logger       zerolog.Logger
	now          func() time.Time
	vendorRecent int
	adminRecent  int
}

func NewDashboardService(db port.DatabaseRepository, logger zerolog.Logger, vendorRecent, adminRecent int) *DashboardService {
	if vendorRecent <= 0 {
		vendorRecent = domain.DefaultVendorRecentOrders
	}
	if adminRecent <= 0 {
		adminRecent = domain.DefaultAdminRecentOrders
	}
	return &DashboardService{
		db:           db,
		logger:       logger.With().Str("component", "dashboard").Logger(),
		now:          time.Now,
		vendorRecent: vendorRecent,
		adminRecent:  adminRecent,
	}
}

// Compose builds the dashboard for identity. Collaborator failures degrade
// the result instead of failing it.
func (s *DashboardService) Compose(ctx context.Context, identity *domain.Identity) (domain.Dashboard, error) {
	if err := requireIdentity(identity); err != nil {
		return domain.Dashboard{}, err
	}

	var (
		dash domain.Dashboard
		err  error
	)
	switch identity.Role {
	case domain.RoleCustomer:
		dash, err = s.composeCustomer(ctx, identity.UserID)
	case domain.RoleVendor:
		dash, err = s.composeVendor(ctx, identity.UserID)
	case domain.RoleAdmin:
		dash, err = s.composeAdmin(ctx)
	default:
		return domain.Dashboard{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthenticated, identity.Role)
	}

	role := string(identity.Role)
	switch {
	case err == nil:
		metrics.DashboardCompositions.WithLabelValues(role, "ok").Inc()
	case errors.Is(err, domain.ErrCollaboratorFailure):
		s.logger.Warn().Err(err).
			Str("user_id", identity.UserID).
			Str("role", role).
			Msg("dashboard degraded")
		metrics.DashboardCompositions.WithLabelValues(role, "degraded").Inc()
		dash = domain.EmptyDashboard(identity.Role)
		dash.Degraded = true
		dash.Notice = degradedNotice
	default:
		metrics.DashboardCompositions.WithLabelValues(role, "error").Inc()
		return domain.Dashboard{}, err
	}

	dash.ComposedAt = s.now()
	return dash, nil
}

func (s *DashboardService) composeCustomer(ctx context.Context, userID string) (domain.Dashboard, error) {
	orders, err := s.db.QueryOrders(ctx, port.Query{
		Filters: []port.Filter{port.Eq("user_id", userID)},
	})
	if err != nil {
		return domain.Dashboard{}, domain.Collaborator("query customer orders", err)
	}
	stats := domain.SummarizeCustomer(orders, userID)
	return domain.Dashboard{Role: domain.RoleCustomer, Customer: &stats}, nil
}

func (s *DashboardService) composeVendor(ctx context.Context, userID string) (domain.Dashboard, error) {
	vendor, ok, err := vendorFor(ctx, s.db, userID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	if !ok {
		return domain.Dashboard{}, fmt.Errorf("%w: user %s", domain.ErrVendorProfileMissing, userID)
	}

	var (
		orders    []domain.Order
		menuCount int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.db.QueryOrders(gctx, port.Query{
			Filters: []port.Filter{port.Eq("vendor_id", vendor.ID)},
			OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
			Embed:   []port.Relation{port.RelationCustomer},
		})
		return domain.Collaborator("query vendor orders", err)
	})
	g.Go(func() error {
		var err error
		menuCount, err = s.db.CountRows(gctx, port.EntityMenuItems, port.Eq("vendor_id", vendor.ID))
		return domain.Collaborator("count menu items", err)
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}

	stats := domain.SummarizeVendor(orders, menuCount, s.vendorRecent)
	return domain.Dashboard{Role: domain.RoleVendor, Vendor: &stats}, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context) (domain.Dashboard, error) {
	var (
		orders []domain.Order
		counts domain.AdminCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts.Users, err = s.db.CountRows(gctx, port.EntityUsers)
		return domain.Collaborator("count users", err)
	})
	g.Go(func() error {
		var err error
		counts.Vendors, err = s.db.CountRows(gctx, port.EntityVendors)
		return domain.Collaborator("count vendors", err)
	})
	g.Go(func() error {
		var err error
		counts.PendingVendors, err = s.db.CountRows(gctx, port.EntityVendors,
			port.Eq("status", string(domain.VendorStatusPending)))
		return domain.Collaborator("count pending vendors", err)
	})
	g.Go(func() error {
		var err error
		orders, err = s.db.QueryOrders(gctx, port.Query{
			OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
			Embed:   []port.Relation{port.RelationVendor, port.RelationCustomer},
		})
		return domain.Collaborator("query all orders", err)
	})
	if err := g.Wait(); err != nil {
		return domain.Dashboard{}, err
	}

	stats := domain.SummarizeAdmin(orders, counts, s.adminRecent)
	return domain.Dashboard{Role: domain.RoleAdmin, Admin: &stats}, nil
}

// Watch composes once, then again on every identity change until ctx is
// done or the watching session signs out. Sign-outs of the user's other
// sessions only trigger a recompose. Only the newest composition is
// delivered; results of compositions overtaken by a later change are
// dropped. The returned channel is closed when watching stops.
func (s *DashboardService) Watch(ctx context.Context, identity *domain.Identity, changes <-chan domain.IdentityChange) <-chan DashboardUpdate {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan DashboardUpdate, 1)

	type result struct {
		gen    uint64
		update DashboardUpdate
	}
	results := make(chan result)

	var gen uint64
	start := func() {
		gen++
		g := gen
		go func() {
			dash, err := s.Compose(ctx, identity)
			select {
			case results <- result{gen: g, update: DashboardUpdate{Dashboard: dash, Err: err}}:
			case <-ctx.Done():
			}
		}()
	}

	go func() {
		defer close(out)
		defer cancel()
		start()
		for {
			select {
			case <-ctx.Done():
				return
			case change, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				if change.Reason == domain.IdentitySignedOut && change.SessionID == identity.SessionID {
					return
				}
				start()
			case r := <-results:
				if r.gen != gen {
					s.logger.Debug().Uint64("generation", r.gen).Msg("dropping stale dashboard")
					continue
				}
				if ctx.Err() != nil {
					return
				}
				select {
				case out <- r.update:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
