package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

var (
	customer      = &domain.Identity{UserID: "cust-1", Role: domain.RoleCustomer, SessionID: "s-1"}
	otherCustomer = &domain.Identity{UserID: "cust-2", Role: domain.RoleCustomer, SessionID: "s-2"}
	vendorOwner   = &domain.Identity{UserID: "vuser-1", Role: domain.RoleVendor, SessionID: "s-3"}
	pendingOwner  = &domain.Identity{UserID: "vuser-2", Role: domain.RoleVendor, SessionID: "s-4"}
	adminUser     = &domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin, SessionID: "s-5"}
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	err            error
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) StoreSession(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	return nil
}

func (m *mockCacheRepo) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	return true, nil
}

func (m *mockCacheRepo) RevokeSession(ctx context.Context, sessionID string) error {
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *mockPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *mockPublisher) published() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderEvent(nil), p.events...)
}

// Mock IdentityNotifier
type mockNotifier struct {
	mu      sync.Mutex
	changes []domain.IdentityChange
}

func (n *mockNotifier) PublishIdentityChange(ctx context.Context, change domain.IdentityChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func (n *mockNotifier) SubscribeIdentityChanges(ctx context.Context, userID string) (<-chan domain.IdentityChange, error) {
	return nil, errors.New("not supported")
}

// failingDB fails every read after the vendor profile lookup, which is what
// a dropped database connection looks like mid-composition.
type failingDB struct {
	port.DatabaseRepository
	err error
}

func (f *failingDB) QueryOrders(ctx context.Context, q port.Query) ([]domain.Order, error) {
	return nil, f.err
}

func (f *failingDB) CountRows(ctx context.Context, entity port.Entity, filters ...port.Filter) (int, error) {
	return 0, f.err
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// seedStore returns a memory store holding two vendors (one approved, one
// pending), three menu items and the users above.
func seedStore(t *testing.T) *storage.MemoryAdapter {
	t.Helper()
	ctx := context.Background()
	db := storage.NewMemoryAdapter()

	users := []domain.User{
		{ID: customer.UserID, Name: "Ada", Email: "ada@example.com", Role: domain.RoleCustomer},
		{ID: otherCustomer.UserID, Name: "Ben", Email: "ben@example.com", Role: domain.RoleCustomer},
		{ID: vendorOwner.UserID, Name: "Chidi", Email: "chidi@example.com", Role: domain.RoleVendor},
		{ID: pendingOwner.UserID, Name: "Dayo", Email: "dayo@example.com", Role: domain.RoleVendor},
		{ID: adminUser.UserID, Name: "Eve", Email: "eve@example.com", Role: domain.RoleAdmin},
	}
	for _, u := range users {
		u.CreatedAt, u.UpdatedAt = baseTime, baseTime
		if err := db.InsertUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	vendors := []domain.Vendor{
		{ID: "vendor-1", UserID: vendorOwner.UserID, Name: "Mama Put", Address: "12 Allen Avenue, Ikeja", Status: domain.VendorStatusApproved, CreatedAt: baseTime},
		{ID: "vendor-2", UserID: pendingOwner.UserID, Name: "Suya Spot", Address: "4 Bode Thomas, Surulere", Status: domain.VendorStatusPending, CreatedAt: baseTime.Add(time.Hour)},
	}
	for _, v := range vendors {
		if err := db.InsertVendor(ctx, v); err != nil {
			t.Fatalf("seed vendor: %v", err)
		}
	}

	items := []domain.MenuItem{
		{ID: "item-1", VendorID: "vendor-1", Name: "Jollof Rice", Category: "Rice", Price: money("12.50"), Available: true, CreatedAt: baseTime},
		{ID: "item-2", VendorID: "vendor-1", Name: "Fried Plantain", Category: "Sides", Price: money("3.25"), Available: true, CreatedAt: baseTime.Add(time.Minute)},
		{ID: "item-3", VendorID: "vendor-1", Name: "Pepper Soup", Category: "Soups", Price: money("9.00"), Available: false, CreatedAt: baseTime.Add(2 * time.Minute)},
		{ID: "item-4", VendorID: "vendor-2", Name: "Beef Suya", Category: "Grill", Price: money("7.00"), Available: true, CreatedAt: baseTime},
	}
	for _, it := range items {
		if err := db.InsertMenuItem(ctx, it); err != nil {
			t.Fatalf("seed menu item: %v", err)
		}
	}
	return db
}

// insertOrder stores an order for cust-1 at vendor-1 directly.
func insertOrder(t *testing.T, db port.DatabaseRepository, id string, status domain.OrderStatus, total string, minute int) domain.Order {
	t.Helper()
	created := baseTime.Add(time.Duration(minute) * time.Minute)
	o := domain.Order{
		ID:              id,
		UserID:          customer.UserID,
		VendorID:        "vendor-1",
		Items:           []domain.LineItem{{MenuItemID: "item-1", Name: "Jollof Rice", Quantity: 1, Price: money(total)}},
		Total:           money(total),
		Status:          status,
		DeliveryAddress: "1 Marina Road",
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	if err := db.InsertOrder(context.Background(), o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
