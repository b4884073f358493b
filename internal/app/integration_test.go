package app

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/config"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
	"github.com/chopnow/storefront/internal/seed"
)

// setupIntegration opens the MySQL and Redis stack, skipping when either
// is unreachable.
func setupIntegration(t *testing.T) *App {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/chopnow?parseTime=true"
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	cfg := memoryConfig()
	cfg.Store = config.StoreConfig{Driver: config.StoreMySQL, MySQLDSN: dsn}
	cfg.Redis = config.RedisConfig{Addr: redisAddr}

	ctx := context.Background()
	a, err := Open(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Skipf("MySQL/Redis not available: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if _, ok := a.Sessions.(*storage.RedisAdapter); !ok {
		t.Fatalf("expected redis sessions, got %T", a.Sessions)
	}
	if err := seed.Load(ctx, a.DB, seed.Demo(time.Now().UTC())); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	return a
}

var (
	demoCustomer = &domain.Identity{UserID: seed.CustomerID, Role: domain.RoleCustomer}
	demoVendor   = &domain.Identity{UserID: seed.VendorOwnerID, Role: domain.RoleVendor}
)

func demoCheckout(key string) service.CheckoutRequest {
	return service.CheckoutRequest{
		IdempotencyKey:  key,
		VendorID:        seed.VendorID,
		Items:           []service.CheckoutLine{{MenuItemID: seed.JollofID, Quantity: 2}},
		DeliveryAddress: "1 Marina Road, Lagos",
	}
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	a := setupIntegration(t)
	ctx := context.Background()

	before, err := a.Services.Dashboards.Compose(ctx, demoCustomer)
	if err != nil {
		t.Fatal(err)
	}

	order, err := a.Services.Orders.Checkout(ctx, demoCustomer, demoCheckout(uuid.NewString()))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.Total.StringFixed(2) != "25.00" {
		t.Errorf("expected total 25.00, got %s", order.Total.StringFixed(2))
	}

	for {
		next, ok := order.Status.Next()
		if !ok {
			break
		}
		if order, err = a.Services.Orders.Transition(ctx, demoVendor, order.ID, next); err != nil {
			t.Fatalf("transition to %s failed: %v", next, err)
		}
	}
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", order.Status)
	}

	_, err = a.Services.Orders.Transition(ctx, demoVendor, order.ID, domain.OrderStatusCancelled)
	if !errors.Is(err, domain.ErrTerminalState) {
		t.Errorf("expected ErrTerminalState, got %v", err)
	}

	if _, err := a.Services.Reviews.Rate(ctx, demoCustomer, order.ID, service.ReviewRequest{Rating: 5}); err != nil {
		t.Errorf("review failed: %v", err)
	}

	after, err := a.Services.Dashboards.Compose(ctx, demoCustomer)
	if err != nil {
		t.Fatal(err)
	}
	if after.Customer.TotalOrders != before.Customer.TotalOrders+1 {
		t.Errorf("expected one more order, got %d -> %d", before.Customer.TotalOrders, after.Customer.TotalOrders)
	}
	if !after.Customer.TotalSpent.Sub(before.Customer.TotalSpent).Equal(order.Total) {
		t.Errorf("spent did not grow by the order total")
	}
}

func TestIntegration_IdempotencyPreventsDoubleOrder(t *testing.T) {
	a := setupIntegration(t)
	ctx := context.Background()
	key := uuid.NewString()

	var (
		wg        sync.WaitGroup
		placed    atomic.Int32
		duplicate atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Services.Orders.Checkout(ctx, demoCustomer, demoCheckout(key))
			switch {
			case err == nil:
				placed.Add(1)
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicate.Add(1)
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}()
	}
	wg.Wait()

	if placed.Load() != 1 || duplicate.Load() != 19 {
		t.Errorf("expected 1 placed and 19 duplicates, got %d/%d", placed.Load(), duplicate.Load())
	}
}

func TestIntegration_SignOutEndsWatch(t *testing.T) {
	a := setupIntegration(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, identity, err := a.Auth.Issue(ctx, seed.CustomerID, domain.RoleCustomer)
	if err != nil {
		t.Fatal(err)
	}
	changes, err := a.Sessions.SubscribeIdentityChanges(ctx, identity.UserID)
	if err != nil {
		t.Fatal(err)
	}
	updates := a.Services.Dashboards.Watch(ctx, identity, changes)

	select {
	case u := <-updates:
		if u.Err != nil {
			t.Fatalf("first composition failed: %v", u.Err)
		}
	case <-ctx.Done():
		t.Fatal("no initial dashboard")
	}

	if err := a.Auth.Revoke(ctx, identity); err != nil {
		t.Fatal(err)
	}
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-ctx.Done():
			t.Fatal("watch did not stop after sign out")
		}
	}
}
