package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

var memBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newSeededMemory(t *testing.T) *MemoryAdapter {
	t.Helper()
	ctx := context.Background()
	m := NewMemoryAdapter()

	users := []domain.User{
		{ID: "u1", Name: "Ada", Email: "ada@test", Role: domain.RoleCustomer, CreatedAt: memBase},
		{ID: "u2", Name: "Chidi", Email: "chidi@test", Role: domain.RoleVendor, CreatedAt: memBase},
	}
	for _, u := range users {
		if err := m.InsertUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.InsertVendor(ctx, domain.Vendor{ID: "v1", UserID: "u2", Name: "Mama Put", Status: domain.VendorStatusApproved, Address: "Ikeja", CreatedAt: memBase}); err != nil {
		t.Fatal(err)
	}
	items := []domain.MenuItem{
		{ID: "i1", VendorID: "v1", Name: "Jollof Rice", Category: "Rice", Price: decimal.RequireFromString("12.50"), Available: true, CreatedAt: memBase},
		{ID: "i2", VendorID: "v1", Name: "Pepper Soup", Category: "Soups", Price: decimal.RequireFromString("9.00"), CreatedAt: memBase.Add(time.Minute)},
	}
	for _, it := range items {
		if err := m.InsertMenuItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}
	for i, status := range []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		err := m.InsertOrder(ctx, domain.Order{
			ID: fmt.Sprintf("o%d", i+1), UserID: "u1", VendorID: "v1",
			Items:     []domain.LineItem{{MenuItemID: "i1", Name: "Jollof Rice", Quantity: 1, Price: decimal.RequireFromString("12.50")}},
			Total:     decimal.RequireFromString("12.50"),
			Status:    status,
			CreatedAt: memBase.Add(time.Duration(i) * time.Hour),
			UpdatedAt: memBase.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return m
}

func TestMemoryQueryOrders_FilterSortLimit(t *testing.T) {
	m := newSeededMemory(t)

	orders, err := m.QueryOrders(context.Background(), port.Query{
		Filters: []port.Filter{port.Eq("user_id", "u1"), port.Neq("status", string(domain.OrderStatusCancelled))},
		OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
		Limit:   1,
		Embed:   []port.Relation{port.RelationVendor, port.RelationCustomer},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].ID != "o2" {
		t.Fatalf("expected newest non-cancelled order o2, got %+v", orders)
	}
	if orders[0].Vendor == nil || orders[0].Vendor.Name != "Mama Put" {
		t.Errorf("vendor not embedded: %+v", orders[0].Vendor)
	}
	if orders[0].Customer == nil || orders[0].Customer.Name != "Ada" {
		t.Errorf("customer not embedded: %+v", orders[0].Customer)
	}
}

func TestMemoryQuery_ReturnsCopies(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()

	orders, _ := m.QueryOrders(ctx, port.Query{Filters: []port.Filter{port.Eq("id", "o1")}})
	orders[0].Items[0].Quantity = 99
	orders[0].Status = domain.OrderStatusDelivered

	again, _ := m.QueryOrders(ctx, port.Query{Filters: []port.Filter{port.Eq("id", "o1")}})
	if again[0].Items[0].Quantity != 1 || again[0].Status != domain.OrderStatusPending {
		t.Errorf("stored order mutated through query result: %+v", again[0])
	}
}

func TestMemoryQueryMenuItems_AnyGroup(t *testing.T) {
	m := newSeededMemory(t)

	items, err := m.QueryMenuItems(context.Background(), port.Query{
		Any:   []port.Filter{port.ILike("name", "SOUP"), port.ILike("category", "soup")},
		Embed: []port.Relation{port.RelationVendor},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "i2" || items[0].Vendor == nil {
		t.Errorf("expected pepper soup with vendor, got %+v", items)
	}

	items, _ = m.QueryMenuItems(context.Background(), port.Query{Filters: []port.Filter{port.Eq("available", true)}})
	if len(items) != 1 || items[0].ID != "i1" {
		t.Errorf("expected only the available item, got %+v", items)
	}
}

func TestMemoryQuery_UnknownField(t *testing.T) {
	m := newSeededMemory(t)

	if _, err := m.QueryOrders(context.Background(), port.Query{Filters: []port.Filter{port.Eq("total_price", "1")}}); err == nil {
		t.Error("expected unknown filter field to fail")
	}
	if _, err := m.QueryOrders(context.Background(), port.Query{OrderBy: []port.Sort{{Field: "notes"}}}); err == nil {
		t.Error("expected unknown sort field to fail")
	}
}

func TestMemoryCountRows(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()

	tests := []struct {
		entity  port.Entity
		filters []port.Filter
		want    int
	}{
		{port.EntityUsers, nil, 2},
		{port.EntityVendors, []port.Filter{port.Eq("status", "approved")}, 1},
		{port.EntityMenuItems, []port.Filter{port.Eq("vendor_id", "v1")}, 2},
		{port.EntityOrders, []port.Filter{port.In("status", "delivered", "cancelled")}, 2},
		{port.EntityReviews, nil, 0},
	}
	for _, tt := range tests {
		got, err := m.CountRows(ctx, tt.entity, tt.filters...)
		if err != nil {
			t.Fatalf("%s: %v", tt.entity, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.entity, tt.want, got)
		}
	}
}

func TestMemoryUpdateRow(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()
	later := memBase.Add(24 * time.Hour)

	err := m.UpdateRow(ctx, port.EntityOrders, "o1", port.Patch{"status": string(domain.OrderStatusConfirmed), "updated_at": later})
	if err != nil {
		t.Fatal(err)
	}
	orders, _ := m.QueryOrders(ctx, port.Query{Filters: []port.Filter{port.Eq("id", "o1")}})
	if orders[0].Status != domain.OrderStatusConfirmed || !orders[0].UpdatedAt.Equal(later) {
		t.Errorf("update not applied: %+v", orders[0])
	}

	if err := m.UpdateRow(ctx, port.EntityOrders, "o1", port.Patch{"user_id": "u2"}); !errors.Is(err, domain.ErrImmutableField) {
		t.Errorf("expected ErrImmutableField, got %v", err)
	}
	if err := m.UpdateRow(ctx, port.EntityOrders, "nope", port.Patch{"status": "confirmed"}); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
	if err := m.UpdateRow(ctx, port.EntityMenuItems, "i2", port.Patch{"available": "yes"}); err == nil {
		t.Error("expected non-bool availability to fail")
	}
}

func TestMemoryInsert_Duplicates(t *testing.T) {
	m := newSeededMemory(t)
	ctx := context.Background()

	if err := m.InsertUser(ctx, domain.User{ID: "u9", Email: "ada@test"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected duplicate email to fail, got %v", err)
	}
	if err := m.InsertVendor(ctx, domain.Vendor{ID: "v9", UserID: "u2"}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected second vendor for owner to fail, got %v", err)
	}

	review := domain.Review{ID: "r1", UserID: "u1", VendorID: "v1", OrderID: "o2", Rating: 5}
	if err := m.InsertReview(ctx, review); err != nil {
		t.Fatal(err)
	}
	review.ID = "r2"
	if err := m.InsertReview(ctx, review); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected second review for order to fail, got %v", err)
	}
}
