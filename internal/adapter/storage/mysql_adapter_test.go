package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/chopnow?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

// mysqlFixture inserts a customer, an approved vendor with one item and
// one pending order under ids unique to this run.
type mysqlFixture struct {
	customer domain.User
	vendor   domain.Vendor
	item     domain.MenuItem
	order    domain.Order
}

func newMySQLFixture(t *testing.T, adapter *MySQLAdapter) mysqlFixture {
	t.Helper()
	ctx := context.Background()
	run := time.Now().Format("150405.000000")
	now := time.Now().UTC().Truncate(time.Microsecond)

	f := mysqlFixture{
		customer: domain.User{ID: "tc-" + run, Name: "Ada", Email: "ada-" + run + "@test", Role: domain.RoleCustomer, CreatedAt: now, UpdatedAt: now},
	}
	owner := domain.User{ID: "to-" + run, Name: "Chidi", Email: "chidi-" + run + "@test", Role: domain.RoleVendor, CreatedAt: now, UpdatedAt: now}
	f.vendor = domain.Vendor{ID: "tv-" + run, UserID: owner.ID, Name: "Kitchen " + run, Status: domain.VendorStatusApproved,
		Address: "Ikeja", CreatedAt: now, UpdatedAt: now}
	f.item = domain.MenuItem{ID: "ti-" + run, VendorID: f.vendor.ID, Name: "Jollof " + run,
		Price: decimal.RequireFromString("12.50"), Available: true, CreatedAt: now, UpdatedAt: now}
	f.order = domain.Order{
		ID: "tord-" + run, UserID: f.customer.ID, VendorID: f.vendor.ID,
		Items:  []domain.LineItem{{MenuItemID: f.item.ID, Name: f.item.Name, Quantity: 2, Price: f.item.Price}},
		Total:  decimal.RequireFromString("25.00"),
		Status: domain.OrderStatusPending, DeliveryAddress: "1 Marina Road",
		CreatedAt: now, UpdatedAt: now,
	}

	for _, u := range []domain.User{f.customer, owner} {
		if err := adapter.InsertUser(ctx, u); err != nil {
			t.Fatalf("insert user: %v", err)
		}
	}
	if err := adapter.InsertVendor(ctx, f.vendor); err != nil {
		t.Fatalf("insert vendor: %v", err)
	}
	if err := adapter.InsertMenuItem(ctx, f.item); err != nil {
		t.Fatalf("insert menu item: %v", err)
	}
	if err := adapter.InsertOrder(ctx, f.order); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return f
}

func TestMySQL_QueryOrdersWithEmbeds(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := newMySQLFixture(t, adapter)

	orders, err := adapter.QueryOrders(ctx, port.Query{
		Filters: []port.Filter{port.Eq("user_id", f.customer.ID)},
		Embed:   []port.Relation{port.RelationVendor, port.RelationCustomer},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(orders))
	}

	got := orders[0]
	if !got.Total.Equal(f.order.Total) {
		t.Errorf("expected total %s, got %s", f.order.Total, got.Total)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 2 {
		t.Errorf("items not round-tripped: %+v", got.Items)
	}
	if got.Vendor == nil || got.Vendor.Name != f.vendor.Name {
		t.Errorf("vendor not embedded: %+v", got.Vendor)
	}
	if got.Customer == nil || got.Customer.Name != "Ada" {
		t.Errorf("customer not embedded: %+v", got.Customer)
	}
}

func TestMySQL_UpdateOrderStatus(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := newMySQLFixture(t, adapter)

	err := adapter.UpdateRow(ctx, port.EntityOrders, f.order.ID, port.Patch{
		"status":     string(domain.OrderStatusConfirmed),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	n, err := adapter.CountRows(ctx, port.EntityOrders,
		port.Eq("id", f.order.ID), port.Eq("status", string(domain.OrderStatusConfirmed)))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected confirmed order, count %d", n)
	}

	err = adapter.UpdateRow(ctx, port.EntityOrders, f.order.ID, port.Patch{"total_price": "1.00"})
	if !errors.Is(err, domain.ErrImmutableField) {
		t.Errorf("expected ErrImmutableField, got %v", err)
	}

	err = adapter.UpdateRow(ctx, port.EntityOrders, "missing-"+f.order.ID, port.Patch{"status": "confirmed"})
	if !errors.Is(err, ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}

func TestMySQL_DuplicateInsert(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	adapter := NewMySQLAdapter(db)
	f := newMySQLFixture(t, adapter)

	err := adapter.InsertOrder(context.Background(), f.order)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestMySQL_SearchEscapesWildcards(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := newMySQLFixture(t, adapter)

	items, err := adapter.QueryMenuItems(ctx, port.Query{
		Filters: []port.Filter{port.Eq("vendor_id", f.vendor.ID)},
		Any:     []port.Filter{port.ILike("name", "JOLLOF"), port.ILike("category", "JOLLOF")},
		Embed:   []port.Relation{port.RelationVendor},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Vendor == nil {
		t.Errorf("expected one item with vendor, got %+v", items)
	}

	items, err = adapter.QueryMenuItems(ctx, port.Query{
		Filters: []port.Filter{port.Eq("vendor_id", f.vendor.ID), port.ILike("name", "%")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("expected literal %% match to find nothing, got %d", len(items))
	}
}

func TestMySQL_UnknownStoredStatus(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	f := newMySQLFixture(t, adapter)

	if _, err := db.ExecContext(ctx, `UPDATE orders SET status = 'lost' WHERE id = ?`, f.order.ID); err != nil {
		t.Fatal(err)
	}

	_, err := adapter.QueryOrders(ctx, port.Query{Filters: []port.Filter{port.Eq("id", f.order.ID)}})
	if err == nil {
		t.Error("expected unknown status to fail the read")
	}
}

func TestBuildSelect(t *testing.T) {
	query, args, err := buildSelect(port.EntityOrders, "o.id", "", port.Query{
		Filters: []port.Filter{port.Eq("vendor_id", "v1"), port.In("status", "pending", "confirmed")},
		Any:     []port.Filter{port.ILike("id", "50%")},
		OrderBy: []port.Sort{{Field: "created_at", Desc: true}},
		Limit:   5,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "SELECT o.id FROM orders o WHERE o.vendor_id = ? AND o.status IN (?, ?) AND (LOWER(o.id) LIKE ?) ORDER BY o.created_at DESC LIMIT ?"
	if query != want {
		t.Errorf("unexpected query:\n got %s\nwant %s", query, want)
	}
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %v", args)
	}
	if args[3] != `%50\%%` {
		t.Errorf("expected escaped like pattern, got %v", args[3])
	}

	if _, _, err := buildSelect(port.EntityOrders, "o.id", "", port.Query{
		Filters: []port.Filter{port.Eq("total_price", "1")},
	}); err == nil {
		t.Error("expected unmapped field to be rejected")
	}
}
