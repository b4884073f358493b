package seed

import (
	"context"
	"testing"
	"time"

	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/port"
)

func TestLoad_IsRepeatable(t *testing.T) {
	ctx := context.Background()
	db := storage.NewMemoryAdapter()
	data := Demo(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		if err := Load(ctx, db, data); err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}

	counts := map[port.Entity]int{
		port.EntityUsers:     len(data.Users),
		port.EntityVendors:   len(data.Vendors),
		port.EntityMenuItems: len(data.MenuItems),
	}
	for entity, want := range counts {
		got, err := db.CountRows(ctx, entity)
		if err != nil {
			t.Fatalf("count %s: %v", entity, err)
		}
		if got != want {
			t.Errorf("expected %d %s, got %d", want, entity, got)
		}
	}
}
