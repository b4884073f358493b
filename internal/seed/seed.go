// Package seed loads a small demo storefront: one customer, one approved
// vendor with a menu, one pending applicant and an admin.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

const (
	CustomerID      = "demo-customer"
	VendorOwnerID   = "demo-vendor-owner"
	ApplicantID     = "demo-applicant"
	AdminID         = "demo-admin"
	VendorID        = "demo-vendor"
	PendingVendorID = "demo-pending-vendor"
	JollofID        = "demo-item-jollof"
	PlantainID      = "demo-item-plantain"
	PepperSoupID    = "demo-item-pepper-soup"
	SuyaID          = "demo-item-suya"
)

type Data struct {
	Users     []domain.User
	Vendors   []domain.Vendor
	MenuItems []domain.MenuItem
}

// Demo returns the demo rows stamped at now.
func Demo(now time.Time) Data {
	user := func(id, name, email string, role domain.Role) domain.User {
		return domain.User{ID: id, Name: name, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	}
	item := func(id, vendorID, name, category, price string, available bool, prep int) domain.MenuItem {
		return domain.MenuItem{
			ID: id, VendorID: vendorID, Name: name, Category: category,
			Price: decimal.RequireFromString(price), Available: available, PrepTime: prep,
			CreatedAt: now, UpdatedAt: now,
		}
	}

	return Data{
		Users: []domain.User{
			user(CustomerID, "Ada Obi", "ada@chopnow.test", domain.RoleCustomer),
			user(VendorOwnerID, "Chidi Eze", "chidi@chopnow.test", domain.RoleVendor),
			user(ApplicantID, "Dayo Ade", "dayo@chopnow.test", domain.RoleVendor),
			user(AdminID, "Eve Okoro", "eve@chopnow.test", domain.RoleAdmin),
		},
		Vendors: []domain.Vendor{
			{
				ID: VendorID, UserID: VendorOwnerID, Name: "Mama Put Kitchen",
				Description: "Home-style Nigerian meals", Status: domain.VendorStatusApproved,
				Phone: "+234 800 000 0001", Address: "12 Allen Avenue, Ikeja",
				CreatedAt: now, UpdatedAt: now,
			},
			{
				ID: PendingVendorID, UserID: ApplicantID, Name: "Suya Spot",
				Description: "Grilled skewers", Status: domain.VendorStatusPending,
				Address: "4 Bode Thomas Street, Surulere", CreatedAt: now, UpdatedAt: now,
			},
		},
		MenuItems: []domain.MenuItem{
			item(JollofID, VendorID, "Jollof Rice", "Rice", "12.50", true, 20),
			item(PlantainID, VendorID, "Fried Plantain", "Sides", "3.25", true, 10),
			item(PepperSoupID, VendorID, "Pepper Soup", "Soups", "9.00", false, 30),
			item(SuyaID, PendingVendorID, "Beef Suya", "Grill", "7.00", true, 15),
		},
	}
}

// Load inserts data. Rows that already exist are skipped, so Load can run
// against a store that was seeded before.
func Load(ctx context.Context, db port.DatabaseRepository, data Data) error {
	for _, u := range data.Users {
		if err := skipDuplicate(db.InsertUser(ctx, u)); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	for _, v := range data.Vendors {
		if err := skipDuplicate(db.InsertVendor(ctx, v)); err != nil {
			return fmt.Errorf("seed vendor %s: %w", v.ID, err)
		}
	}
	for _, it := range data.MenuItems {
		if err := skipDuplicate(db.InsertMenuItem(ctx, it)); err != nil {
			return fmt.Errorf("seed menu item %s: %w", it.ID, err)
		}
	}
	return nil
}

func skipDuplicate(err error) error {
	if errors.Is(err, port.ErrDuplicateKey) {
		return nil
	}
	return err
}
