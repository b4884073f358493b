package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultVendorRecentOrders = 5
	DefaultAdminRecentOrders  = 10
)

type CustomerStats struct {
	TotalOrders  int
	ActiveOrders int
	TotalSpent   decimal.Decimal
}

type VendorStats struct {
	TotalOrders   int
	PendingOrders int
	MenuItemCount int
	RecentOrders  []Order
}

type AdminStats struct {
	TotalUsers     int
	TotalVendors   int
	PendingVendors int
	TotalOrders    int
	TotalRevenue   decimal.Decimal
	RecentOrders   []Order
}

// AdminCounts are the figures an admin dashboard needs that orders cannot
// provide.
type AdminCounts struct {
	Users          int
	Vendors        int
	PendingVendors int
}

// SummarizeCustomer counts the orders placed by viewerID. An empty viewerID
// counts every order given.
func SummarizeCustomer(orders []Order, viewerID string) CustomerStats {
	stats := CustomerStats{TotalSpent: decimal.Zero}
	for _, o := range orders {
		if viewerID != "" && o.UserID != viewerID {
			continue
		}
		stats.TotalOrders++
		if !o.Status.IsTerminal() {
			stats.ActiveOrders++
		}
		stats.TotalSpent = stats.TotalSpent.Add(o.Total)
	}
	return stats
}

func SummarizeVendor(orders []Order, menuItemCount, recent int) VendorStats {
	stats := VendorStats{
		TotalOrders:   len(orders),
		MenuItemCount: menuItemCount,
		RecentOrders:  RecentOrders(orders, recent),
	}
	for _, o := range orders {
		if o.Status == OrderStatusPending {
			stats.PendingOrders++
		}
	}
	return stats
}

func SummarizeAdmin(orders []Order, counts AdminCounts, recent int) AdminStats {
	stats := AdminStats{
		TotalUsers:     counts.Users,
		TotalVendors:   counts.Vendors,
		PendingVendors: counts.PendingVendors,
		TotalOrders:    len(orders),
		TotalRevenue:   decimal.Zero,
		RecentOrders:   RecentOrders(orders, recent),
	}
	for _, o := range orders {
		stats.TotalRevenue = stats.TotalRevenue.Add(o.Total)
	}
	return stats
}

// RecentOrders returns at most n orders, newest first. The input is not
// modified.
func RecentOrders(orders []Order, n int) []Order {
	if n <= 0 || len(orders) == 0 {
		return []Order{}
	}
	sorted := slices.Clone(orders)
	slices.SortStableFunc(sorted, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type Dashboard struct {
	Role       Role
	Customer   *CustomerStats
	Vendor     *VendorStats
	Admin      *AdminStats
	Degraded   bool
	Notice     string
	ComposedAt time.Time
}

// EmptyDashboard returns the zero-valued dashboard for role.
func EmptyDashboard(role Role) Dashboard {
	d := Dashboard{Role: role}
	switch role {
	case RoleCustomer:
		d.Customer = &CustomerStats{TotalSpent: decimal.Zero}
	case RoleVendor:
		d.Vendor = &VendorStats{RecentOrders: []Order{}}
	case RoleAdmin:
		d.Admin = &AdminStats{TotalRevenue: decimal.Zero, RecentOrders: []Order{}}
	}
	return d
}
