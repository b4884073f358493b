package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
)

// Money leaves the API as a fixed two-decimal string; sums stay exact
// until this point.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type lineView struct {
	MenuItemID string `json:"menu_item_id,omitempty"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Price      string `json:"price"`
	Subtotal   string `json:"subtotal"`
}

type orderView struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	VendorID        string                `json:"vendor_id"`
	Items           []lineView            `json:"items"`
	Total           string                `json:"total_price"`
	Status          domain.OrderStatus    `json:"status"`
	DeliveryAddress string                `json:"delivery_address"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Vendor          *domain.VendorSummary `json:"vendors,omitempty"`
	Customer        *domain.UserSummary   `json:"users,omitempty"`
}

func newOrderView(o domain.Order) orderView {
	lines := make([]lineView, len(o.Items))
	for i, it := range o.Items {
		lines[i] = lineView{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			Price:      money(it.Price),
			Subtotal:   money(it.Subtotal()),
		}
	}
	return orderView{
		ID:              o.ID,
		UserID:          o.UserID,
		VendorID:        o.VendorID,
		Items:           lines,
		Total:           money(o.Total),
		Status:          o.Status,
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Vendor:          o.Vendor,
		Customer:        o.Customer,
	}
}

func newOrderViews(orders []domain.Order) []orderView {
	views := make([]orderView, len(orders))
	for i, o := range orders {
		views[i] = newOrderView(o)
	}
	return views
}

type menuItemView struct {
	ID          string                `json:"id"`
	VendorID    string                `json:"vendor_id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Price       string                `json:"price"`
	ImageURL    string                `json:"image_url,omitempty"`
	Available   bool                  `json:"available"`
	Category    string                `json:"category,omitempty"`
	PrepTime    int                   `json:"prep_time,omitempty"`
	Vendor      *domain.VendorSummary `json:"vendors,omitempty"`
}

func newMenuItemViews(items []domain.MenuItem) []menuItemView {
	views := make([]menuItemView, len(items))
	for i, it := range items {
		views[i] = newMenuItemView(it)
	}
	return views
}

func newMenuItemView(it domain.MenuItem) menuItemView {
	return menuItemView{
		ID:          it.ID,
		VendorID:    it.VendorID,
		Name:        it.Name,
		Description: it.Description,
		Price:       money(it.Price),
		ImageURL:    it.ImageURL,
		Available:   it.Available,
		Category:    it.Category,
		PrepTime:    it.PrepTime,
		Vendor:      it.Vendor,
	}
}

type catalogView struct {
	Vendors []domain.Vendor `json:"vendors"`
	Items   []menuItemView  `json:"menu_items"`
}

func newCatalogView(res service.CatalogResult) catalogView {
	vendors := res.Vendors
	if vendors == nil {
		vendors = []domain.Vendor{}
	}
	return catalogView{Vendors: vendors, Items: newMenuItemViews(res.Items)}
}

type myOrdersView struct {
	Active []orderView `json:"active"`
	Past   []orderView `json:"past"`
}

type customerStatsView struct {
	TotalOrders  int    `json:"total_orders"`
	ActiveOrders int    `json:"active_orders"`
	TotalSpent   string `json:"total_spent"`
}

type vendorStatsView struct {
	TotalOrders   int         `json:"total_orders"`
	PendingOrders int         `json:"pending_orders"`
	MenuItemCount int         `json:"menu_item_count"`
	RecentOrders  []orderView `json:"recent_orders"`
}

type adminStatsView struct {
	TotalUsers     int         `json:"total_users"`
	TotalVendors   int         `json:"total_vendors"`
	PendingVendors int         `json:"pending_vendors"`
	TotalOrders    int         `json:"total_orders"`
	TotalRevenue   string      `json:"total_revenue"`
	RecentOrders   []orderView `json:"recent_orders"`
}

type dashboardView struct {
	Role       domain.Role `json:"role"`
	Stats      any         `json:"stats"`
	Degraded   bool        `json:"degraded"`
	Notice     string      `json:"notice,omitempty"`
	ComposedAt time.Time   `json:"composed_at"`
}

func newDashboardView(d domain.Dashboard) dashboardView {
	view := dashboardView{
		Role:       d.Role,
		Degraded:   d.Degraded,
		Notice:     d.Notice,
		ComposedAt: d.ComposedAt,
	}
	switch {
	case d.Customer != nil:
		view.Stats = customerStatsView{
			TotalOrders:  d.Customer.TotalOrders,
			ActiveOrders: d.Customer.ActiveOrders,
			TotalSpent:   money(d.Customer.TotalSpent),
		}
	case d.Vendor != nil:
		view.Stats = vendorStatsView{
			TotalOrders:   d.Vendor.TotalOrders,
			PendingOrders: d.Vendor.PendingOrders,
			MenuItemCount: d.Vendor.MenuItemCount,
			RecentOrders:  newOrderViews(d.Vendor.RecentOrders),
		}
	case d.Admin != nil:
		view.Stats = adminStatsView{
			TotalUsers:     d.Admin.TotalUsers,
			TotalVendors:   d.Admin.TotalVendors,
			PendingVendors: d.Admin.PendingVendors,
			TotalOrders:    d.Admin.TotalOrders,
			TotalRevenue:   money(d.Admin.TotalRevenue),
			RecentOrders:   newOrderViews(d.Admin.RecentOrders),
		}
	}
	return view
}
