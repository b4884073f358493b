package storage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

var (
	ErrDuplicateKey = port.ErrDuplicateKey
	ErrRowNotFound  = port.ErrRowNotFound
)

// sortableTime keeps a fixed width so string order matches time order.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// MemoryAdapter is an in-process DatabaseRepository. Values are compared
// as strings, which is enough for ids, enums and timestamps.
type MemoryAdapter struct {
	mu        sync.RWMutex
	users     []domain.User
	vendors   []domain.Vendor
	menuItems []domain.MenuItem
	orders    []domain.Order
	reviews   []domain.Review
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{}
}

func (m *MemoryAdapter) QueryUsers(ctx context.Context, q port.Query) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return selectRows(m.users, q, userField)
}

func (m *MemoryAdapter) QueryVendors(ctx context.Context, q port.Query) ([]domain.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return selectRows(m.vendors, q, vendorField)
}

func (m *MemoryAdapter) QueryMenuItems(ctx context.Context, q port.Query) ([]domain.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items, err := selectRows(m.menuItems, q, menuItemField)
	if err != nil {
		return nil, err
	}
	if slices.Contains(q.Embed, port.RelationVendor) {
		for i := range items {
			items[i].Vendor = m.vendorSummary(items[i].VendorID)
		}
	}
	return items, nil
}

func (m *MemoryAdapter) QueryOrders(ctx context.Context, q port.Query) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders, err := selectRows(m.orders, q, orderField)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = slices.Clone(orders[i].Items)
		if slices.Contains(q.Embed, port.RelationVendor) {
			orders[i].Vendor = m.vendorSummary(orders[i].VendorID)
		}
		if slices.Contains(q.Embed, port.RelationCustomer) {
			orders[i].Customer = m.userSummary(orders[i].UserID)
		}
	}
	return orders, nil
}

func (m *MemoryAdapter) CountRows(ctx context.Context, entity port.Entity, filters ...port.Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := port.Query{Filters: filters}
	var (
		n   int
		err error
	)
	switch entity {
	case port.EntityUsers:
		n, err = countRows(m.users, q, userField)
	case port.EntityVendors:
		n, err = countRows(m.vendors, q, vendorField)
	case port.EntityMenuItems:
		n, err = countRows(m.menuItems, q, menuItemField)
	case port.EntityOrders:
		n, err = countRows(m.orders, q, orderField)
	case port.EntityReviews:
		n, err = countRows(m.reviews, q, reviewField)
	default:
		return 0, fmt.Errorf("unknown entity %q", entity)
	}
	return n, err
}

func (m *MemoryAdapter) UpdateRow(ctx context.Context, entity port.Entity, id string, patch port.Patch) error {
	if err := port.ValidatePatch(entity, patch); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch entity {
	case port.EntityUsers:
		i := slices.IndexFunc(m.users, func(u domain.User) bool { return u.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: users/%s", ErrRowNotFound, id)
		}
		return applyUserPatch(&m.users[i], patch)
	case port.EntityVendors:
		i := slices.IndexFunc(m.vendors, func(v domain.Vendor) bool { return v.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: vendors/%s", ErrRowNotFound, id)
		}
		return applyVendorPatch(&m.vendors[i], patch)
	case port.EntityMenuItems:
		i := slices.IndexFunc(m.menuItems, func(it domain.MenuItem) bool { return it.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: menu_items/%s", ErrRowNotFound, id)
		}
		return applyMenuItemPatch(&m.menuItems[i], patch)
	case port.EntityOrders:
		i := slices.IndexFunc(m.orders, func(o domain.Order) bool { return o.ID == id })
		if i < 0 {
			return fmt.Errorf("%w: orders/%s", ErrRowNotFound, id)
		}
		return applyOrderPatch(&m.orders[i], patch)
	}
	return fmt.Errorf("update not supported for %s", entity)
}

func (m *MemoryAdapter) InsertUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.users, func(u domain.User) bool { return u.ID == user.ID || u.Email == user.Email }) {
		return fmt.Errorf("%w: users/%s", ErrDuplicateKey, user.ID)
	}
	m.users = append(m.users, user)
	return nil
}

func (m *MemoryAdapter) InsertVendor(ctx context.Context, vendor domain.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.vendors, func(v domain.Vendor) bool { return v.ID == vendor.ID || v.UserID == vendor.UserID }) {
		return fmt.Errorf("%w: vendors/%s", ErrDuplicateKey, vendor.ID)
	}
	m.vendors = append(m.vendors, vendor)
	return nil
}

func (m *MemoryAdapter) InsertMenuItem(ctx context.Context, item domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.menuItems, func(it domain.MenuItem) bool { return it.ID == item.ID }) {
		return fmt.Errorf("%w: menu_items/%s", ErrDuplicateKey, item.ID)
	}
	item.Vendor = nil
	m.menuItems = append(m.menuItems, item)
	return nil
}

func (m *MemoryAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.orders, func(o domain.Order) bool { return o.ID == order.ID }) {
		return fmt.Errorf("%w: orders/%s", ErrDuplicateKey, order.ID)
	}
	order.Items = slices.Clone(order.Items)
	order.Vendor, order.Customer = nil, nil
	m.orders = append(m.orders, order)
	return nil
}

func (m *MemoryAdapter) InsertReview(ctx context.Context, review domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.ContainsFunc(m.reviews, func(r domain.Review) bool { return r.ID == review.ID || r.OrderID == review.OrderID }) {
		return fmt.Errorf("%w: reviews/%s", ErrDuplicateKey, review.ID)
	}
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *MemoryAdapter) vendorSummary(id string) *domain.VendorSummary {
	for _, v := range m.vendors {
		if v.ID == id {
			return &domain.VendorSummary{Name: v.Name, Address: v.Address, Phone: v.Phone}
		}
	}
	return nil
}

func (m *MemoryAdapter) userSummary(id string) *domain.UserSummary {
	for _, u := range m.users {
		if u.ID == id {
			return &domain.UserSummary{Name: u.Name}
		}
	}
	return nil
}

type fieldFunc[T any] func(row T, field string) (string, bool)

func selectRows[T any](rows []T, q port.Query, field fieldFunc[T]) ([]T, error) {
	out := []T{}
	for _, row := range rows {
		ok, err := matches(row, q, field)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}

	for _, s := range q.OrderBy {
		if _, ok := field(*new(T), s.Field); !ok {
			return nil, fmt.Errorf("unknown sort field %q", s.Field)
		}
	}
	slices.SortStableFunc(out, func(a, b T) int {
		for _, s := range q.OrderBy {
			av, _ := field(a, s.Field)
			bv, _ := field(b, s.Field)
			c := strings.Compare(av, bv)
			if s.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func countRows[T any](rows []T, q port.Query, field fieldFunc[T]) (int, error) {
	n := 0
	for _, row := range rows {
		ok, err := matches(row, q, field)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func matches[T any](row T, q port.Query, field fieldFunc[T]) (bool, error) {
	for _, f := range q.Filters {
		ok, err := match(row, f, field)
		if err != nil || !ok {
			return false, err
		}
	}
	if len(q.Any) == 0 {
		return true, nil
	}
	for _, f := range q.Any {
		ok, err := match(row, f, field)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func match[T any](row T, f port.Filter, field fieldFunc[T]) (bool, error) {
	v, ok := field(row, f.Field)
	if !ok {
		return false, fmt.Errorf("unknown filter field %q", f.Field)
	}
	switch f.Op {
	case port.OpEq:
		return v == asString(f.Value), nil
	case port.OpNeq:
		return v != asString(f.Value), nil
	case port.OpIn:
		values, ok := f.Value.([]string)
		if !ok {
			return false, fmt.Errorf("in filter on %q needs []string", f.Field)
		}
		return slices.Contains(values, v), nil
	case port.OpILike:
		return strings.Contains(strings.ToLower(v), strings.ToLower(asString(f.Value))), nil
	}
	return false, fmt.Errorf("unknown operator %q", f.Op)
}

func asString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(sortableTime)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func userField(u domain.User, field string) (string, bool) {
	switch field {
	case "id":
		return u.ID, true
	case "name":
		return u.Name, true
	case "email":
		return u.Email, true
	case "role":
		return string(u.Role), true
	case "created_at":
		return asString(u.CreatedAt), true
	}
	return "", false
}

func vendorField(v domain.Vendor, field string) (string, bool) {
	switch field {
	case "id":
		return v.ID, true
	case "user_id":
		return v.UserID, true
	case "vendor_name":
		return v.Name, true
	case "description":
		return v.Description, true
	case "status":
		return string(v.Status), true
	case "address":
		return v.Address, true
	case "created_at":
		return asString(v.CreatedAt), true
	}
	return "", false
}

func menuItemField(it domain.MenuItem, field string) (string, bool) {
	switch field {
	case "id":
		return it.ID, true
	case "vendor_id":
		return it.VendorID, true
	case "name":
		return it.Name, true
	case "description":
		return it.Description, true
	case "category":
		return it.Category, true
	case "available":
		return strconv.FormatBool(it.Available), true
	case "created_at":
		return asString(it.CreatedAt), true
	}
	return "", false
}

func orderField(o domain.Order, field string) (string, bool) {
	switch field {
	case "id":
		return o.ID, true
	case "user_id":
		return o.UserID, true
	case "vendor_id":
		return o.VendorID, true
	case "status":
		return string(o.Status), true
	case "created_at":
		return asString(o.CreatedAt), true
	case "updated_at":
		return asString(o.UpdatedAt), true
	}
	return "", false
}

func reviewField(r domain.Review, field string) (string, bool) {
	switch field {
	case "id":
		return r.ID, true
	case "user_id":
		return r.UserID, true
	case "vendor_id":
		return r.VendorID, true
	case "order_id":
		return r.OrderID, true
	}
	return "", false
}

func applyUserPatch(u *domain.User, patch port.Patch) error {
	for col, v := range patch {
		switch col {
		case "name":
			u.Name = asString(v)
		case "phone":
			u.Phone = asString(v)
		case "location":
			u.Location = asString(v)
		case "updated_at":
			t, err := asTime(v)
			if err != nil {
				return err
			}
			u.UpdatedAt = t
		}
	}
	return nil
}

func applyVendorPatch(vd *domain.Vendor, patch port.Patch) error {
	for col, v := range patch {
		switch col {
		case "vendor_name":
			vd.Name = asString(v)
		case "description":
			vd.Description = asString(v)
		case "status":
			vd.Status = domain.VendorStatus(asString(v))
		case "image_url":
			vd.ImageURL = asString(v)
		case "phone":
			vd.Phone = asString(v)
		case "address":
			vd.Address = asString(v)
		case "updated_at":
			t, err := asTime(v)
			if err != nil {
				return err
			}
			vd.UpdatedAt = t
		}
	}
	return nil
}

func applyMenuItemPatch(it *domain.MenuItem, patch port.Patch) error {
	for col, v := range patch {
		switch col {
		case "name":
			it.Name = asString(v)
		case "description":
			it.Description = asString(v)
		case "image_url":
			it.ImageURL = asString(v)
		case "category":
			it.Category = asString(v)
		case "available":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("available must be bool, got %T", v)
			}
			it.Available = b
		case "price":
			d, err := decimal.NewFromString(asString(v))
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			it.Price = d
		case "prep_time":
			n, ok := v.(int)
			if !ok {
				return fmt.Errorf("prep_time must be int, got %T", v)
			}
			it.PrepTime = n
		case "updated_at":
			t, err := asTime(v)
			if err != nil {
				return err
			}
			it.UpdatedAt = t
		}
	}
	return nil
}

func applyOrderPatch(o *domain.Order, patch port.Patch) error {
	for col, v := range patch {
		switch col {
		case "status":
			o.Status = domain.OrderStatus(asString(v))
		case "updated_at":
			t, err := asTime(v)
			if err != nil {
				return err
			}
			o.UpdatedAt = t
		}
	}
	return nil
}

func asTime(v any) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("expected time.Time, got %T", v)
	}
	return t, nil
}
