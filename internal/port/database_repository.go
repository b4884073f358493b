package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/chopnow/storefront/internal/core/domain"
)

// Adapters wrap these so callers can tell constraint violations and missing
// rows apart from transport failures.
var (
	ErrDuplicateKey = errors.New("duplicate key")
	ErrRowNotFound  = errors.New("row not found")
)

type Entity string

const (
	EntityUsers     Entity = "users"
	EntityVendors   Entity = "vendors"
	EntityMenuItems Entity = "menu_items"
	EntityOrders    Entity = "orders"
	EntityReviews   Entity = "reviews"
)

type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpIn    Operator = "in"
	OpILike Operator = "ilike" // case-insensitive substring match
)

type Filter struct {
	Field string
	Op    Operator
	Value any
}

func Eq(field string, value any) Filter  { return Filter{Field: field, Op: OpEq, Value: value} }
func Neq(field string, value any) Filter { return Filter{Field: field, Op: OpNeq, Value: value} }
func In(field string, values ...string) Filter {
	return Filter{Field: field, Op: OpIn, Value: values}
}
func ILike(field, substr string) Filter { return Filter{Field: field, Op: OpILike, Value: substr} }

type Sort struct {
	Field string
	Desc  bool
}

type Relation string

const (
	RelationVendor   Relation = "vendor"   // orders, menu_items
	RelationCustomer Relation = "customer" // orders
)

// Query describes a select against one entity. Filters are ANDed; Any is an
// optional OR group ANDed with them.
type Query struct {
	Filters []Filter
	Any     []Filter
	OrderBy []Sort
	Limit   int
	Embed   []Relation
}

// Patch is a set of column updates for UpdateRow.
type Patch map[string]any

// mutable lists the columns UpdateRow may touch per entity.
var mutable = map[Entity]map[string]bool{
	EntityUsers:     {"name": true, "phone": true, "location": true, "updated_at": true},
	EntityVendors:   {"vendor_name": true, "description": true, "status": true, "image_url": true, "phone": true, "address": true, "updated_at": true},
	EntityMenuItems: {"name": true, "description": true, "price": true, "image_url": true, "available": true, "category": true, "prep_time": true, "updated_at": true},
	EntityOrders:    {"status": true, "updated_at": true},
	EntityReviews:   {},
}

// ValidatePatch rejects patches touching columns that are immutable for
// entity. Orders only ever change status and updated_at.
func ValidatePatch(entity Entity, patch Patch) error {
	allowed, ok := mutable[entity]
	if !ok {
		return fmt.Errorf("unknown entity %q", entity)
	}
	if len(patch) == 0 {
		return fmt.Errorf("empty patch for %s", entity)
	}
	for col := range patch {
		if !allowed[col] {
			return fmt.Errorf("%w: %s.%s", domain.ErrImmutableField, entity, col)
		}
	}
	return nil
}

type DatabaseRepository interface {
	QueryUsers(ctx context.Context, q Query) ([]domain.User, error)
	QueryVendors(ctx context.Context, q Query) ([]domain.Vendor, error)
	QueryMenuItems(ctx context.Context, q Query) ([]domain.MenuItem, error)
	QueryOrders(ctx context.Context, q Query) ([]domain.Order, error)

	// CountRows counts rows of entity matching all filters
	CountRows(ctx context.Context, entity Entity, filters ...Filter) (int, error)

	// UpdateRow applies patch to the row with the given id; returns
	// domain.ErrImmutableField for disallowed columns
	UpdateRow(ctx context.Context, entity Entity, id string, patch Patch) error

	InsertUser(ctx context.Context, user domain.User) error
	InsertVendor(ctx context.Context, vendor domain.Vendor) error
	InsertMenuItem(ctx context.Context, item domain.MenuItem) error
	InsertOrder(ctx context.Context, order domain.Order) error
	InsertReview(ctx context.Context, review domain.Review) error
}
