package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

const mysqlDuplicateEntry = 1062

// table maps query fields onto qualified columns. Only mapped fields can
// be filtered or sorted on.
type table struct {
	name   string
	alias  string
	fields map[string]string
}

var tables = map[port.Entity]table{
	port.EntityUsers: {name: "users", alias: "u", fields: map[string]string{
		"id": "u.id", "name": "u.name", "email": "u.email", "role": "u.role", "created_at": "u.created_at",
	}},
	port.EntityVendors: {name: "vendors", alias: "v", fields: map[string]string{
		"id": "v.id", "user_id": "v.user_id", "vendor_name": "v.vendor_name", "description": "v.description",
		"status": "v.status", "address": "v.address", "created_at": "v.created_at",
	}},
	port.EntityMenuItems: {name: "menu_items", alias: "m", fields: map[string]string{
		"id": "m.id", "vendor_id": "m.vendor_id", "name": "m.name", "description": "m.description",
		"category": "m.category", "available": "m.available", "created_at": "m.created_at",
	}},
	port.EntityOrders: {name: "orders", alias: "o", fields: map[string]string{
		"id": "o.id", "user_id": "o.user_id", "vendor_id": "o.vendor_id", "status": "o.status",
		"created_at": "o.created_at", "updated_at": "o.updated_at",
	}},
	port.EntityReviews: {name: "reviews", alias: "r", fields: map[string]string{
		"id": "r.id", "user_id": "r.user_id", "vendor_id": "r.vendor_id", "order_id": "r.order_id",
	}},
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) QueryUsers(ctx context.Context, q port.Query) ([]domain.User, error) {
	query, args, err := buildSelect(port.EntityUsers,
		"u.id, u.name, u.email, u.role, u.phone, u.location, u.created_at, u.updated_at", "", q)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		var role string
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Phone, &u.Location, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if u.Role, err = domain.ParseRole(role); err != nil {
			return nil, fmt.Errorf("user %s: %w", u.ID, err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (m *MySQLAdapter) QueryVendors(ctx context.Context, q port.Query) ([]domain.Vendor, error) {
	query, args, err := buildSelect(port.EntityVendors,
		"v.id, v.user_id, v.vendor_name, v.description, v.status, v.image_url, v.phone, v.address, v.created_at, v.updated_at", "", q)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	defer rows.Close()

	vendors := []domain.Vendor{}
	for rows.Next() {
		var v domain.Vendor
		if err := rows.Scan(&v.ID, &v.UserID, &v.Name, &v.Description, &v.Status, &v.ImageURL,
			&v.Phone, &v.Address, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (m *MySQLAdapter) QueryMenuItems(ctx context.Context, q port.Query) ([]domain.MenuItem, error) {
	cols := "m.id, m.vendor_id, m.name, m.description, m.price, m.image_url, m.available, m.category, m.prep_time, m.created_at, m.updated_at"
	join := ""
	embedVendor := slices.Contains(q.Embed, port.RelationVendor)
	if embedVendor {
		cols += ", v.vendor_name, v.address, v.phone"
		join = " LEFT JOIN vendors v ON v.id = m.vendor_id"
	}

	query, args, err := buildSelect(port.EntityMenuItems, cols, join, q)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query menu items: %w", err)
	}
	defer rows.Close()

	items := []domain.MenuItem{}
	for rows.Next() {
		var it domain.MenuItem
		dest := []any{&it.ID, &it.VendorID, &it.Name, &it.Description, &it.Price, &it.ImageURL,
			&it.Available, &it.Category, &it.PrepTime, &it.CreatedAt, &it.UpdatedAt}
		var vName, vAddr, vPhone sql.NullString
		if embedVendor {
			dest = append(dest, &vName, &vAddr, &vPhone)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if embedVendor && vName.Valid {
			it.Vendor = &domain.VendorSummary{Name: vName.String, Address: vAddr.String, Phone: vPhone.String}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (m *MySQLAdapter) QueryOrders(ctx context.Context, q port.Query) ([]domain.Order, error) {
	cols := "o.id, o.user_id, o.vendor_id, o.items, o.total_price, o.status, o.delivery_address, o.notes, o.created_at, o.updated_at"
	var join strings.Builder
	embedVendor := slices.Contains(q.Embed, port.RelationVendor)
	embedCustomer := slices.Contains(q.Embed, port.RelationCustomer)
	if embedVendor {
		cols += ", v.vendor_name, v.address, v.phone"
		join.WriteString(" LEFT JOIN vendors v ON v.id = o.vendor_id")
	}
	if embedCustomer {
		cols += ", u.name"
		join.WriteString(" LEFT JOIN users u ON u.id = o.user_id")
	}

	query, args, err := buildSelect(port.EntityOrders, cols, join.String(), q)
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var (
			o                    domain.Order
			items                []byte
			status               string
			vName, vAddr, vPhone sql.NullString
			uName                sql.NullString
		)
		dest := []any{&o.ID, &o.UserID, &o.VendorID, &items, &o.Total, &status, &o.DeliveryAddress,
			&o.Notes, &o.CreatedAt, &o.UpdatedAt}
		if embedVendor {
			dest = append(dest, &vName, &vAddr, &vPhone)
		}
		if embedCustomer {
			dest = append(dest, &uName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		if o.Status, err = parseStoredStatus(status); err != nil {
			return nil, fmt.Errorf("order %s: %w", o.ID, err)
		}
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("order %s items: %w", o.ID, err)
		}
		if vName.Valid {
			o.Vendor = &domain.VendorSummary{Name: vName.String, Address: vAddr.String, Phone: vPhone.String}
		}
		if uName.Valid {
			o.Customer = &domain.UserSummary{Name: uName.String}
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) CountRows(ctx context.Context, entity port.Entity, filters ...port.Filter) (int, error) {
	query, args, err := buildSelect(entity, "COUNT(*)", "", port.Query{Filters: filters})
	if err != nil {
		return 0, err
	}

	var n int
	if err := m.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	return n, nil
}

func (m *MySQLAdapter) UpdateRow(ctx context.Context, entity port.Entity, id string, patch port.Patch) error {
	if err := port.ValidatePatch(entity, patch); err != nil {
		return err
	}
	t := tables[entity]

	cols := make([]string, 0, len(patch))
	for col := range patch {
		cols = append(cols, col)
	}
	slices.Sort(cols)

	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, patch[col])
	}
	args = append(args, id)

	result, err := m.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, strings.Join(sets, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// MySQL reports 0 for unchanged rows too, so confirm the row exists.
		n, err := m.CountRows(ctx, entity, port.Eq("id", id))
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s/%s", ErrRowNotFound, entity, id)
		}
	}
	return nil
}

func (m *MySQLAdapter) InsertUser(ctx context.Context, u domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, phone, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Role, u.Phone, u.Location, u.CreatedAt, u.UpdatedAt,
	)
	return insertErr("users", err)
}

func (m *MySQLAdapter) InsertVendor(ctx context.Context, v domain.Vendor) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO vendors (id, user_id, vendor_name, description, status, image_url, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Name, v.Description, v.Status, v.ImageURL, v.Phone, v.Address, v.CreatedAt, v.UpdatedAt,
	)
	return insertErr("vendors", err)
}

func (m *MySQLAdapter) InsertMenuItem(ctx context.Context, it domain.MenuItem) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO menu_items (id, vendor_id, name, description, price, image_url, available, category, prep_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.VendorID, it.Name, it.Description, it.Price, it.ImageURL, it.Available, it.Category,
		it.PrepTime, it.CreatedAt, it.UpdatedAt,
	)
	return insertErr("menu_items", err)
}

func (m *MySQLAdapter) InsertOrder(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, vendor_id, items, total_price, status, delivery_address, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.VendorID, items, o.Total, o.Status, o.DeliveryAddress, o.Notes, o.CreatedAt, o.UpdatedAt,
	)
	return insertErr("orders", err)
}

func (m *MySQLAdapter) InsertReview(ctx context.Context, r domain.Review) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO reviews (id, user_id, vendor_id, order_id, rating, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.VendorID, r.OrderID, r.Rating, r.Comment, r.CreatedAt,
	)
	return insertErr("reviews", err)
}

func insertErr(tableName string, err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s: %s", ErrDuplicateKey, tableName, myErr.Message)
	}
	return fmt.Errorf("insert %s: %w", tableName, err)
}

// parseStoredStatus accepts canonical values and falls back to the legacy
// five-state names older rows were written with.
func parseStoredStatus(s string) (domain.OrderStatus, error) {
	if st, err := domain.ParseStatus(s); err == nil {
		return st, nil
	}
	return domain.ParseLegacyStatus(s)
}

func buildSelect(entity port.Entity, cols, join string, q port.Query) (string, []any, error) {
	t, ok := tables[entity]
	if !ok {
		return "", nil, fmt.Errorf("unknown entity %q", entity)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s %s%s", cols, t.name, t.alias, join)

	var (
		conds []string
		args  []any
	)
	for _, f := range q.Filters {
		cond, a, err := buildCond(t, f)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, a...)
	}
	if len(q.Any) > 0 {
		var ors []string
		for _, f := range q.Any {
			cond, a, err := buildCond(t, f)
			if err != nil {
				return "", nil, err
			}
			ors = append(ors, cond)
			args = append(args, a...)
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}

	if len(q.OrderBy) > 0 {
		var parts []string
		for _, s := range q.OrderBy {
			col, ok := t.fields[s.Field]
			if !ok {
				return "", nil, fmt.Errorf("unknown sort field %q on %s", s.Field, entity)
			}
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			parts = append(parts, col+" "+dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

func buildCond(t table, f port.Filter) (string, []any, error) {
	col, ok := t.fields[f.Field]
	if !ok {
		return "", nil, fmt.Errorf("unknown filter field %q on %s", f.Field, t.name)
	}

	switch f.Op {
	case port.OpEq:
		return col + " = ?", []any{f.Value}, nil
	case port.OpNeq:
		return col + " <> ?", []any{f.Value}, nil
	case port.OpIn:
		values, ok := f.Value.([]string)
		if !ok {
			return "", nil, fmt.Errorf("in filter on %q needs []string", f.Field)
		}
		if len(values) == 0 {
			return "1 = 0", nil, nil
		}
		args := make([]any, len(values))
		for i, v := range values {
			args[i] = v
		}
		return col + " IN (?" + strings.Repeat(", ?", len(values)-1) + ")", args, nil
	case port.OpILike:
		return "LOWER(" + col + ") LIKE ?", []any{"%" + escapeLike(strings.ToLower(asString(f.Value))) + "%"}, nil
	}
	return "", nil, fmt.Errorf("unknown operator %q", f.Op)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
