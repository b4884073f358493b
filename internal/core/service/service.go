package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/port"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs the struct tags on v and folds failures into
// domain.ErrInvalidInput, naming each offending field.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

func newID() string {
	return uuid.NewString()
}

func requireIdentity(identity *domain.Identity) error {
	if identity == nil || identity.UserID == "" {
		return domain.ErrUnauthenticated
	}
	return nil
}

// vendorFor returns the vendor row owned by userID, or ok=false when the
// user has none.
func vendorFor(ctx context.Context, db port.DatabaseRepository, userID string) (domain.Vendor, bool, error) {
	vendors, err := db.QueryVendors(ctx, port.Query{
		Filters: []port.Filter{port.Eq("user_id", userID)},
		Limit:   1,
	})
	if err != nil {
		return domain.Vendor{}, false, domain.Collaborator("query vendor profile", err)
	}
	if len(vendors) == 0 {
		return domain.Vendor{}, false, nil
	}
	return vendors[0], true, nil
}

// viewerFor resolves identity into a Viewer. Vendors without a profile get
// an empty VendorID and therefore no staff actions.
func viewerFor(ctx context.Context, db port.DatabaseRepository, identity *domain.Identity) (domain.Viewer, error) {
	viewer := domain.Viewer{UserID: identity.UserID, Role: identity.Role}
	if identity.Role != domain.RoleVendor {
		return viewer, nil
	}
	vendor, ok, err := vendorFor(ctx, db, identity.UserID)
	if err != nil {
		return domain.Viewer{}, err
	}
	if ok {
		viewer.VendorID = vendor.ID
	}
	return viewer, nil
}

func loadOrder(ctx context.Context, db port.DatabaseRepository, orderID string) (domain.Order, error) {
	orders, err := db.QueryOrders(ctx, port.Query{
		Filters: []port.Filter{port.Eq("id", orderID)},
		Limit:   1,
		Embed:   []port.Relation{port.RelationVendor, port.RelationCustomer},
	})
	if err != nil {
		return domain.Order{}, domain.Collaborator("query order", err)
	}
	if len(orders) == 0 {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return orders[0], nil
}

func loadVendor(ctx context.Context, db port.DatabaseRepository, vendorID string) (domain.Vendor, error) {
	vendors, err := db.QueryVendors(ctx, port.Query{
		Filters: []port.Filter{port.Eq("id", vendorID)},
		Limit:   1,
	})
	if err != nil {
		return domain.Vendor{}, domain.Collaborator("query vendor", err)
	}
	if len(vendors) == 0 {
		return domain.Vendor{}, fmt.Errorf("%w: %s", domain.ErrVendorNotFound, vendorID)
	}
	return vendors[0], nil
}
