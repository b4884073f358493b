package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/adapter/auth"
	"github.com/chopnow/storefront/internal/adapter/events"
	"github.com/chopnow/storefront/internal/adapter/storage"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
	"github.com/chopnow/storefront/internal/seed"
)

type testEnv struct {
	server   *httptest.Server
	db       *storage.MemoryAdapter
	cache    *storage.MemoryCache
	auth     *auth.Authenticator
	services Services

	customer  string
	vendor    string
	applicant string
	admin     string
}

func newTestEnv(t *testing.T, limiter *RateLimiter) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db := storage.NewMemoryAdapter()
	if err := seed.Load(ctx, db, seed.Demo(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	cache := storage.NewMemoryCache()
	authenticator := auth.NewAuthenticator("test-secret", cache, cache, time.Hour, logger)

	svc := Services{
		Orders:     service.NewOrderService(db, cache, events.NewLogPublisher(logger), logger),
		Dashboards: service.NewDashboardService(db, logger, domain.DefaultVendorRecentOrders, domain.DefaultAdminRecentOrders),
		Vendors:    service.NewVendorService(db, cache, logger),
		Catalog:    service.NewCatalogService(db, logger),
		Reviews:    service.NewReviewService(db, logger),
		Users:      service.NewUserService(db, logger),
	}
	if limiter == nil {
		limiter = NewRateLimiter(1000, 1000)
	}
	h := NewHTTPHandler(svc, authenticator, cache, limiter, logger)

	env := &testEnv{
		server:   httptest.NewServer(h.Routes()),
		db:       db,
		cache:    cache,
		auth:     authenticator,
		services: svc,
	}
	t.Cleanup(env.server.Close)

	env.customer = env.token(t, seed.CustomerID, domain.RoleCustomer)
	env.vendor = env.token(t, seed.VendorOwnerID, domain.RoleVendor)
	env.applicant = env.token(t, seed.ApplicantID, domain.RoleVendor)
	env.admin = env.token(t, seed.AdminID, domain.RoleAdmin)
	return env
}

func (e *testEnv) token(t *testing.T, userID string, role domain.Role) string {
	t.Helper()
	token, _, err := e.auth.Issue(context.Background(), userID, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

// insertOrder stores an order from the demo customer at the demo vendor.
func (e *testEnv) insertOrder(t *testing.T, id string, status domain.OrderStatus) {
	t.Helper()
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	price := decimal.RequireFromString("12.50")
	err := e.db.InsertOrder(context.Background(), domain.Order{
		ID:              id,
		UserID:          seed.CustomerID,
		VendorID:        seed.VendorID,
		Items:           []domain.LineItem{{MenuItemID: seed.JollofID, Name: "Jollof Rice", Quantity: 2, Price: price}},
		Total:           price.Mul(decimal.NewFromInt(2)),
		Status:          status,
		DeliveryAddress: "1 Marina Road",
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
}

// do sends a JSON request and decodes a JSON object response.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}
