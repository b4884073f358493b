package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopnow/storefront/internal/app"
	"github.com/chopnow/storefront/internal/config"
	"github.com/chopnow/storefront/internal/core/domain"
	"github.com/chopnow/storefront/internal/core/service"
	"github.com/chopnow/storefront/internal/logging"
	"github.com/chopnow/storefront/internal/seed"
)

const (
	distinctCarts = 20
	totalRequests = 100
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(cfg)

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open app")
	}
	defer a.Close()

	if err := seed.Load(ctx, a.DB, seed.Demo(time.Now().UTC())); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed")
	}

	customer := &domain.Identity{UserID: seed.CustomerID, Role: domain.RoleCustomer}
	vendor := &domain.Identity{UserID: seed.VendorOwnerID, Role: domain.RoleVendor}
	run := uuid.NewString()

	var (
		successCount   atomic.Int32
		duplicateCount atomic.Int32
		failCount      atomic.Int32
		mu             sync.Mutex
		placed         []domain.Order
	)

	// Every cart key is submitted totalRequests/distinctCarts times at once;
	// exactly one submission per key may produce an order.
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			order, err := a.Services.Orders.Checkout(ctx, customer, service.CheckoutRequest{
				IdempotencyKey:  fmt.Sprintf("%s-%d", run, i%distinctCarts),
				VendorID:        seed.VendorID,
				Items:           []service.CheckoutLine{{MenuItemID: seed.JollofID, Quantity: 1}},
				DeliveryAddress: "1 Marina Road, Lagos",
			})
			switch {
			case err == nil:
				successCount.Add(1)
				mu.Lock()
				placed = append(placed, order)
				mu.Unlock()
			case errors.Is(err, domain.ErrDuplicateRequest):
				duplicateCount.Add(1)
			default:
				failCount.Add(1)
				logger.Warn().Err(err).Msg("checkout failed")
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	success, duplicate, fail := successCount.Load(), duplicateCount.Load(), failCount.Load()

	fmt.Println("========== CHECKOUT BURST RESULTS ==========")
	fmt.Printf("Distinct Carts:   %d\n", distinctCarts)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Placed:           %d\n", success)
	fmt.Printf("Duplicates:       %d\n", duplicate)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("============================================")

	if success == distinctCarts && duplicate == totalRequests-distinctCarts && fail == 0 {
		fmt.Printf("PASS: exactly one order per cart\n")
	} else {
		fmt.Printf("FAIL: expected %d placed/%d duplicates, got %d/%d (%d failed)\n",
			distinctCarts, totalRequests-distinctCarts, success, duplicate, fail)
	}

	if len(placed) == 0 {
		return
	}

	// Walk one order to delivered and check it lands in the customer's totals.
	order := placed[0]
	for {
		next, ok := order.Status.Next()
		if !ok {
			break
		}
		if order, err = a.Services.Orders.Transition(ctx, vendor, order.ID, next); err != nil {
			fmt.Printf("FAIL: transition to %s: %v\n", next, err)
			return
		}
	}

	dash, err := a.Services.Dashboards.Compose(ctx, customer)
	if err != nil {
		fmt.Printf("FAIL: compose dashboard: %v\n", err)
		return
	}
	fmt.Printf("Order %s:        %s\n", order.ID, order.Status)
	fmt.Printf("Customer Spent:   %s\n", dash.Customer.TotalSpent.StringFixed(2))

	if order.Status == domain.OrderStatusDelivered && dash.Customer.TotalSpent.GreaterThanOrEqual(decimal.RequireFromString("12.50")) {
		fmt.Println("PASS: delivered order counted in dashboard")
	} else {
		fmt.Println("FAIL: delivered order missing from dashboard")
	}
}
