package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/order"
	"github.com/safisha/laundry-api/internal/pricing"
	"github.com/safisha/laundry-api/internal/store"
	"github.com/shopspring/decimal"
)

func createTestUser(t *testing.T, db *sql.DB, email string) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, email, "Test User", "254700000000")
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func weightOf(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCheckoutCreatesPricedOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "checkout@example.com")
	orders := order.NewManager(db)

	ord, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:     models.PlanBasic,
		WeightKg: weightOf("4"),
		Address:  "12 Riverside Drive",
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if ord.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if ord.OrderNumber == "" {
		t.Error("Order number should be set")
	}
	if ord.Status != models.OrderStatusPending {
		t.Errorf("Expected status pending, got %s", ord.Status)
	}
	if !ord.TotalPrice.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected total 200, got %s", ord.TotalPrice)
	}
	if ord.WeightKg == nil || !ord.WeightKg.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected weight 4, got %v", ord.WeightKg)
	}
}

func TestCheckoutRecomputesTamperedPrice(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "tamper@example.com")
	orders := order.NewManager(db)

	// The selection carries a bogus unit price; for laundry plans it must
	// be ignored and the total recomputed from (plan, weight).
	ord, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:      models.PlanPremium,
		WeightKg:  weightOf("2"),
		UnitPrice: decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !ord.TotalPrice.Equal(decimal.NewFromInt(160)) {
		t.Errorf("Expected recomputed total 160, got %s", ord.TotalPrice)
	}
}

func TestCheckoutValidation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "validation@example.com")
	orders := order.NewManager(db)

	tests := []struct {
		name string
		sel  order.CartSelection
	}{
		{"missing weight", order.CartSelection{Plan: models.PlanBasic}},
		{"zero weight", order.CartSelection{Plan: models.PlanBasic, WeightKg: weightOf("0")}},
		{"negative weight", order.CartSelection{Plan: models.PlanPremium, WeightKg: weightOf("-3")}},
		{"weight on subscription", order.CartSelection{Plan: models.PlanSubscription, WeightKg: weightOf("2")}},
		{"product without quantity", order.CartSelection{Plan: models.PlanProduct, UnitPrice: decimal.NewFromInt(100)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := orders.CreateOrder(ctx, user.ID, tt.sel)
			var vErr *pricing.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("Expected validation error, got: %v", err)
			}
		})
	}

	_, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{Plan: models.Plan("express"), WeightKg: weightOf("2")})
	if !errors.Is(err, pricing.ErrInvalidPlan) {
		t.Errorf("Expected invalid plan error, got: %v", err)
	}
}

func TestFulfillmentLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "lifecycle@example.com")
	orders := order.NewManager(db)

	ord, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:     models.PlanBasic,
		WeightKg: weightOf("5"),
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	sequence := []string{
		models.OrderStatusPickupScheduled,
		models.OrderStatusCollected,
		models.OrderStatusProcessing,
		models.OrderStatusReadyForDelivery,
		models.OrderStatusDeliveryScheduled,
		models.OrderStatusDelivered,
	}

	for _, next := range sequence {
		updated, err := orders.Transition(ctx, ord.ID, next)
		if err != nil {
			t.Fatalf("Transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Errorf("Expected status %s, got %s", next, updated.Status)
		}
	}

	final, err := orders.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if final.PickupAt == nil {
		t.Error("Pickup timestamp should be set after pickup_scheduled")
	}
	if final.DeliveryAt == nil {
		t.Error("Delivery timestamp should be set after delivery_scheduled")
	}

	// Terminal state admits no exit.
	_, err = orders.Transition(ctx, ord.ID, models.OrderStatusPickupScheduled)
	var tErr *order.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Errorf("Expected invalid transition error, got: %v", err)
	}
}

func TestBackwardTransitionRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "backward@example.com")
	orders := order.NewManager(db)

	ord, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:     models.PlanBasic,
		WeightKg: weightOf("2"),
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	// Forward skip is allowed.
	if _, err := orders.Transition(ctx, ord.ID, models.OrderStatusProcessing); err != nil {
		t.Fatalf("Forward skip pending -> processing: %v", err)
	}

	_, err = orders.Transition(ctx, ord.ID, models.OrderStatusPickupScheduled)
	var tErr *order.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Errorf("Expected invalid transition error, got: %v", err)
	}

	current, err := orders.Get(ctx, ord.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if current.Status != models.OrderStatusProcessing {
		t.Errorf("Status should be unchanged at processing, got %s", current.Status)
	}
}

func TestCancelPolicy(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "cancel@example.com")
	orders := order.NewManager(db)

	pending, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:     models.PlanBasic,
		WeightKg: weightOf("2"),
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	canceled, err := orders.Cancel(ctx, pending.ID)
	if err != nil {
		t.Fatalf("Cancel pending order: %v", err)
	}
	if canceled.Status != models.OrderStatusCanceled {
		t.Errorf("Expected canceled, got %s", canceled.Status)
	}

	collected, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
		Plan:     models.PlanBasic,
		WeightKg: weightOf("2"),
	})
	if err != nil {
		t.Fatalf("Create second order: %v", err)
	}
	if _, err := orders.Transition(ctx, collected.ID, models.OrderStatusCollected); err != nil {
		t.Fatalf("Transition to collected: %v", err)
	}

	_, err = orders.Cancel(ctx, collected.ID)
	var tErr *order.InvalidTransitionError
	if !errors.As(err, &tErr) {
		t.Errorf("Cancel after collection should fail, got: %v", err)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	user := createTestUser(t, db, "list@example.com")
	orders := order.NewManager(db)

	for i := 0; i < 15; i++ {
		_, err := orders.CreateOrder(ctx, user.ID, order.CartSelection{
			Plan:     models.PlanBasic,
			WeightKg: weightOf(fmt.Sprintf("%d", i+1)),
		})
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}

	page1, err := orders.List(ctx, user.ID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}
	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := orders.List(ctx, user.ID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}
	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
}
