// Package order owns the order lifecycle: creation from a checkout
// selection and every status change afterward. Only this package and the
// payment reconciler mutate persisted order status.
package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/pricing"
	"github.com/safisha/laundry-api/internal/store"
	"github.com/shopspring/decimal"
)

type Manager struct {
	DB *sql.DB
}

func NewManager(db *sql.DB) *Manager {
	return &Manager{DB: db}
}

// CartSelection is the server-side view of what the user is buying. Prices
// for laundry plans are never taken from it; they are recomputed.
type CartSelection struct {
	Plan      models.Plan
	WeightKg  *decimal.Decimal
	Quantity  int
	UnitPrice decimal.Decimal
	PickupAt  *time.Time
	Address   string
	Notes     string
}

// CreateOrder validates the selection, recomputes the price and persists
// the order in pending state. Payment initiation is a separate call so
// order persistence never depends on provider availability.
func (m *Manager) CreateOrder(ctx context.Context, userID int64, sel CartSelection) (*models.Order, error) {
	ord := &models.Order{
		UserID:      userID,
		OrderNumber: store.NewOrderNumber(),
		Plan:        sel.Plan,
		Status:      models.OrderStatusPending,
		PickupAt:    sel.PickupAt,
		Address:     sel.Address,
		Notes:       sel.Notes,
	}

	if sel.Plan == models.PlanProduct {
		// Products are flat-priced catalog lines; there is no formula to
		// recompute from, so validate the line instead.
		if sel.Quantity < 1 {
			return nil, &pricing.ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
		}
		if sel.UnitPrice.LessThanOrEqual(decimal.Zero) {
			return nil, &pricing.ValidationError{Field: "unit_price", Message: "unit price must be positive"}
		}
		ord.UnitPrice = sel.UnitPrice
		ord.TotalPrice = sel.UnitPrice.Mul(decimal.NewFromInt(int64(sel.Quantity)))
	} else {
		quote, err := pricing.Price(sel.Plan, sel.WeightKg)
		if err != nil {
			return nil, err
		}
		ord.WeightKg = sel.WeightKg
		ord.UnitPrice = quote.UnitPrice
		ord.TotalPrice = quote.Total
	}

	err := database.WithRetry(ctx, m.DB, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		exists, err := store.UserExists(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return database.ErrUserNotFound
		}

		return store.InsertOrder(ctx, tx, ord)
	})
	if err != nil {
		return nil, err
	}

	return ord, nil
}

func (m *Manager) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	return store.GetOrder(ctx, m.DB, orderID)
}

func (m *Manager) List(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersCursor(ctx, m.DB, userID, cursor, limit)
}

// Transition applies a forward fulfillment move under a row lock so two
// operators cannot race the same order.
func (m *Manager) Transition(ctx context.Context, orderID int64, next string) (*models.Order, error) {
	err := database.WithRetry(ctx, m.DB, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		ord, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := CanTransition(ord.Status, next); err != nil {
			return err
		}

		return store.UpdateOrderStatus(ctx, tx, orderID, next)
	})
	if err != nil {
		return nil, err
	}

	return store.GetOrder(ctx, m.DB, orderID)
}

// Cancel applies the default cancellation policy.
func (m *Manager) Cancel(ctx context.Context, orderID int64) (*models.Order, error) {
	err := database.WithRetry(ctx, m.DB, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		ord, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}

		if err := CanCancel(ord.Status); err != nil {
			return err
		}

		return store.UpdateOrderStatus(ctx, tx, orderID, models.OrderStatusCanceled)
	})
	if err != nil {
		return nil, err
	}

	return store.GetOrder(ctx, m.DB, orderID)
}
