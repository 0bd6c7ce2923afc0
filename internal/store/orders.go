package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
)

// Orders are persisted in the services table; the column set mirrors
// models.Order.

const orderColumns = `id, user_id, order_number, plan, weight_kg, unit_price, total_price,
	 status, pickup_at, delivery_at, address, notes, created_at, updated_at, version`

// NewOrderNumber generates the human-facing reference that also serves as
// the account reference echoed back by the payment provider.
func NewOrderNumber() string {
	return "LND-" + strings.ToUpper(uuid.NewString()[:8])
}

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.OrderNumber,
		&order.Plan,
		&order.WeightKg,
		&order.UnitPrice,
		&order.TotalPrice,
		&order.Status,
		&order.PickupAt,
		&order.DeliveryAt,
		&order.Address,
		&order.Notes,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func InsertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `
		INSERT INTO services (user_id, order_number, plan, weight_kg, unit_price, total_price,
		                      status, pickup_at, address, notes, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
		RETURNING id, created_at, updated_at, version`

	err := tx.QueryRowContext(ctx, query,
		order.UserID,
		order.OrderNumber,
		order.Plan,
		order.WeightKg,
		order.UnitPrice,
		order.TotalPrice,
		order.Status,
		order.PickupAt,
		order.Address,
		order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt, &order.Version)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM services WHERE id = $1`, orderColumns)

	order, err := scanOrder(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// GetOrderForUpdate locks the order row for the duration of the transaction.
// The fulfillment transition path uses it so two operators cannot race the
// same status change.
func GetOrderForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM services WHERE id = $1 FOR UPDATE`, orderColumns)

	order, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	return order, nil
}

func GetOrderByNumber(ctx context.Context, tx *sql.Tx, orderNumber string) (*models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM services WHERE order_number = $1`, orderColumns)

	order, err := scanOrder(tx.QueryRowContext(ctx, query, orderNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}

	return order, nil
}

// UpdateOrderStatus writes the new status and maintains the pickup/delivery
// timestamps that accompany the scheduling states.
func UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	query := `
		UPDATE services
		SET status = $1,
		    pickup_at = CASE WHEN $1 = 'pickup_scheduled' AND pickup_at IS NULL THEN NOW() ELSE pickup_at END,
		    delivery_at = CASE WHEN $1 IN ('delivery_scheduled', 'delivered') AND delivery_at IS NULL THEN NOW() ELSE delivery_at END,
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $2`

	result, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrOrderNotFound
	}

	return nil
}

// AdvanceOrderStatusCAS moves an order from one exact status to another.
// Zero rows affected means another writer got there first.
func AdvanceOrderStatusCAS(ctx context.Context, tx *sql.Tx, id int64, from, to string) (bool, error) {
	query := `
		UPDATE services
		SET status = $1,
		    pickup_at = CASE WHEN $1 = 'pickup_scheduled' AND pickup_at IS NULL THEN NOW() ELSE pickup_at END,
		    updated_at = NOW(),
		    version = version + 1
		WHERE id = $2 AND status = $3`

	result, err := tx.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("advance order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM services
		WHERE user_id = $1
		  AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, orderColumns)

	rows, err := db.QueryContext(ctx, query, userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
