package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
)

// ActivateSubscription records the 30-day window opened by a completed
// subscription-plan payment. Runs inside the reconciliation transaction so
// a duplicate callback can never open a second window.
func ActivateSubscription(ctx context.Context, tx *sql.Tx, userID, orderID int64, duration time.Duration) (*models.Subscription, error) {
	sub := &models.Subscription{}

	query := `
		INSERT INTO subscriptions (user_id, service_id, status, started_at, expires_at, created_at)
		VALUES ($1, $2, 'active', NOW(), NOW() + $3::interval, NOW())
		ON CONFLICT (service_id) DO NOTHING
		RETURNING id, user_id, service_id, status, started_at, expires_at, created_at`

	interval := fmt.Sprintf("%d seconds", int64(duration.Seconds()))
	err := tx.QueryRowContext(ctx, query, userID, orderID, interval).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.OrderID,
		&sub.Status,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Already activated for this order.
			return nil, nil
		}
		return nil, fmt.Errorf("activate subscription: %w", err)
	}

	return sub, nil
}

func GetActiveSubscription(ctx context.Context, db *sql.DB, userID int64) (*models.Subscription, error) {
	sub := &models.Subscription{}

	query := `
		SELECT id, user_id, service_id, status, started_at, expires_at, created_at
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1`

	err := db.QueryRowContext(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.OrderID,
		&sub.Status,
		&sub.StartedAt,
		&sub.ExpiresAt,
		&sub.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}

	return sub, nil
}
