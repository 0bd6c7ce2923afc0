package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
)

const paymentColumns = `id, service_id, user_id, amount, currency, status, method, phone,
	 provider_ref, transaction_id, receipt_number, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Method,
		&p.Phone,
		&p.ProviderRef,
		&p.TransactionID,
		&p.ReceiptNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InsertPayment creates a payment attempt in pending state. The partial
// unique index payments_one_in_flight backs the in-transaction check, so a
// concurrent initiate on the same order surfaces as ErrPaymentInProgress
// even across instances.
func InsertPayment(ctx context.Context, tx *sql.Tx, p *models.Payment) error {
	query := `
		INSERT INTO payments (service_id, user_id, amount, currency, status, method, phone,
		                      provider_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err := tx.QueryRowContext(ctx, query,
		p.OrderID,
		p.UserID,
		p.Amount,
		p.Currency,
		p.Status,
		p.Method,
		p.Phone,
		p.ProviderRef,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "payments_one_in_flight") {
			return database.ErrPaymentInProgress
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func GetPayment(ctx context.Context, db *sql.DB, id int64) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)

	p, err := scanPayment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return p, nil
}

// GetInFlightPayment returns the pending or processing payment for an order,
// if one exists.
func GetInFlightPayment(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE service_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1`, paymentColumns)

	p, err := scanPayment(tx.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get in-flight payment: %w", err)
	}

	return p, nil
}

// GetPaymentByProviderRef matches a callback to its payment by the provider
// request id issued at initiation.
func GetPaymentByProviderRef(ctx context.Context, tx *sql.Tx, ref string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE provider_ref = $1`, paymentColumns)

	p, err := scanPayment(tx.QueryRowContext(ctx, query, ref))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by provider ref: %w", err)
	}

	return p, nil
}

// GetLatestPaymentForOrderNumber is the fallback correlation path for
// providers that echo the account reference (the order number) instead of
// the request id.
func GetLatestPaymentForOrderNumber(ctx context.Context, tx *sql.Tx, orderNumber string) (*models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments p
		WHERE p.service_id = (SELECT id FROM services WHERE order_number = $1)
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT 1`, paymentColumnsAliased("p"))

	p, err := scanPayment(tx.QueryRowContext(ctx, query, orderNumber))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by order number: %w", err)
	}

	return p, nil
}

func paymentColumnsAliased(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.service_id, %[1]s.user_id, %[1]s.amount, %[1]s.currency,
	 %[1]s.status, %[1]s.method, %[1]s.phone, %[1]s.provider_ref, %[1]s.transaction_id,
	 %[1]s.receipt_number, %[1]s.created_at, %[1]s.updated_at`, alias)
}

// MarkPaymentProcessing records the provider's acknowledgement of the push
// request. CAS from pending only.
func MarkPaymentProcessing(ctx context.Context, db *sql.DB, id int64, providerRef string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE payments
		 SET status = 'processing', provider_ref = $1, updated_at = NOW()
		 WHERE id = $2 AND status = 'pending'`,
		providerRef, id)
	if err != nil {
		return fmt.Errorf("mark payment processing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrStaleTransition
	}

	return nil
}

// MarkPaymentFailed records an initiation rejection. CAS from pending so a
// callback that already settled the payment is never clobbered.
func MarkPaymentFailed(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE payments
		 SET status = 'failed', updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`,
		id)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrStaleTransition
	}

	return nil
}

// SettlePaymentCAS applies the terminal outcome of a callback: completed or
// failed, from pending/processing only. Returning false means another
// delivery already settled the payment.
func SettlePaymentCAS(ctx context.Context, tx *sql.Tx, id int64, status string, transactionID, receiptNumber *string) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = $1,
		     transaction_id = COALESCE($2, transaction_id),
		     receipt_number = COALESCE($3, receipt_number),
		     updated_at = NOW()
		 WHERE id = $4 AND status IN ('pending', 'processing')`,
		status, transactionID, receiptNumber, id)
	if err != nil {
		return false, fmt.Errorf("settle payment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func ListPaymentsForOrder(ctx context.Context, db *sql.DB, orderID int64) ([]models.Payment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payments
		WHERE service_id = $1
		ORDER BY created_at, id`, paymentColumns)

	rows, err := db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}
