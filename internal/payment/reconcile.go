package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/store"
)

// Outcome classifies what a callback did. Only Completed and Failed mutate
// state; the rest are internal signals for operators and are never surfaced
// to the provider.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeFailed         Outcome = "failed"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeNoMatch        Outcome = "no_match"
	OutcomeAmountMismatch Outcome = "amount_mismatch"
)

type ReconcileResult struct {
	Outcome   Outcome
	PaymentID int64
	OrderID   int64
}

// Reconciler matches an inbound callback to its payment and applies the
// at-most-once state transition. Both terminal writes are compare-and-swap
// statements guarded on the payment's current status, so concurrent
// deliveries of the same callback cannot both win.
type Reconciler struct {
	DB               *sql.DB
	SubscriptionTerm time.Duration
}

func NewReconciler(db *sql.DB) *Reconciler {
	return &Reconciler{DB: db, SubscriptionTerm: 30 * 24 * time.Hour}
}

// Apply runs the reconciliation policy for one parsed callback. The error
// return covers infrastructure failures only; policy failures come back as
// outcomes.
func (r *Reconciler) Apply(ctx context.Context, cb *CallbackResult) (*ReconcileResult, error) {
	result := &ReconcileResult{}

	err := database.WithRetry(ctx, r.DB, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		pmt, err := r.matchPayment(ctx, tx, cb)
		if err != nil {
			if errors.Is(err, database.ErrPaymentNotFound) {
				// Unsolicited callbacks never create payments.
				*result = ReconcileResult{Outcome: OutcomeNoMatch}
				return nil
			}
			return err
		}

		result.PaymentID = pmt.ID
		result.OrderID = pmt.OrderID

		switch pmt.Status {
		case models.PaymentStatusCompleted, models.PaymentStatusFailed, models.PaymentStatusRefunded:
			// Duplicate delivery of an already-settled payment: a no-op
			// success with the existing observable outcome.
			result.Outcome = OutcomeDuplicate
			return nil
		}

		if !cb.Success() {
			settled, err := store.SettlePaymentCAS(ctx, tx, pmt.ID, models.PaymentStatusFailed, nil, nil)
			if err != nil {
				return err
			}
			if !settled {
				result.Outcome = OutcomeDuplicate
				return nil
			}
			// The order stays pending and remains eligible for a fresh
			// payment attempt.
			result.Outcome = OutcomeFailed
			return nil
		}

		// A success callback reporting a different amount than the payment
		// recorded never completes it.
		if cb.HasAmount && !cb.Amount.Equal(pmt.Amount) {
			result.Outcome = OutcomeAmountMismatch
			return nil
		}

		var transactionID, receiptNumber *string
		if cb.TransactionID != "" {
			transactionID = &cb.TransactionID
		}
		if cb.ReceiptNumber != "" {
			receiptNumber = &cb.ReceiptNumber
		}

		settled, err := store.SettlePaymentCAS(ctx, tx, pmt.ID, models.PaymentStatusCompleted, transactionID, receiptNumber)
		if err != nil {
			return err
		}
		if !settled {
			result.Outcome = OutcomeDuplicate
			return nil
		}

		// Payment completion is what moves the order out of the unpaid
		// state. The CAS tolerates an order that an operator already
		// advanced.
		if _, err := store.AdvanceOrderStatusCAS(ctx, tx, pmt.OrderID,
			models.OrderStatusPending, models.OrderStatusPickupScheduled); err != nil {
			return err
		}

		ord, err := store.GetOrderForUpdate(ctx, tx, pmt.OrderID)
		if err != nil {
			return err
		}
		if ord.Plan == models.PlanSubscription {
			if _, err := store.ActivateSubscription(ctx, tx, pmt.UserID, pmt.OrderID, r.SubscriptionTerm); err != nil {
				return err
			}
		}

		result.Outcome = OutcomeCompleted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile callback: %w", err)
	}

	return result, nil
}

// matchPayment resolves the callback's correlation key: the provider request
// id stored at initiation, falling back to the account reference (the order
// number) for providers that echo that instead.
func (r *Reconciler) matchPayment(ctx context.Context, tx *sql.Tx, cb *CallbackResult) (*models.Payment, error) {
	if cb.ProviderRef != "" {
		pmt, err := store.GetPaymentByProviderRef(ctx, tx, cb.ProviderRef)
		if err == nil {
			return pmt, nil
		}
		if !errors.Is(err, database.ErrPaymentNotFound) {
			return nil, err
		}
	}

	if cb.AccountReference != "" {
		return store.GetLatestPaymentForOrderNumber(ctx, tx, cb.AccountReference)
	}

	return nil, database.ErrPaymentNotFound
}
