package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/safisha/laundry-api/internal/database"
	"github.com/safisha/laundry-api/internal/models"
	"github.com/safisha/laundry-api/internal/pricing"
	"github.com/safisha/laundry-api/internal/store"
	"github.com/shopspring/decimal"
)

// InitiationError is surfaced to the UI when the provider rejected the push
// or was unreachable, so the user can retry.
type InitiationError struct {
	Message string
	Err     error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("payment initiation failed: %s", e.Message)
}

func (e *InitiationError) Unwrap() error { return e.Err }

type InitiateResult struct {
	PaymentID int64
	RequestID string
	Message   string
}

// Gateway owns payment initiation and the inbound callback endpoint for one
// provider integration.
type Gateway struct {
	DB         *sql.DB
	Provider   Provider
	Currency   string
	Reconciler *Reconciler
}

func NewGateway(db *sql.DB, provider Provider, currency string) *Gateway {
	return &Gateway{
		DB:         db,
		Provider:   provider,
		Currency:   currency,
		Reconciler: NewReconciler(db),
	}
}

// Initiate creates a pending payment for the order and pushes the charge to
// the provider. The order's total is recomputed from its persisted
// plan/weight and must match the requested amount; client-supplied amounts
// never reach the provider unchecked.
func (g *Gateway) Initiate(ctx context.Context, orderID int64, amount decimal.Decimal, phoneNumber string) (*InitiateResult, error) {
	msisdn, err := NormalizeMSISDN(phoneNumber)
	if err != nil {
		return nil, err
	}

	pmt := &models.Payment{
		OrderID:  orderID,
		Amount:   amount,
		Currency: g.Currency,
		Status:   models.PaymentStatusPending,
		Method:   g.Provider.Name(),
		Phone:    msisdn,
	}

	var accountReference string

	err = database.WithRetry(ctx, g.DB, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		ord, err := store.GetOrderForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if ord.Status != models.OrderStatusPending {
			return &pricing.ValidationError{Field: "order_id", Message: "order is not awaiting payment"}
		}

		if ord.Plan != models.PlanProduct {
			quote, err := pricing.Price(ord.Plan, ord.WeightKg)
			if err != nil {
				return err
			}
			if !quote.Total.Equal(ord.TotalPrice) {
				return &pricing.ValidationError{Field: "amount", Message: "stored total does not match plan pricing"}
			}
		}
		if !amount.Equal(ord.TotalPrice) {
			return &pricing.ValidationError{Field: "amount", Message: "amount does not match order total"}
		}

		if _, err := store.GetInFlightPayment(ctx, tx, orderID); err == nil {
			return database.ErrPaymentInProgress
		} else if !errors.Is(err, database.ErrPaymentNotFound) {
			return err
		}

		pmt.UserID = ord.UserID
		accountReference = ord.OrderNumber
		return store.InsertPayment(ctx, tx, pmt)
	})
	if err != nil {
		return nil, err
	}

	resp, err := g.Provider.Push(ctx, PushRequest{
		Amount:           amount,
		MSISDN:           msisdn,
		AccountReference: accountReference,
		Description:      "Laundry order " + accountReference,
	})
	if err != nil {
		var provErr *ProviderError
		switch {
		case errors.As(err, &provErr):
			// Application-level rejection: the attempt is dead.
			if failErr := store.MarkPaymentFailed(ctx, g.DB, pmt.ID); failErr != nil {
				log.Printf("mark payment %d failed: %v", pmt.ID, failErr)
			}
			message := provErr.Message
			if message == "" {
				message = "payment provider rejected the request"
			}
			return nil, &InitiationError{Message: message, Err: err}
		case IsTimeout(err):
			// The push may still have gone through; leave the payment
			// pending so a late callback can complete it.
			return nil, &InitiationError{Message: "payment provider timed out, status pending", Err: err}
		default:
			if failErr := store.MarkPaymentFailed(ctx, g.DB, pmt.ID); failErr != nil {
				log.Printf("mark payment %d failed: %v", pmt.ID, failErr)
			}
			return nil, &InitiationError{Message: "payment provider unreachable", Err: err}
		}
	}

	if err := store.MarkPaymentProcessing(ctx, g.DB, pmt.ID, resp.RequestID); err != nil {
		// A very fast callback may already have settled the payment; the
		// push itself succeeded either way.
		if !errors.Is(err, database.ErrStaleTransition) {
			return nil, err
		}
	}

	return &InitiateResult{
		PaymentID: pmt.ID,
		RequestID: resp.RequestID,
		Message:   resp.Message,
	}, nil
}

// HandleCallback processes one inbound provider webhook. It never returns
// an error to the caller-facing response path: parse failures and
// reconciliation failures are logged for operators, and the HTTP layer
// always acknowledges success to keep the provider from retry-storming.
func (g *Gateway) HandleCallback(ctx context.Context, body []byte) *ReconcileResult {
	cb, err := g.Provider.ParseCallback(body)
	if err != nil {
		log.Printf("callback parse failure (%s): %v", g.Provider.Name(), err)
		return &ReconcileResult{Outcome: OutcomeNoMatch}
	}

	result, err := g.Reconciler.Apply(ctx, cb)
	if err != nil {
		log.Printf("callback reconciliation error (%s, ref=%s): %v", g.Provider.Name(), cb.ProviderRef, err)
		return &ReconcileResult{Outcome: OutcomeNoMatch}
	}

	switch result.Outcome {
	case OutcomeCompleted, OutcomeFailed:
		log.Printf("payment %d reconciled: %s", result.PaymentID, result.Outcome)
	default:
		log.Printf("reconciliation failure (%s): outcome=%s ref=%s account=%s",
			g.Provider.Name(), result.Outcome, cb.ProviderRef, cb.AccountReference)
	}

	return result
}
