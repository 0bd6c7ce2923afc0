// Package pricing is the single authority on what an order costs. Checkout
// and payment initiation both call it on the server side; prices arriving
// from clients are never trusted.
package pricing

import (
	"errors"
	"fmt"

	"github.com/safisha/laundry-api/internal/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidPlan = errors.New("invalid plan")

var (
	basicRatePerKg   = decimal.NewFromInt(50)
	premiumRatePerKg = decimal.NewFromInt(80)
	subscriptionFlat = decimal.NewFromInt(6000)
	minimumWeightKg  = decimal.NewFromInt(1)
)

// ValidationError reports policy-violating input. It is returned to the
// caller verbatim and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Quote is the result of pricing one order line.
type Quote struct {
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

// Price computes the cost of a plan. Per-kilogram plans require a weight of
// at least 1 kg; flat plans must be called without a weight. Deterministic,
// no I/O.
func Price(plan models.Plan, weightKg *decimal.Decimal) (Quote, error) {
	switch plan {
	case models.PlanBasic:
		return perKgQuote(basicRatePerKg, weightKg)
	case models.PlanPremium:
		return perKgQuote(premiumRatePerKg, weightKg)
	case models.PlanSubscription:
		if weightKg != nil {
			return Quote{}, &ValidationError{Field: "weight_kg", Message: "subscription plans are flat-priced, weight must be absent"}
		}
		return Quote{UnitPrice: subscriptionFlat, Total: subscriptionFlat}, nil
	default:
		return Quote{}, fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
}

func perKgQuote(rate decimal.Decimal, weightKg *decimal.Decimal) (Quote, error) {
	if weightKg == nil {
		return Quote{}, &ValidationError{Field: "weight_kg", Message: "weight is required for per-kilogram plans"}
	}
	if weightKg.LessThan(minimumWeightKg) {
		return Quote{}, &ValidationError{Field: "weight_kg", Message: "weight must be at least 1 kg"}
	}
	return Quote{UnitPrice: rate, Total: rate.Mul(*weightKg)}, nil
}
