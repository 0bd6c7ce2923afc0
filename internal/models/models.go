package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// Profile is the 1:1 delivery profile attached to a user.
type Profile struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Plan is the pricing tier of an order.
type Plan string

const (
	PlanBasic        Plan = "basic"
	PlanPremium      Plan = "premium"
	PlanSubscription Plan = "subscription"
	PlanProduct      Plan = "product"
)

// PerKilogram reports whether the plan is priced by weight. Per-kg orders
// must carry a weight; flat-priced orders must not.
func (p Plan) PerKilogram() bool {
	return p == PlanBasic || p == PlanPremium
}

func (p Plan) Valid() bool {
	switch p {
	case PlanBasic, PlanPremium, PlanSubscription, PlanProduct:
		return true
	}
	return false
}

// Order is a purchased laundry plan or product awaiting fulfillment.
// Persisted in the services table.
type Order struct {
	ID          int64            `json:"id"`
	UserID      int64            `json:"user_id"`
	OrderNumber string           `json:"order_number"`
	Plan        Plan             `json:"plan"`
	WeightKg    *decimal.Decimal `json:"weight_kg,omitempty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TotalPrice  decimal.Decimal  `json:"total_price"`
	Status      string           `json:"status"`
	PickupAt    *time.Time       `json:"pickup_at,omitempty"`
	DeliveryAt  *time.Time       `json:"delivery_at,omitempty"`
	Address     string           `json:"address,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Version     int              `json:"version"`
}

const (
	OrderStatusPending           = "pending"
	OrderStatusPickupScheduled   = "pickup_scheduled"
	OrderStatusCollected         = "collected"
	OrderStatusProcessing        = "processing"
	OrderStatusReadyForDelivery  = "ready_for_delivery"
	OrderStatusDeliveryScheduled = "delivery_scheduled"
	OrderStatusDelivered         = "delivered"
	OrderStatusCanceled          = "canceled"
)

// Payment is one attempt to settle an order's price. An order may carry many
// attempts but at most one completed one.
type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	Method        string          `json:"method"`
	Phone         string          `json:"phone"`
	ProviderRef   string          `json:"provider_ref,omitempty"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	ReceiptNumber *string         `json:"receipt_number,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

type Subscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	SubscriptionStatusActive  = "active"
	SubscriptionStatusExpired = "expired"
)
