package order

import (
	"fmt"

	"github.com/safisha/laundry-api/internal/models"
)

// The fulfillment ladder. Forward moves may skip rungs (an operator can mark
// an order collected without a separate pickup_scheduled event), but never
// step backward, and terminal states admit no exit.
var statusRank = map[string]int{
	models.OrderStatusPending:           0,
	models.OrderStatusPickupScheduled:   1,
	models.OrderStatusCollected:         2,
	models.OrderStatusProcessing:        3,
	models.OrderStatusReadyForDelivery:  4,
	models.OrderStatusDeliveryScheduled: 5,
	models.OrderStatusDelivered:         6,
}

// InvalidTransitionError reports a status change that the state machine
// forbids. The order is left untouched.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func isTerminal(status string) bool {
	return status == models.OrderStatusDelivered || status == models.OrderStatusCanceled
}

// CanTransition validates a forward fulfillment move. Cancellation goes
// through CanCancel, not here.
func CanTransition(from, to string) error {
	if isTerminal(from) {
		return &InvalidTransitionError{From: from, To: to}
	}

	fromRank, ok := statusRank[from]
	if !ok {
		return &InvalidTransitionError{From: from, To: to}
	}
	toRank, ok := statusRank[to]
	if !ok {
		return &InvalidTransitionError{From: from, To: to}
	}

	if toRank <= fromRank {
		return &InvalidTransitionError{From: from, To: to}
	}

	return nil
}

// CanCancel applies the default cancellation policy: a customer may cancel
// only before the laundry is collected. Anything later needs an operator
// override, which is not automated here.
func CanCancel(from string) error {
	switch from {
	case models.OrderStatusPending, models.OrderStatusPickupScheduled:
		return nil
	}
	return &InvalidTransitionError{From: from, To: models.OrderStatusCanceled}
}
