package order

import (
	"testing"

	"github.com/safisha/laundry-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var forwardSequence = []string{
	models.OrderStatusPending,
	models.OrderStatusPickupScheduled,
	models.OrderStatusCollected,
	models.OrderStatusProcessing,
	models.OrderStatusReadyForDelivery,
	models.OrderStatusDeliveryScheduled,
	models.OrderStatusDelivered,
}

func TestForwardSequenceReachesDelivered(t *testing.T) {
	for i := 0; i < len(forwardSequence)-1; i++ {
		assert.NoError(t, CanTransition(forwardSequence[i], forwardSequence[i+1]),
			"%s -> %s", forwardSequence[i], forwardSequence[i+1])
	}
}

func TestForwardSkipsAllowed(t *testing.T) {
	assert.NoError(t, CanTransition(models.OrderStatusPending, models.OrderStatusCollected))
	assert.NoError(t, CanTransition(models.OrderStatusCollected, models.OrderStatusDeliveryScheduled))
	assert.NoError(t, CanTransition(models.OrderStatusPending, models.OrderStatusDelivered))
}

func TestBackwardTransitionsRejected(t *testing.T) {
	tests := []struct{ from, to string }{
		{models.OrderStatusProcessing, models.OrderStatusPickupScheduled},
		{models.OrderStatusCollected, models.OrderStatusPending},
		{models.OrderStatusDeliveryScheduled, models.OrderStatusReadyForDelivery},
		{models.OrderStatusProcessing, models.OrderStatusProcessing},
	}

	for _, tt := range tests {
		err := CanTransition(tt.from, tt.to)
		var invalidErr *InvalidTransitionError
		require.ErrorAs(t, err, &invalidErr, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, invalidErr.From)
		assert.Equal(t, tt.to, invalidErr.To)
	}
}

func TestTerminalStatesAdmitNoExit(t *testing.T) {
	for _, terminal := range []string{models.OrderStatusDelivered, models.OrderStatusCanceled} {
		for _, to := range forwardSequence {
			if to == terminal {
				continue
			}
			err := CanTransition(terminal, to)
			var invalidErr *InvalidTransitionError
			assert.ErrorAs(t, err, &invalidErr, "%s -> %s", terminal, to)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	var invalidErr *InvalidTransitionError
	assert.ErrorAs(t, CanTransition("pending", "shipped"), &invalidErr)
	assert.ErrorAs(t, CanTransition("archived", "processing"), &invalidErr)
}

func TestCancelPolicy(t *testing.T) {
	assert.NoError(t, CanCancel(models.OrderStatusPending))
	assert.NoError(t, CanCancel(models.OrderStatusPickupScheduled))

	for _, from := range []string{
		models.OrderStatusCollected,
		models.OrderStatusProcessing,
		models.OrderStatusReadyForDelivery,
		models.OrderStatusDeliveryScheduled,
		models.OrderStatusDelivered,
		models.OrderStatusCanceled,
	} {
		var invalidErr *InvalidTransitionError
		assert.ErrorAs(t, CanCancel(from), &invalidErr, "cancel from %s", from)
	}
}
