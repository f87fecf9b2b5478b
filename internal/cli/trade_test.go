package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotex-trader/internal/models"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input string
		want  models.Direction
	}{
		{"call", models.DirectionCall},
		{"CALL", models.DirectionCall},
		{"up", models.DirectionCall},
		{"buy", models.DirectionCall},
		{"put", models.DirectionPut},
		{"Down", models.DirectionPut},
		{"sell", models.DirectionPut},
	}
	for _, tt := range tests {
		got, err := parseDirection(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := parseDirection("sideways")
	assert.Error(t, err)
}

func TestSettleContextOutlivesCommandBudget(t *testing.T) {
	// A short option can still expire a couple of minutes out when the
	// boundary rounds up; the settlement wait must track the expiration,
	// not the shared command deadline.
	expiration := time.Now().Add(3 * time.Minute).Unix()
	ctx, cancel := settleContext(&models.Order{Expiration: expiration})
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, time.Unix(expiration, 0).Add(time.Minute), deadline)
	assert.Greater(t, time.Until(deadline), 60*time.Second)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, models.OutcomeWin, outcomeOf(8.5))
	assert.Equal(t, models.OutcomeLoss, outcomeOf(-10))
	assert.Equal(t, models.OutcomeDoji, outcomeOf(0))
}
