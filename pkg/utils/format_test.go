package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, 10.55, Truncate(10.559, 2))
	assert.Equal(t, 10.55, Truncate(10.55, 2))
	assert.Equal(t, -3.14, Truncate(-3.149, 2))
	assert.Equal(t, 0.0, Truncate(0.009, 2))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$10.50", FormatMoney("", 10.5))
	assert.Equal(t, "R$5.00", FormatMoney("R$", 5))
	assert.Equal(t, "-$3.25", FormatMoney("$", -3.25))
}

func TestFormatProfit(t *testing.T) {
	assert.Equal(t, "+$4.20", FormatProfit("$", 4.2))
	assert.Equal(t, "-$5.00", FormatProfit("$", -5))
	assert.Equal(t, "$0.00", FormatProfit("$", 0))
}

func TestFormatOpenTime(t *testing.T) {
	ts := time.Date(2025, 4, 1, 20, 9, 0, 0, time.UTC)
	assert.Equal(t, "2025-04-01T20:09:00.000Z", FormatOpenTime(ts))
}

func TestNextOpenTime(t *testing.T) {
	now := time.Date(2025, 4, 1, 20, 8, 30, 0, time.UTC)
	next := NextOpenTime(now, 60)
	assert.Equal(t, time.Date(2025, 4, 1, 20, 9, 0, 0, time.UTC), next)

	// Exactly on a boundary moves to the next one.
	next = NextOpenTime(time.Date(2025, 4, 1, 20, 9, 0, 0, time.UTC), 60)
	assert.Equal(t, time.Date(2025, 4, 1, 20, 10, 0, 0, time.UTC), next)
}
