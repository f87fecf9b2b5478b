// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"time"
)

// Truncate cuts a value to the given number of decimal places without
// rounding. Balances are truncated, never rounded up.
func Truncate(value float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Trunc(value*shift) / shift
}

// FormatMoney formats an amount with the account currency symbol.
func FormatMoney(symbol string, amount float64) string {
	if symbol == "" {
		symbol = "$"
	}
	if amount < 0 {
		return fmt.Sprintf("-%s%.2f", symbol, -amount)
	}
	return fmt.Sprintf("%s%.2f", symbol, amount)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatProfit formats a settlement profit with an explicit sign.
func FormatProfit(symbol string, profit float64) string {
	formatted := FormatMoney(symbol, profit)
	if profit > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatOpenTime renders a pending order's open time the way the
// platform expects it on the wire.
func FormatOpenTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// NextOpenTime returns the next whole timeframe boundary after now, for
// scheduling pending orders.
func NextOpenTime(now time.Time, timeframe int64) time.Time {
	ts := now.Unix()
	next := ts - ts%timeframe + timeframe
	return time.Unix(next, 0).UTC()
}
