// Package candles builds OHLC candles from raw price ticks.
package candles

import (
	"sort"

	"quotex-trader/internal/models"
)

// Color classifies a candle by comparing open and close.
type Color string

const (
	Green Color = "green"
	Red   Color = "red"
	Gray  Color = "gray"
)

// Bucket groups ticks into fixed-width windows of the given period in
// seconds and returns the sealed candles. A window is sealed once a tick at
// or past its end has been seen; the trailing in-progress window is always
// dropped because it cannot yet be trusted as final.
func Bucket(ticks []models.Tick, period int64) []models.Candle {
	if period <= 0 || len(ticks) == 0 {
		return nil
	}

	var out []models.Candle
	var cur models.Candle
	open := false

	for _, tick := range ticks {
		ts := int64(tick.Time)
		windowStart := ts - ts%period

		if open && ts >= cur.Time+period {
			out = append(out, cur)
			open = false
		}

		if !open {
			cur = models.Candle{
				Time:  windowStart,
				Open:  tick.Price,
				High:  tick.Price,
				Low:   tick.Price,
				Close: tick.Price,
				Ticks: 1,
			}
			open = true
			continue
		}

		cur.Close = tick.Price
		if tick.Price > cur.High {
			cur.High = tick.Price
		}
		if tick.Price < cur.Low {
			cur.Low = tick.Price
		}
		cur.Ticks++
	}

	// The last window is unsealed: no tick at or past its end arrived.
	return out
}

// Merge combines candle lists, dropping duplicates by open time and
// returning the result sorted ascending.
func Merge(lists ...[]models.Candle) []models.Candle {
	seen := make(map[int64]struct{})
	var out []models.Candle
	for _, list := range lists {
		for _, c := range list {
			if _, dup := seen[c.Time]; dup {
				continue
			}
			seen[c.Time] = struct{}{}
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// ColorOf classifies the candle as green, red or gray.
func ColorOf(c models.Candle) Color {
	switch {
	case c.Open < c.Close:
		return Green
	case c.Open > c.Close:
		return Red
	default:
		return Gray
	}
}
