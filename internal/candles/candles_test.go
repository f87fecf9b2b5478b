package candles

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotex-trader/internal/models"
)

func tick(t int64, p float64) models.Tick {
	return models.Tick{Symbol: "EURUSD", Time: float64(t), Price: p}
}

func TestBucketSealsCompletedWindows(t *testing.T) {
	ticks := []models.Tick{
		tick(0, 1.0),
		tick(30, 1.2),
		tick(65, 0.9),
	}

	got := Bucket(ticks, 60)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, int64(0), c.Time)
	assert.Equal(t, 1.0, c.Open)
	assert.Equal(t, 1.2, c.High)
	assert.Equal(t, 1.0, c.Low)
	assert.Equal(t, 1.2, c.Close)
	assert.Equal(t, 2, c.Ticks)
}

func TestBucketDropsTrailingWindow(t *testing.T) {
	// All ticks fall in one window; nothing is sealed.
	ticks := []models.Tick{tick(0, 1.0), tick(10, 1.1), tick(59, 0.8)}
	assert.Empty(t, Bucket(ticks, 60))
}

func TestBucketSkipsEmptyWindows(t *testing.T) {
	ticks := []models.Tick{
		tick(5, 1.0),
		tick(185, 2.0), // two empty windows in between
		tick(250, 2.5),
	}
	got := Bucket(ticks, 60)
	require.Len(t, got, 2)
	assert.Equal(t, int64(0), got[0].Time)
	assert.Equal(t, int64(180), got[1].Time)
}

func TestBucketEdgeCases(t *testing.T) {
	assert.Nil(t, Bucket(nil, 60))
	assert.Nil(t, Bucket([]models.Tick{tick(0, 1)}, 0))
}

func TestMergeDeduplicatesAndSorts(t *testing.T) {
	a := []models.Candle{
		{Time: 120, Open: 2, Close: 2},
		{Time: 0, Open: 1, Close: 1},
	}
	b := []models.Candle{
		{Time: 60, Open: 3, Close: 3},
		{Time: 120, Open: 9, Close: 9}, // duplicate open time, first wins
	}

	got := Merge(a, b)
	require.Len(t, got, 3)
	assert.Equal(t, int64(0), got[0].Time)
	assert.Equal(t, int64(60), got[1].Time)
	assert.Equal(t, int64(120), got[2].Time)
	assert.Equal(t, 2.0, got[2].Open)
}

func TestColorOf(t *testing.T) {
	assert.Equal(t, Green, ColorOf(models.Candle{Open: 1, Close: 2}))
	assert.Equal(t, Red, ColorOf(models.Candle{Open: 2, Close: 1}))
	assert.Equal(t, Gray, ColorOf(models.Candle{Open: 1, Close: 1}))
}

// Sealed candles always start on a period boundary, cover disjoint windows
// in ascending order, and respect open/close vs high/low ordering.
func TestProperty_BucketInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("sealed candles are aligned, ordered and well-formed", prop.ForAll(
		func(offsets []int, period int64) bool {
			ts := int64(0)
			ticks := make([]models.Tick, 0, len(offsets))
			for i, off := range offsets {
				ts += int64(off)
				ticks = append(ticks, tick(ts, 1.0+float64(i%7)/10))
			}

			sealed := Bucket(ticks, period)
			prev := int64(-1)
			for _, c := range sealed {
				if c.Time%period != 0 {
					return false
				}
				if c.Time <= prev {
					return false
				}
				if c.High < c.Low || c.High < c.Open || c.High < c.Close ||
					c.Low > c.Open || c.Low > c.Close {
					return false
				}
				if c.Ticks < 1 {
					return false
				}
				prev = c.Time
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 90)),
		gen.Int64Range(10, 120),
	))

	properties.TestingRun(t)
}

// Merging any lists yields strictly increasing open times with no
// duplicates.
func TestProperty_MergeStrictlyIncreasing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	candleGen := gen.SliceOf(gen.Int64Range(0, 50).Map(func(n int64) models.Candle {
		return models.Candle{Time: n * 60, Open: float64(n), Close: float64(n)}
	}))

	properties.Property("strictly increasing open times", prop.ForAll(
		func(a, b []models.Candle) bool {
			merged := Merge(a, b)
			for i := 1; i < len(merged); i++ {
				if merged[i].Time <= merged[i-1].Time {
					return false
				}
			}
			return true
		},
		candleGen,
		candleGen,
	))

	properties.TestingRun(t)
}
