package expiry

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func at(hour, min, sec int) time.Time {
	return time.Date(2024, 6, 12, hour, min, sec, 0, time.UTC)
}

func TestNextShortDurations(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		duration int64
		want     time.Time
	}{
		{"before half minute", at(12, 0, 29), 5, at(12, 1, 0)},
		{"exactly half minute", at(12, 0, 30), 5, at(12, 2, 0)},
		{"after half minute", at(12, 0, 31), 30, at(12, 2, 0)},
		{"top of minute", at(12, 0, 0), 15, at(12, 1, 0)},
		{"last second", at(12, 0, 59), 45, at(12, 2, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.now, tt.duration))
		})
	}
}

func TestNextLongDurations(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		duration int64
		want     time.Time
	}{
		// 130s after midnight, d=300: remainder 130 <= 150 so step 1,
		// next boundary is 300s after midnight.
		{"step one", at(0, 2, 10), 300, at(0, 5, 0)},
		// 170s after midnight, d=300: remainder 170 > 150 so step 2,
		// boundary after next.
		{"step two", at(0, 2, 50), 300, at(0, 10, 0)},
		{"exact boundary", at(0, 5, 0), 300, at(0, 10, 0)},
		{"one minute", at(9, 15, 20), 60, at(9, 16, 0)},
		{"one minute late half", at(9, 15, 40), 60, at(9, 17, 0)},
		{"hour duration", at(10, 40, 0), 3600, at(12, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Next(tt.now, tt.duration))
		})
	}
}

// For every short duration the expiration lands on a whole-minute boundary,
// exactly one or two minutes ahead depending on the half-minute shift rule.
func TestProperty_ShortDurationWholeMinute(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lands on whole minute 1-2 minutes ahead", prop.ForAll(
		func(secondsOfDay int, duration int64) bool {
			now := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC).
				Add(time.Duration(secondsOfDay) * time.Second)
			exp := Next(now, duration)

			if exp.Second() != 0 {
				return false
			}
			ahead := exp.Sub(now.Truncate(time.Minute))
			if now.Second() >= 30 {
				return ahead == 2*time.Minute
			}
			return ahead == time.Minute
		},
		gen.IntRange(0, 86399),
		gen.Int64Range(5, 59),
	))

	properties.TestingRun(t)
}

// For every duration >= 60 the expiration is a multiple of the duration
// offset from midnight and strictly in the future.
func TestProperty_LongDurationAligned(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	durations := []int64{60, 120, 300, 600, 900, 1800, 3600}

	properties.Property("multiple-of-duration offset from midnight", prop.ForAll(
		func(secondsOfDay int, durationIdx int) bool {
			duration := durations[durationIdx]
			midnight := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
			now := midnight.Add(time.Duration(secondsOfDay) * time.Second)
			exp := Next(now, duration)

			offset := int64(exp.Sub(midnight) / time.Second)
			if offset%duration != 0 {
				return false
			}
			if offset <= int64(secondsOfDay) {
				return false
			}
			// The asymmetric step rule never reaches further than two slots.
			return offset-int64(secondsOfDay) <= 2*duration
		},
		gen.IntRange(0, 86399-2*3600),
		gen.IntRange(0, len(durations)-1),
	))

	properties.TestingRun(t)
}

func TestNextUnix(t *testing.T) {
	now := at(12, 0, 29)
	assert.Equal(t, at(12, 1, 0).Unix(), NextUnix(now.Unix(), 5))
}

func TestRemaining(t *testing.T) {
	now := at(12, 0, 0)
	assert.Equal(t, time.Minute, Remaining(now, at(12, 1, 0).Unix()))
	assert.Equal(t, time.Duration(0), Remaining(now, at(11, 59, 0).Unix()))
}
