// Package expiry computes exchange-aligned expiration times for binary
// option orders.
package expiry

import "time"

// Next returns the next valid expiration boundary for an order placed at
// now with the given duration in seconds.
//
// Durations under a minute expire on the next (or next-but-one) whole
// minute: orders placed in the second half of the current minute are pushed
// one extra minute out so the trade always has at least ~30 seconds to run.
//
// Durations of a minute or more snap to the next multiple of the duration
// measured from midnight; when the current offset is more than halfway into
// a duration slot, the boundary after next is chosen instead.
func Next(now time.Time, duration int64) time.Time {
	if duration < 60 {
		shift := 0
		if now.Second() >= 30 {
			shift = 1
		}
		return now.Truncate(time.Minute).Add(time.Duration(shift+1) * time.Minute)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sinceMidnight := int64(now.Sub(midnight) / time.Second)

	remainder := sinceMidnight % duration
	step := int64(1)
	if remainder > duration/2 {
		step = 2
	}
	nextValid := (sinceMidnight/duration + step) * duration

	return midnight.Add(time.Duration(nextValid) * time.Second)
}

// NextUnix is Next expressed on unix timestamps.
func NextUnix(timestamp, duration int64) int64 {
	return Next(time.Unix(timestamp, 0).UTC(), duration).Unix()
}

// Remaining returns how long until the expiration boundary.
func Remaining(now time.Time, expiration int64) time.Duration {
	d := time.Unix(expiration, 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
