package model

import "time"

// Stamp returns the next last-write-wins timestamp for a record whose
// current clock is prev. The result is always strictly after prev, so a
// local edit is never discarded by the peer as a tie.
func Stamp(prev, now time.Time) time.Time {
	now = Normalize(now)
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}

// Normalize strips the monotonic reading and location from t so that
// timestamps compare and round-trip identically on both devices.
func Normalize(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return t.UTC().Round(0)
}
