// Package temporal implements interval parsing and validity checks over the
// nullable time bounds carried by contexts. Bounds are ISO-8601 timestamps or
// short descriptive strings; descriptors are treated as unknown for querying.
package temporal

import (
	"time"

	"github.com/soundprediction/chronotope/pkg/types"
)

// Layouts accepted for ISO-8601 bounds, naive UTC first.
var layouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// ParseBound parses an ISO-8601 bound. Nil, empty and descriptive strings
// ("start of the wedding") return nil.
func ParseBound(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, *value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// Bounds resolves an interval to concrete time bounds where possible.
func Bounds(interval types.TemporalInterval) (start, end *time.Time) {
	return ParseBound(interval.StartTime), ParseBound(interval.EndTime)
}

// Within reports whether at lies inside [start, end], inclusive. An open
// bound extends the interval to infinity on that side; a fully open interval
// is always valid.
func Within(at time.Time, start, end *time.Time) bool {
	switch {
	case start != nil && end != nil:
		return !at.Before(*start) && !at.After(*end)
	case start != nil:
		return !at.Before(*start)
	case end != nil:
		return !at.After(*end)
	default:
		return true
	}
}

// IntervalContains reports whether the interval holds at the given instant.
func IntervalContains(interval types.TemporalInterval, at time.Time) bool {
	start, end := Bounds(interval)
	return Within(at, start, end)
}

// ValidAt reports whether a fact with the given intervals is valid at the
// instant: true if any interval contains it, and true for a fact with no
// intervals at all.
func ValidAt(intervals []types.TemporalInterval, at time.Time) bool {
	if len(intervals) == 0 {
		return true
	}
	for _, interval := range intervals {
		if IntervalContains(interval, at) {
			return true
		}
	}
	return false
}

// Overlaps reports whether the interval intersects [qStart, qEnd]. Unknown
// bounds are treated as open.
func Overlaps(interval types.TemporalInterval, qStart, qEnd *time.Time) bool {
	start, end := Bounds(interval)
	if qStart != nil && end != nil && end.Before(*qStart) {
		return false
	}
	if qEnd != nil && start != nil && start.After(*qEnd) {
		return false
	}
	return true
}

// IsConstrained reports whether any interval carries at least one concrete
// ISO bound. Facts with only descriptors or nulls count as temporally
// unconstrained for querying.
func IsConstrained(intervals []types.TemporalInterval) bool {
	for _, interval := range intervals {
		start, end := Bounds(interval)
		if start != nil || end != nil {
			return true
		}
	}
	return false
}
