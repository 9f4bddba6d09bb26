package reconcile

import (
	"time"
)

// NoTimeSentinel marks activities without a parseable start in the
// title+time dedup key, so they still group by title alone.
const NoTimeSentinel = "no-time"

// ParseInstant parses a timestamp string into UTC. Malformed or empty
// input yields the zero time; a zero time never participates in overlap.
func ParseInstant(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	s := *raw
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// NormalizeStart renders a start timestamp as canonical RFC3339 UTC for
// use in dedup keys. Unparseable input maps to the no-time sentinel, so
// two activities with equally broken timestamps still dedupe by title.
func NormalizeStart(raw *string) string {
	t := ParseInstant(raw)
	if t.IsZero() {
		return NoTimeSentinel
	}
	return t.Format(time.RFC3339)
}
