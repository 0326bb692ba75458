package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// timestampLayouts lists the formats seen in exchange fills and spreadsheet exports,
// most specific first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006-01-02",
}

// ParseTimestamp accepts any of the layouts above and returns the time in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// DaysBetween returns |a-b| in fractional days.
func DaysBetween(a, b time.Time) float64 {
	return math.Abs(a.Sub(b).Hours()) / 24
}
