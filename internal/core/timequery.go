package core

import (
	"fmt"
	"strings"
	"time"
)

func parseRelativeTime(value string, now time.Time) (time.Time, bool) {
	if len(value) < 2 {
		return time.Time{}, false
	}
	unit := value[len(value)-1:]
	amountStr := value[:len(value)-1]
	var step time.Duration
	switch strings.ToLower(unit) {
	case "m":
		step = time.Minute
	case "h":
		step = time.Hour
	case "d":
		step = 24 * time.Hour
	case "w":
		step = 7 * 24 * time.Hour
	default:
		return time.Time{}, false
	}
	amount := int64(0)
	for _, r := range amountStr {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		amount = amount*10 + int64(r-'0')
	}
	if amount == 0 {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(amount) * step), true
}

func parseAbsoluteTime(value string, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(value) {
	case "today":
		return today, true
	case "yesterday":
		return today.Add(-24 * time.Hour), true
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	if ts, err := time.ParseInLocation("2006-01-02", value, now.Location()); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// ParseTimeExpression converts "30m", "2h", "3d", "1w", "today",
// "yesterday", a date or an RFC3339 timestamp into an instant relative to
// now.
func ParseTimeExpression(expression string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(expression)
	if ts, ok := parseAbsoluteTime(trimmed, now); ok {
		return ts, nil
	}
	if ts, ok := parseRelativeTime(trimmed, now); ok {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid time expression: %s", expression)
}
