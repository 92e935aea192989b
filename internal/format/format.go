// Package format holds the pure text-formatting helpers used by the
// dashboard views.
package format

import (
	"fmt"
	"strings"
	"time"
)

// Overdue is rendered when a deadline has already passed.
const Overdue = "Overdue"

// Remaining renders a countdown duration as "{hours} hr(s) {minutes} min(s)",
// omitting zero components. Under one minute it renders "< 1 min"; a negative
// duration renders Overdue.
func Remaining(d time.Duration) string {
	if d < 0 {
		return Overdue
	}
	if d < time.Minute {
		return "< 1 min"
	}

	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", hours, plural(hours, "hr")))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", minutes, plural(minutes, "min")))
	}
	return strings.Join(parts, " ")
}

// Relative renders how long ago t was relative to now, e.g. "5 mins ago".
func Relative(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d / time.Minute)
		return fmt.Sprintf("%d %s ago", m, plural(m, "min"))
	case d < 24*time.Hour:
		h := int(d / time.Hour)
		return fmt.Sprintf("%d %s ago", h, plural(h, "hr"))
	default:
		days := int(d / (24 * time.Hour))
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	}
}

// Truncate shortens s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
