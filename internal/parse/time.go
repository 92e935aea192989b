package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Remote records carry timestamps in whatever shape the writing client used:
// epoch milliseconds as a number or numeric string, RFC3339, or a plain
// "2006-01-02 15:04:05" layout. Timestamp normalizes all of them.

const plainLayout = "2006-01-02 15:04:05"

// Timestamp converts a mixed-representation timestamp value into a time.Time.
// A nil or empty value yields (nil, nil): absence is not an error.
func Timestamp(raw any) (*time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case float64:
		return fromMillis(int64(v)), nil
	case int64:
		return fromMillis(v), nil
	case int:
		return fromMillis(int64(v)), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("unable to parse numeric timestamp %q: %w", v.String(), err)
		}
		return fromMillis(n), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromMillis(n), nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return &t, nil
		}
		if t, err := time.Parse(plainLayout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
		return nil, fmt.Errorf("unable to parse timestamp: %q", s)
	default:
		return nil, fmt.Errorf("unsupported timestamp type %T", raw)
	}
}

// EpochMillis extracts an epoch-milliseconds value from a mixed
// representation, returning 0 when the value is absent or unparseable.
func EpochMillis(raw any) int64 {
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func fromMillis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

var safeKeyReplacer = strings.NewReplacer(
	"/", "_",
	".", "_",
	"#", "_",
	"$", "_",
	"[", "(",
	"]", ")",
)

// SafeKey sanitizes a slot name into a key the remote store accepts as a
// path segment.
func SafeKey(name string) string {
	return safeKeyReplacer.Replace(name)
}
