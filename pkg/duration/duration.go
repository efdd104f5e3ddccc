// Package duration parses human-readable durations. It accepts
// everything time.ParseDuration does plus day, week, month and year
// units and spelled-out unit names, with optional whitespace between
// value and unit: "90d", "2 weeks", "1w2d12h" and "720h" all parse.
// Values may be fractional ("1.5d" is 36 hours). Months are 30 days
// and years 365, so both are approximations.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

// Parse reads a duration as a sequence of value/unit components and
// sums them. A bare "0" is allowed; any other bare number is an error,
// matching time.ParseDuration.
func Parse(s string) (time.Duration, error) {
	rest := strings.TrimSpace(s)
	if rest == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(rest, "-")
	if negative {
		rest = strings.TrimSpace(rest[1:])
	}
	if rest == "0" {
		return 0, nil
	}

	var total time.Duration
	for rest != "" {
		numEnd := 0
		hasDigit := false
		for numEnd < len(rest) {
			c := rest[numEnd]
			if c >= '0' && c <= '9' {
				hasDigit = true
			} else if c != '.' {
				break
			}
			numEnd++
		}
		if !hasDigit {
			return 0, fmt.Errorf("duration: invalid syntax %q", s)
		}
		value, err := strconv.ParseFloat(rest[:numEnd], 64)
		if err != nil {
			return 0, fmt.Errorf("duration: invalid number %q: %w", rest[:numEnd], err)
		}

		rest = strings.TrimLeft(rest[numEnd:], " \t")
		unitEnd := len(rest)
		for i, r := range rest {
			if !unicode.IsLetter(r) {
				unitEnd = i
				break
			}
		}
		if unitEnd == 0 {
			return 0, fmt.Errorf("duration: missing unit in %q", s)
		}
		unit, err := unitDuration(strings.ToLower(rest[:unitEnd]))
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}

		total += time.Duration(value * float64(unit))
		rest = strings.TrimLeft(rest[unitEnd:], " \t")
	}

	if negative {
		total = -total
	}
	return total, nil
}

func unitDuration(unit string) (time.Duration, error) {
	switch unit {
	case "ns", "nano", "nanos", "nanosecond", "nanoseconds":
		return time.Nanosecond, nil
	case "us", "µs", "μs", "micro", "micros", "microsecond", "microseconds":
		return time.Microsecond, nil
	case "ms", "milli", "millis", "millisecond", "milliseconds":
		return time.Millisecond, nil
	case "s", "sec", "secs", "second", "seconds":
		return time.Second, nil
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, nil
	case "h", "hr", "hrs", "hour", "hours":
		return time.Hour, nil
	case "d", "day", "days":
		return Day, nil
	case "w", "wk", "wks", "week", "weeks":
		return Week, nil
	case "mo", "mos", "month", "months":
		return Month, nil
	case "y", "yr", "yrs", "year", "years":
		return Year, nil
	}
	return 0, fmt.Errorf("unknown unit %q", unit)
}
