package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/cliparr/pkg/duration"
)

// Duration is a time.Duration that config files can spell with day and
// week units ("30d", "1w2d12h") on top of the standard Go forms. It
// satisfies encoding.TextUnmarshaler for Viper and YAML, and
// json.Unmarshaler for JSON payloads.
type Duration time.Duration

// ParseDuration parses a duration string in the extended format.
func ParseDuration(s string) (Duration, error) {
	d, err := duration.Parse(s)
	if err != nil {
		return 0, err
	}
	return Duration(d), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalJSON accepts either a duration string or a bare nanosecond
// count, matching how time.Duration itself marshals.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}

	var ns int64
	if err := json.Unmarshal(data, &ns); err != nil {
		return fmt.Errorf("duration must be a string or nanosecond count: %w", err)
	}
	*d = Duration(ns)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// String renders the duration with week and day prefixes where they fit
// evenly, falling back to the standard form for the remainder. 240h
// prints as "1w3d", 36h as "1d12h0m0s".
func (d Duration) String() string {
	rem := time.Duration(d)
	if rem == 0 {
		return "0s"
	}

	sign := ""
	if rem < 0 {
		sign = "-"
		rem = -rem
	}

	var b strings.Builder
	if weeks := rem / duration.Week; weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
		rem -= weeks * duration.Week
	}
	if days := rem / duration.Day; days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		rem -= days * duration.Day
	}
	if rem > 0 {
		b.WriteString(rem.String())
	}
	return sign + b.String()
}
