// Package bytesize parses and formats human-readable byte sizes.
// Units are binary (1024-based) regardless of spelling: "5MB", "5M" and
// "5MiB" all mean 5*1024*1024 bytes. A bare number is a byte count.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	B  Size = 1
	KB Size = 1 << 10
	MB Size = 1 << 20
	GB Size = 1 << 30
	TB Size = 1 << 40
	PB Size = 1 << 50
)

// Parse reads a size such as "500KB", "1.5 GB", "10GiB" or "1024".
// Whitespace between the value and the unit is allowed, units are
// case-insensitive, and a missing unit means bytes.
func Parse(s string) (Size, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	split := len(trimmed)
	for i, r := range trimmed {
		if (r < '0' || r > '9') && r != '.' {
			split = i
			break
		}
	}
	if split == 0 {
		return 0, fmt.Errorf("bytesize: invalid format %q", s)
	}

	value, err := strconv.ParseFloat(trimmed[:split], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", trimmed[:split], err)
	}

	unit, err := unitSize(strings.TrimSpace(trimmed[split:]))
	if err != nil {
		return 0, err
	}
	return Size(value * float64(unit)), nil
}

func unitSize(unit string) (Size, error) {
	switch strings.ToLower(unit) {
	case "", "b", "byte", "bytes":
		return B, nil
	case "k", "kb", "kib":
		return KB, nil
	case "m", "mb", "mib":
		return MB, nil
	case "g", "gb", "gib":
		return GB, nil
	case "t", "tb", "tib":
		return TB, nil
	case "p", "pb", "pib":
		return PB, nil
	}
	return 0, fmt.Errorf("bytesize: unknown unit %q", unit)
}

var formatUnits = []struct {
	size Size
	name string
}{
	{PB, "PB"},
	{TB, "TB"},
	{GB, "GB"},
	{MB, "MB"},
	{KB, "KB"},
}

// Format renders a size with the largest unit that keeps the value at
// least 1, trimming trailing zeros: 1536*KB formats as "1.5MB".
func Format(s Size) string {
	sign := ""
	if s < 0 {
		sign = "-"
		s = -s
	}

	for _, u := range formatUnits {
		if s < u.size {
			continue
		}
		value := float64(s) / float64(u.size)
		if value == float64(int64(value)) {
			return fmt.Sprintf("%s%d%s", sign, int64(value), u.name)
		}
		text := strconv.FormatFloat(value, 'f', 2, 64)
		text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
		return sign + text + u.name
	}
	return fmt.Sprintf("%s%dB", sign, s)
}

// Bytes returns the size as a plain int64.
func (s Size) Bytes() int64 {
	return int64(s)
}

func (s Size) String() string {
	return Format(s)
}
