package config

import (
	"encoding/json"
	"fmt"

	"github.com/jmylchreest/cliparr/pkg/bytesize"
)

// ByteSize is a byte count that config files can spell with units
// ("5MB", "1.5 GB") or as a raw number. It satisfies
// encoding.TextUnmarshaler for Viper and YAML, and json.Unmarshaler for
// JSON payloads.
type ByteSize int64

// ParseByteSize parses a size string with an optional unit suffix.
func ParseByteSize(s string) (ByteSize, error) {
	size, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(size), nil
}

// Bytes returns the size as a plain int64.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// UnmarshalJSON accepts either a size string or a bare byte count.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return b.UnmarshalText([]byte(s))
	}

	var raw int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("byte size must be a string or byte count: %w", err)
	}
	*b = ByteSize(raw)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b ByteSize) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// String renders the size with the largest unit that fits.
func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}
