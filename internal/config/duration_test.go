package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"45s", 45 * time.Second},
		{"2h", 2 * time.Hour},
		{"90d", 90 * 24 * time.Hour},
		{"1w", 7 * 24 * time.Hour},
		{"1w2d12h", (7*24 + 2*24 + 12) * time.Hour},
		{"30m", 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration())
		})
	}

	_, err := ParseDuration("not a duration")
	assert.Error(t, err)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("2w")))
	assert.Equal(t, 14*24*time.Hour, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("2 parsecs")))
}

func TestDurationJSON(t *testing.T) {
	type payload struct {
		Timeout Duration `json:"timeout"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"timeout":"90s"}`), &p))
	assert.Equal(t, 90*time.Second, p.Timeout.Duration())

	// Raw nanosecond numbers are accepted too.
	require.NoError(t, json.Unmarshal([]byte(`{"timeout":5000000000}`), &p))
	assert.Equal(t, 5*time.Second, p.Timeout.Duration())

	out, err := json.Marshal(payload{Timeout: Duration(36 * time.Hour)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"timeout":"1d12h0m0s"}`, string(out))
}

func TestDurationString(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{Duration(0), "0s"},
		{Duration(45 * time.Second), "45s"},
		{Duration(90 * time.Minute), "1h30m0s"},
		{Duration(24 * time.Hour), "1d"},
		{Duration(10 * 24 * time.Hour), "1w3d"},
		{Duration(36 * time.Hour), "1d12h0m0s"},
		{Duration(-48 * time.Hour), "-2d"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.String())
		})
	}
}
