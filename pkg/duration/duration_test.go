package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"720h", 720 * time.Hour, false},
		{"1h30m", 90 * time.Minute, false},
		{"30d", 30 * Day, false},
		{"30 days", 30 * Day, false},
		{"2w", 2 * Week, false},
		{"2 weeks", 2 * Week, false},
		{"1w2d12h", 9*Day + 12*time.Hour, false},
		{"5 minutes", 5 * time.Minute, false},
		{"1 day 3 hours", Day + 3*time.Hour, false},
		{"-1d", -Day, false},
		{"0s", 0, false},
		{"", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestMustParse(t *testing.T) {
	assert.Equal(t, Week, MustParse("1w"))
	assert.Panics(t, func() { MustParse("nope") })
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{0, "0s"},
		{36 * time.Hour, "1d12h"},
		{9*Day + 3*time.Hour, "1w2d3h"},
		{90 * time.Minute, "1h30m"},
		{45 * time.Second, "45s"},
		{-Day, "-1d"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.input))
		})
	}
}
