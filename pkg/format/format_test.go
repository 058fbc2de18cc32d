package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "1,234,567", Number(1234567))
}

func TestCount(t *testing.T) {
	assert.Equal(t, "1 session", Count(1, "session", "sessions"))
	assert.Equal(t, "0 sessions", Count(0, "session", "sessions"))
	assert.Equal(t, "1,200 sessions", Count(1200, "session", "sessions"))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "45.7%", Percentage(45.678, 1))
	assert.Equal(t, "100%", Percentage(100, 0))
}

func TestCronDescription(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
	}{
		{"*/30 * * * * *", "Every 30 seconds"},
		{"0 * * * * *", "Every minute"},
		{"0 */5 * * * *", "Every 5 minutes"},
		{"0 */1 * * * *", "Every minute"},
		{"0 0 */6 * * *", "Every 6 hours"},
		{"0 30 2 * * *", "Daily at 02:30"},
		{"0 0 2 * * 1", "0 0 2 * * 1"},
		{"@every 5m", "@every 5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.expected, CronDescription(tt.expr))
		})
	}
}
