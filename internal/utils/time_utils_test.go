package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStringTime(t *testing.T) {
	tests := []struct {
		timeString string
		expected   time.Duration
	}{
		{"10s", 10 * time.Second},
		{"20M", 20 * time.Minute},
		{"48h", 48 * time.Hour},
		{"2d", 2 * time.Hour * 24},
		{"1500ms", 1500 * time.Millisecond},
		{"", 0},
	}

	for _, test := range tests {
		result, err := ParseStringTime(test.timeString)
		assert.NoError(t, err, test.timeString)
		assert.Equal(t, test.expected, result, "ParseStringTime(%s)", test.timeString)
	}
}

func TestParseStringTimeInvalid(t *testing.T) {
	_, err := ParseStringTime("soon")
	assert.Error(t, err)
	assert.Equal(t, 3*time.Second, MustParseStringTime("soon", 3*time.Second))
	assert.Equal(t, 3*time.Second, MustParseStringTime("", 3*time.Second))
}
