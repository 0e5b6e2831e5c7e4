package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseStringTime parses config durations such as "10s", "20m", "48h" or
// "2d". Anything time.ParseDuration accepts is accepted as well.
func ParseStringTime(timeString string) (time.Duration, error) {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	if timeString == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(timeString); err == nil {
		return d, nil
	}
	if cutString, found := strings.CutSuffix(timeString, "d"); found {
		number, err := strconv.Atoi(cutString)
		if err != nil {
			return 0, fmt.Errorf("invalid day count in %q: %w", timeString, err)
		}
		return time.Duration(number) * time.Hour * 24, nil
	}
	return 0, fmt.Errorf("invalid time format: %q", timeString)
}

// MustParseStringTime returns fallback when timeString is empty or invalid.
func MustParseStringTime(timeString string, fallback time.Duration) time.Duration {
	d, err := ParseStringTime(timeString)
	if err != nil || d == 0 {
		return fallback
	}
	return d
}
