package topics

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const notAvailable = "N/A"

var (
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
)

// parseIntPrefix reads the leading base 10 integer of s, ignoring leading
// white space and anything after the digits. ok is false when s does not
// start with a number.
func parseIntPrefix(s string) (float64, bool) {
	m := intPrefix.FindString(strings.TrimLeft(s, " \t\r\n"))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	switch {
	case strings.HasPrefix(s, "Infinity"), strings.HasPrefix(s, "+Infinity"):
		return math.Inf(1), true
	case strings.HasPrefix(s, "-Infinity"):
		return math.Inf(-1), true
	}
	m := floatPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ConvertTemperature reads tenths of a degree: "366" is 36.6.
func ConvertTemperature(raw string) any {
	v, ok := parseIntPrefix(raw)
	if !ok {
		return nil
	}
	return v / 10
}

func ConvertSignal(raw string) any {
	v, ok := parseIntPrefix(raw)
	if !ok {
		return nil
	}
	return v
}

// ConvertUptime returns the seconds as a number, or raw when it is not one.
func ConvertUptime(raw string) any {
	v, ok := parseIntPrefix(raw)
	if !ok {
		return raw
	}
	return v
}

func ConvertDigital(raw string) any {
	if raw == notAvailable {
		return nil
	}
	return raw == "1" || strings.ToLower(raw) == "true"
}

func ConvertAnalog(raw string) any {
	if raw == notAvailable {
		return nil
	}
	v, ok := parseFloatPrefix(raw)
	if !ok {
		return nil
	}
	return v
}

func ConvertPin(raw string) any {
	if raw == notAvailable {
		return nil
	}
	return raw
}
