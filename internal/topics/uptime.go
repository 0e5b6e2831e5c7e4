package topics

import (
	"fmt"
	"math"
)

const (
	UptimeTopic    = "uptime"
	UptimeStrState = "uptimeStr"
)

// UptimeStrCommon describes the derived human readable uptime state.
var UptimeStrCommon = state("Uptime String", "", "string", "value.interval", "")

// FormatUptime renders seconds as "1d 01:01:01". The day part is left out
// when it is zero.
func FormatUptime(seconds float64) string {
	total := int64(math.Floor(seconds))
	d := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60
	if d != 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", d, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
