// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"
	"time"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func boolLabel(b bool) string { return strconv.FormatBool(b) }

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
