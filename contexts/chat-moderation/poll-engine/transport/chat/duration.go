package chat

import (
	"fmt"
	"strings"
	"time"
)

// PrettyDuration renders a duration as a comma separated list of whole
// units, largest first, skipping zero parts: "1 day, 2 hours, 5 seconds".
func PrettyDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	total := int64(d.Seconds())

	days := total / 86400
	hours := total % 86400 / 3600
	minutes := total % 3600 / 60
	seconds := total % 60

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, pluralize(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}
	return strings.Join(parts, ", ")
}

func pluralize(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
