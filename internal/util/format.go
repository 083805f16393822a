package util

import (
	"fmt"
	"time"
)

const dateLayout = "January 2, 2006"

// FormatRemaining renders a countdown using the two largest units present.
func FormatRemaining(ms int64) string {
	if ms <= 0 {
		return "0s remaining"
	}

	seconds := ms / 1000
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm remaining", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds remaining", minutes, seconds%60)
	default:
		return fmt.Sprintf("%ds remaining", seconds)
	}
}

func FormatRemainingDuration(d time.Duration) string {
	return FormatRemaining(d.Milliseconds())
}

// FormatDate renders t as an en-US long date in UTC, e.g. "January 5, 2025".
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
