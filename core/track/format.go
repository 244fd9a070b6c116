package track

import "fmt"

// FormatDuration renders a second count for the live timer display:
// "5s" below one minute, "1m 5s" below one hour, "1h 1m" at or above one hour.
// Zero lower units are omitted at every granularity: 120 -> "2m", 3600 -> "1h".
// Seconds are dropped entirely at hour granularity (two-unit rule).
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		m, s := seconds/60, seconds%60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h, m := seconds/3600, (seconds%3600)/60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
