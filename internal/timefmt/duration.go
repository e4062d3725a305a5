package timefmt

import "strings"

const (
	// DurationMissing is shown when no time was recorded.
	DurationMissing = "N/A"
	// DurationInvalid is shown for times in neither mm:ss nor mm:ss:tt.
	DurationInvalid = "Invalid time format"
)

// FormatDuration renders a race time as mm:ss, dropping a trailing tenths
// component. Malformed input yields a sentinel string instead of an error.
func FormatDuration(raw string) string {
	if raw == "" {
		return DurationMissing
	}
	parts := strings.Split(raw, ":")
	switch len(parts) {
	case 3:
		return parts[0] + ":" + parts[1]
	case 2:
		return raw
	default:
		return DurationInvalid
	}
}
