package weekday

import (
	"strings"
	"time"
)

// searchDays bounds the walk; a full week always contains every weekday.
const searchDays = 7

// Next returns the first date on or after from whose weekday name equals name
// ("Tuesday", case ignored). The second result is false when no day within a week
// matches, which only happens for a name that is not a weekday.
func Next(from time.Time, name string) (time.Time, bool) {
	for i := 0; i < searchDays; i++ {
		candidate := from.AddDate(0, 0, i)
		if strings.EqualFold(candidate.Weekday().String(), strings.TrimSpace(name)) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// Valid reports whether name is a weekday Next can find.
func Valid(name string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}
