package source

import (
	"strconv"
	"strings"
)

// SplitDate extracts year and month from an ISO-like date ("2021-03-15",
// "2021-03" or "2021"). Implausible parts are returned empty.
func SplitDate(date string) (year, month string) {
	parts := strings.SplitN(strings.TrimSpace(date), "-", 3)
	if y, err := strconv.Atoi(parts[0]); err == nil && y >= 1000 && y <= 3000 {
		year = strconv.Itoa(y)
	}
	if len(parts) > 1 {
		if m, err := strconv.Atoi(parts[1]); err == nil && m >= 1 && m <= 12 {
			month = strconv.Itoa(m)
		}
	}
	return year, month
}
