package utils

import (
	"strconv"
	"strings"
)

// FormatCount formats a job count with thousand separators.
// Examples:
//   - 600 -> "600"
//   - 1000 -> "1,000"
//   - -12345 -> "-12,345"
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}

	var formatted strings.Builder
	formatted.WriteString(sign)
	length := len(digits)
	for i, r := range digits {
		if i > 0 && (length-i)%3 == 0 {
			formatted.WriteString(",")
		}
		formatted.WriteRune(r)
	}
	return formatted.String()
}
