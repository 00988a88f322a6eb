package normalize

import (
	"strconv"
	"strings"
)

const countryCode = "55"

// NormalizePhone converts a Brazilian phone number to +55 followed by the
// area code and subscriber number. False means the value should be dropped.
func NormalizePhone(value string) (string, bool) {
	digits := OnlyDigits(value)
	if len(digits) >= 12 && strings.HasPrefix(digits, countryCode) {
		digits = digits[len(countryCode):]
	}

	if len(digits) != 10 && len(digits) != 11 {
		return "", false
	}
	if strings.Count(digits, digits[:1]) == len(digits) {
		return "", false
	}

	area, err := strconv.Atoi(digits[:2])
	if err != nil || area < 11 || area > 99 {
		return "", false
	}

	return "+" + countryCode + digits, true
}
