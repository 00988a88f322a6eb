package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

var minBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseBirthDate accepts DD/MM/YYYY (MM/DD/YYYY when the first part is a
// month and the second exceeds 12), YYYY-MM-DD and DD-MM-YYYY, and returns
// the date as YYYY-MM-DD. Dates in the future or before 1900-01-01 are
// errors.
func ParseBirthDate(value string, now time.Time) (string, error) {
	value = strings.TrimSpace(value)

	t, ok := parseSlashed(value)
	if !ok {
		if parsed, err := time.Parse(isoDate, value); err == nil {
			t, ok = parsed, true
		}
	}
	if !ok {
		t, ok = parseDashed(value)
	}
	if !ok {
		return "", fmt.Errorf("data de nascimento inválida: %q (use DD/MM/AAAA ou AAAA-MM-DD)", value)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if t.After(today) {
		return "", fmt.Errorf("data de nascimento no futuro: %q", value)
	}
	if t.Before(minBirthDate) {
		return "", fmt.Errorf("data de nascimento anterior a 1900: %q", value)
	}

	return t.Format(isoDate), nil
}

func parseSlashed(value string) (time.Time, bool) {
	parts := strings.Split(value, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return time.Time{}, false
	}

	first, err1 := strconv.Atoi(parts[0])
	second, err2 := strconv.Atoi(parts[1])
	year, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}

	day, month := first, second
	if first <= 12 && second > 12 {
		day, month = second, first
	}
	return makeDate(year, month, day)
}

func parseDashed(value string) (time.Time, bool) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	switch {
	case len(parts[0]) == 4:
		return makeDate(nums[0], nums[1], nums[2])
	case len(parts[2]) == 4:
		return makeDate(nums[2], nums[1], nums[0])
	}
	return time.Time{}, false
}

// makeDate rejects dates time.Date would silently roll over (31/02).
func makeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
