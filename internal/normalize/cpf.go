package normalize

import "strings"

// NormalizeCPF strips formatting and validates the check digits.
// Returns the 11 bare digits, or false when the document is unusable.
func NormalizeCPF(value string) (string, bool) {
	digits := OnlyDigits(value)
	if len(digits) != 11 {
		return "", false
	}
	if !ValidCPF(digits) {
		return "", false
	}
	return digits, true
}

// ValidCPF runs the modulo-11 check on an 11-digit CPF.
// Sequences of a single repeated digit pass the arithmetic but are not
// issued, so they are rejected.
func ValidCPF(digits string) bool {
	if len(digits) != 11 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}

	return cpfCheckDigit(digits[:9], 10) == int(digits[9]-'0') &&
		cpfCheckDigit(digits[:10], 11) == int(digits[10]-'0')
}

func cpfCheckDigit(base string, weight int) int {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		rest = 0
	}
	return rest
}

// FormatCPF renders 11 digits as 000.000.000-00
func FormatCPF(digits string) string {
	if len(digits) != 11 {
		return digits
	}
	return digits[0:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}
