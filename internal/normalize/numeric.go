package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumericRe = regexp.MustCompile(`[^\d,.\-]`)

// cleanNumber strips currency symbols and text, then settles the decimal
// separator: "R$ 1.234,56" -> "1234.56", "1,234.56" -> "1234.56",
// "12,5" -> "12.5".
func cleanNumber(value string) string {
	cleaned := nonNumericRe.ReplaceAllString(strings.TrimSpace(value), "")

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastComma > lastDot:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case lastDot > lastComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	return cleaned
}

// ParseQuantity parses a stock quantity. Empty means zero; anything that is
// not a non-negative number is an error. Fractions are truncated.
func ParseQuantity(value string) (int, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}

	cleaned := cleanNumber(value)
	if cleaned == "" {
		return 0, fmt.Errorf("valor não numérico: %q", value)
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("valor não numérico: %q", value)
	}
	if f < 0 {
		return 0, fmt.Errorf("valor negativo: %q", value)
	}
	if f > math.MaxInt32 {
		return 0, fmt.Errorf("valor fora do intervalo: %q", value)
	}
	return int(f), nil
}

// ParsePrice parses a monetary value. The second result is false when the
// value is empty, unparsable or negative; callers drop the field then.
func ParsePrice(value string) (decimal.Decimal, bool) {
	cleaned := cleanNumber(value)
	if cleaned == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return decimal.Zero, false
	}
	return d.Round(2), true
}

// FormatPrice formats a price with a decimal comma: 12.5 -> "12,50"
func FormatPrice(value float64) string {
	return strings.ReplaceAll(decimal.NewFromFloat(value).StringFixed(2), ".", ",")
}
