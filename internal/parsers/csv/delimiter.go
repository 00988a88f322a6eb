package csv

import "unicode/utf8"

// DetectDelimiter picks the delimiter that splits the first lines into the
// most consistent, non-zero number of fields. Delimiters inside quotes are
// not counted. Falls back to comma.
func DetectDelimiter(content string) Delimiter {
	sample := nonBlankLines(content)
	if len(sample) > 5 {
		sample = sample[:5]
	}
	if len(sample) == 0 {
		return DelimiterComma
	}

	best := DelimiterComma
	bestScore := 0.0

	for _, delim := range []Delimiter{DelimiterComma, DelimiterSemicolon, DelimiterTab} {
		r, _ := utf8.DecodeRuneInString(string(delim))

		sum := 0
		counts := make([]int, len(sample))
		for i, line := range sample {
			counts[i] = countUnquoted(line, r, '"')
			sum += counts[i]
		}

		avg := float64(sum) / float64(len(counts))
		if avg == 0 {
			continue
		}

		variance := 0.0
		for _, c := range counts {
			d := float64(c) - avg
			variance += d * d
		}
		variance /= float64(len(counts))

		score := avg / (1.0 + variance)
		if score > bestScore {
			bestScore = score
			best = delim
		}
	}

	return best
}

func countUnquoted(line string, delim rune, quote rune) int {
	count := 0
	inQuotes := false
	for _, r := range line {
		switch {
		case r == quote:
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			count++
		}
	}
	return count
}
