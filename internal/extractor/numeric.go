package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

// compactCountPattern matches engagement counts as Instagram renders them:
// plain integers with optional thousands separators, or a decimal with a
// K/M abbreviation suffix. Anything else is not a count.
var compactCountPattern = regexp.MustCompile(`^([0-9]+(?:[.,][0-9]+)*)\s*([KkMm])?$`)

// ParseCompactCount converts a rendered count token into an integer.
// "8M" -> 8000000, "100K" -> 100000, "1,234" -> 1234, "57.3K" -> 57300.
// Only K and M suffixes are recognized; unparseable text yields 0.
func ParseCompactCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	m := compactCountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	number := m[1]
	suffix := strings.ToUpper(m[2])

	multiplier := 1.0
	switch suffix {
	case "K":
		multiplier = 1_000
	case "M":
		multiplier = 1_000_000
	}

	if suffix != "" {
		// With a suffix, separators are decimal points ("57.3K", "1,2M")
		number = strings.ReplaceAll(number, ",", ".")
		value, err := strconv.ParseFloat(number, 64)
		if err != nil {
			return 0
		}
		return int(value * multiplier) // truncate toward zero
	}

	// Without a suffix, commas and dots are thousands separators ("1,234")
	number = strings.ReplaceAll(number, ",", "")
	number = strings.ReplaceAll(number, ".", "")
	value, err := strconv.Atoi(number)
	if err != nil {
		return 0
	}
	return value
}

// IsCompactCount reports whether a token looks like a rendered count
func IsCompactCount(text string) bool {
	return compactCountPattern.MatchString(strings.TrimSpace(text))
}
