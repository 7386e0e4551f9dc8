package anchor

import (
	"regexp"
	"strconv"
	"strings"
)

// numberIdioms are the recognized question-number writing styles, in match
// priority order:
//  1. number followed by a unit word ("3번", "12 번")
//  2. marker word followed by a number ("문제 3", "Q3", "No. 12")
//  3. bare leading integer with a separator ("3.", "12)", "7:")
var numberIdioms = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(\d{1,3})\s*(?:번|문)`),
	regexp.MustCompile(`(?i)^\s*(?:문제|문항|제|q|no\.?)\s*(\d{1,3})\b`),
	regexp.MustCompile(`^\s*(\d{1,3})\s*[.)\]:]`),
}

// ExtractNumber applies the idiom rules in order and returns the first
// normalized match. The second return value is false when no rule matches;
// that is an expected outcome, not a fault. Pure, stateless.
func ExtractNumber(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	for _, re := range numberIdioms {
		m := re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		return normalizeNumber(m[1]), true
	}
	return "", false
}

// normalizeNumber strips leading zeros so "03" and "3" collide on the same
// anchor key.
func normalizeNumber(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	return strconv.Itoa(n)
}
