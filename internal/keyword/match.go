// Package keyword implements the cheap pre-filter that decides whether a
// code pack mentions any of a prize's required technologies.
package keyword

import (
	"regexp"
	"strings"
)

// RegexPrefix marks a keyword as a regular expression rather than a literal.
const RegexPrefix = "re:"

// AnyMatch reports whether text contains at least one keyword.
// Literal keywords match case-insensitively as substrings. Keywords with the
// "re:" prefix are compiled as case-insensitive regular expressions; an
// invalid pattern never matches. Blank keywords are ignored.
func AnyMatch(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if Match(text, lower, kw) {
			return true
		}
	}
	return false
}

// Match tests a single keyword. lower must be strings.ToLower(text); it is
// passed in so callers checking many keywords lowercase the text once.
func Match(text, lower, kw string) bool {
	kw = strings.TrimSpace(kw)
	if pattern, ok := strings.CutPrefix(kw, RegexPrefix); ok {
		if pattern == "" {
			return false
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	if kw == "" {
		return false
	}
	return strings.Contains(lower, strings.ToLower(kw))
}

// Configured reports whether keywords holds at least one non-blank entry,
// i.e. whether the pre-filter applies at all.
func Configured(keywords []string) bool {
	for _, kw := range keywords {
		if strings.TrimSpace(kw) != "" {
			return true
		}
	}
	return false
}
