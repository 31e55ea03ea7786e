package llm

import "strings"

// RepairFunc turns raw model text into a candidate JSON object string.
// It returns false when it has nothing to offer for this input.
type RepairFunc func(raw string) (string, bool)

// Repair is a named RepairFunc.
type Repair struct {
	Name string
	Fn   RepairFunc
}

// Repairs are tried in order against free-text output. The first candidate
// that decodes and validates wins.
var Repairs = []Repair{
	{"direct", DirectParse},
	{"strip_embedded_object", StripEmbeddedObject},
	{"last_balanced_object", LastBalancedObject},
	{"object_ending_at_last_brace", ObjectEndingAtLastBrace},
}

// Candidates runs every repair over raw and returns the distinct candidates
// in repair order.
func Candidates(raw string) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range Repairs {
		c, ok := r.Fn(raw)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// DirectParse offers the text itself with any code fence removed.
func DirectParse(raw string) (string, bool) {
	text := stripFences(raw)
	return text, text != ""
}

// StripEmbeddedObject removes JSON objects that a model pasted, unescaped,
// inside a string value: a message field that swallows a duplicate of the
// whole response. Inside a string, an unescaped '{' followed by optional
// whitespace and '"' starts such an object; it is cut out up to its
// balancing '}' together with the whitespace in front of it.
func StripEmbeddedObject(raw string) (string, bool) {
	text := stripFences(raw)

	var b strings.Builder
	b.Grow(len(text))
	inString := false
	escaped := false
	removed := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			b.WriteByte(ch)
			continue
		}
		if inString && ch == '\\' {
			escaped = true
			b.WriteByte(ch)
			continue
		}
		if ch == '"' {
			inString = !inString
			b.WriteByte(ch)
			continue
		}
		if inString && ch == '{' && opensObject(text, i) {
			end, ok := balancedEnd(text, i)
			if !ok {
				return "", false
			}
			trimmed := strings.TrimRight(b.String(), " \t\r\n")
			b.Reset()
			b.WriteString(trimmed)
			i = end
			removed = true
			continue
		}
		b.WriteByte(ch)
	}

	if !removed {
		return "", false
	}
	return b.String(), true
}

// opensObject reports whether text[i] == '{' is followed by optional
// whitespace and a '"'.
func opensObject(text string, i int) bool {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\r', '\n':
			continue
		case '"':
			return true
		default:
			return false
		}
	}
	return false
}

// balancedEnd returns the index of the '}' that balances the '{' at start,
// honoring quoted strings and escapes.
func balancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// LastBalancedObject scans forward from the first '{' tracking depth,
// quoted strings and escapes, and returns the last complete top-level object.
func LastBalancedObject(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	last := ""

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' && depth > 0 {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				last = raw[start : i+1]
			}
		}
	}
	return last, last != ""
}

// ObjectEndingAtLastBrace returns the outermost object whose balancing '}'
// is the last '}' in the text.
func ObjectEndingAtLastBrace(raw string) (string, bool) {
	end := strings.LastIndexByte(raw, '}')
	if end < 0 {
		return "", false
	}
	for i := 0; i < end; i++ {
		if raw[i] != '{' {
			continue
		}
		if e, ok := balancedEnd(raw, i); ok && e == end {
			return raw[i : end+1], true
		}
	}
	return "", false
}
