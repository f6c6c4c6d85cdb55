package eventclient

import (
	"regexp"
	"strings"
)

// compilePattern translates an event-type glob into a regexp: "*" matches
// any run of non-dot characters, "**" matches any run including dots.
// Everything else is matched literally.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^.]*")
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		}
	}
	b.WriteString("$")

	return regexp.Compile(b.String())
}

// MatchesPattern reports whether eventType matches the glob pattern
// described above.
func MatchesPattern(pattern, eventType string) bool {
	re, err := compilePattern(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(eventType)
}
