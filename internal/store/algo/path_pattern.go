package algo

import (
	"regexp"
	"strings"
)

// CompilePathPattern turns a shell glob (supporting `*` and `**`) or a
// regex-style `.*` pattern into a normalised regex anchored to the full
// path, per spec.md §4.1 "search_by_path."
func CompilePathPattern(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
				// Swallow a following path separator so "**/x" matches "x" too.
				if i+1 < len(runes) && runes[i+1] == '/' {
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '.':
			if i+1 < len(runes) && runes[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString(`\.`)
			}
		case '+', '(', ')', '[', ']', '{', '}', '^', '$', '|', '\\':
			b.WriteByte('\\')
			b.WriteRune(runes[i])
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteRune(runes[i])
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}
