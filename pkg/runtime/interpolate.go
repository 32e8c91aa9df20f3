package runtime

import (
	"strings"
	"unicode"
)

// Interpolate substitutes $Name and ${Name} references in text. "\$" yields
// a literal dollar. A reference that does not resolve is left as written.
func (in *Interpreter) Interpolate(text string) string {
	if !strings.ContainsRune(text, '$') {
		return text
	}
	rs := []rune(text)
	var sb strings.Builder
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		if c == '\\' && i+1 < len(rs) && rs[i+1] == '$' {
			sb.WriteRune('$')
			i++
			continue
		}
		if c != '$' {
			sb.WriteRune(c)
			continue
		}

		if i+1 < len(rs) && rs[i+1] == '{' {
			end := i + 2
			for end < len(rs) && rs[end] != '}' {
				end++
			}
			if end < len(rs) {
				name := string(rs[i+2 : end])
				if v, ok := in.Get(name); ok {
					sb.WriteString(v)
				} else {
					sb.WriteString(string(rs[i : end+1]))
				}
				i = end
				continue
			}
			sb.WriteRune(c)
			continue
		}

		end := i + 1
		for end < len(rs) {
			r := rs[end]
			if isNameRune(r) {
				end++
				continue
			}
			if r == '.' && end+1 < len(rs) && (unicode.IsLetter(rs[end+1]) || unicode.IsDigit(rs[end+1])) {
				end++
				continue
			}
			break
		}
		if end == i+1 {
			sb.WriteRune(c)
			continue
		}
		name := string(rs[i+1 : end])
		if v, ok := in.Get(name); ok {
			sb.WriteString(v)
		} else {
			sb.WriteRune('$')
			sb.WriteString(name)
		}
		i = end - 1
	}
	return sb.String()
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
