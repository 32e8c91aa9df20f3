package stdlib

import (
	"strings"

	"golang.org/x/net/html"
)

// lookHTML returns the value attribute, or else the text, of the first
// element matching sel. Selectors are compound simple selectors (tag, #id,
// .class, [attr] and [attr=val]) joined by descendant spaces.
func lookHTML(sel, src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return ""
	}
	chain := parseSelector(sel)
	if len(chain) == 0 {
		return ""
	}
	n := findFirst(doc, chain)
	if n == nil {
		return ""
	}
	if v, ok := attr(n, "value"); ok {
		return v
	}
	var sb strings.Builder
	collectText(n, &sb)
	return strings.TrimSpace(sb.String())
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrs   [][2]string // name, value
	hasVal  []bool      // false: [attr] matches on presence
}

func parseSelector(sel string) []simpleSelector {
	var chain []simpleSelector
	for _, part := range strings.Fields(sel) {
		if part == ">" {
			continue
		}
		chain = append(chain, parseCompound(part))
	}
	return chain
}

func parseCompound(s string) simpleSelector {
	var ss simpleSelector
	for len(s) > 0 {
		switch s[0] {
		case '#', '.':
			end := 1
			for end < len(s) && !strings.ContainsRune("#.[", rune(s[end])) {
				end++
			}
			if s[0] == '#' {
				ss.id = s[1:end]
			} else {
				ss.classes = append(ss.classes, s[1:end])
			}
			s = s[end:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				end = len(s)
			}
			body := s[1:end]
			name, val, has := strings.Cut(body, "=")
			ss.attrs = append(ss.attrs, [2]string{strings.TrimSpace(name), strings.Trim(strings.TrimSpace(val), `"'`)})
			ss.hasVal = append(ss.hasVal, has)
			if end < len(s) {
				end++
			}
			s = s[end:]
		default:
			end := 0
			for end < len(s) && !strings.ContainsRune("#.[", rune(s[end])) {
				end++
			}
			ss.tag = strings.ToLower(s[:end])
			s = s[end:]
		}
	}
	return ss
}

func (ss simpleSelector) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if ss.tag != "" && ss.tag != "*" && n.Data != ss.tag {
		return false
	}
	if ss.id != "" {
		if v, _ := attr(n, "id"); v != ss.id {
			return false
		}
	}
	if len(ss.classes) > 0 {
		v, _ := attr(n, "class")
		have := strings.Fields(v)
		for _, c := range ss.classes {
			if !contains(have, c) {
				return false
			}
		}
	}
	for k, a := range ss.attrs {
		v, ok := attr(n, a[0])
		if !ok || (ss.hasVal[k] && v != a[1]) {
			return false
		}
	}
	return true
}

// findFirst walks the tree in document order and returns the first node
// matching the last selector of chain whose ancestors match the rest.
func findFirst(n *html.Node, chain []simpleSelector) *html.Node {
	last := chain[len(chain)-1]
	if last.matches(n) && ancestorsMatch(n.Parent, chain[:len(chain)-1]) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, chain); found != nil {
			return found
		}
	}
	return nil
}

func ancestorsMatch(n *html.Node, chain []simpleSelector) bool {
	if len(chain) == 0 {
		return true
	}
	for p := n; p != nil; p = p.Parent {
		if chain[len(chain)-1].matches(p) && ancestorsMatch(p.Parent, chain[:len(chain)-1]) {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
