package stdlib

import (
	"strings"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// peek returns toks[i], or an EOF token when i is out of range.
func peek(toks []token.Token, i int) token.Token {
	if i < 0 || i >= len(toks) {
		return token.New(token.EOF, 0, 0)
	}
	return toks[i]
}

// lineEnd returns the index of the last token on the line of toks[i].
func lineEnd(toks []token.Token, i int) int {
	if i < 0 || i >= len(toks) {
		return len(toks) - 1
	}
	line := toks[i].Line
	for i+1 < len(toks) && toks[i+1].Kind != token.EOF && toks[i+1].Line == line {
		i++
	}
	return i
}

// onLine reports whether toks[j] continues the statement line of toks[i].
func onLine(toks []token.Token, i, j int) bool {
	t := peek(toks, j)
	return t.Kind != token.EOF && t.Line == peek(toks, i).Line
}

// abandon drops the rest of a statement the verb could not parse.
func abandon(i *int, toks []token.Token) {
	*i = lineEnd(toks, *i)
}

// value reads one value starting at toks[j]. It returns the value and the
// index of its last token.
func value(h types.Host, toks []token.Token, j int) (string, int) {
	v := h.ComplexValue(&j, toks)
	return v, j
}

// text reads one value like value and interpolates it.
func text(h types.Host, toks []token.Token, j int) (string, int) {
	v, end := value(h, toks, j)
	return h.Interpolate(v), end
}

// atName reads an "@Name" or "@{Name}" target starting at the '@' in
// toks[j]. ok is false when there is no '@' or its spacing is wrong.
func atName(h types.Host, toks []token.Token, j int) (name string, end int, ok bool) {
	if peek(toks, j).Kind != token.At || !h.CheckAt(j, toks) {
		return "", j, false
	}
	j++
	name = h.BracedName(&j, toks)
	return name, j, true
}

// atValue reads an "@value" target starting at the '@' in toks[j].
func atValue(h types.Host, toks []token.Token, j int) (v string, end int, ok bool) {
	if peek(toks, j).Kind != token.At || !h.CheckAt(j, toks) {
		return "", j, false
	}
	v, end = text(h, toks, j+1)
	return v, end, true
}

// braced reports whether toks[j] opens a {Name} reference.
func braced(toks []token.Token, j int) bool {
	return peek(toks, j).Kind == token.LBrace
}

// bind finishes a verb whose last consumed token is toks[end] and hands
// results to the "& set as" tail.
func bind(h types.Host, i *int, toks []token.Token, end int, results ...string) {
	*i = end
	h.SetAs(i, toks, results)
}

// varOr returns the value of name, or def when it is unset.
func varOr(h types.Host, name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func number(s string) float64 {
	n, _ := types.ParseNumber(s)
	return n
}

// index converts a 1-based script position to a slice index.
func index(s string) int {
	n := int(number(s))
	if n > 0 {
		return n - 1
	}
	return 0
}

// word is the lowercase source word of a token, without variable lookup.
func word(h types.Host, t token.Token) string {
	return strings.ToLower(h.RawName(t))
}

// isValueStart reports whether t can begin a value in a joined list such
// as print "a" & B.
func isValueStart(t token.Token) bool {
	switch t.Kind {
	case token.String, token.Number, token.Rate, token.Identifier, token.LBrace,
		token.Dollar, token.Len, token.Solve, token.Warp, token.BigTick, token.BigDelta:
		return true
	}
	return false
}
