package runtime

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// TokenValue renders a single token as a script value. Identifiers resolve
// through the variable store and fall back to their own name; keywords do
// the same with their source word.
func (in *Interpreter) TokenValue(t token.Token) string {
	switch t.Kind {
	case token.Number:
		return types.FormatNumber(t.Num)
	case token.Rate:
		return types.FormatNumber(t.Num) + "x"
	case token.Identifier:
		if v, ok := in.Get(t.Text); ok {
			return v
		}
		return t.Text
	case token.String, token.ForeignCode:
		return t.Text
	case token.Char:
		return string(t.Char)
	case token.NotEqual:
		return "!= "
	case token.At, token.AtWord:
		return "at"
	case token.EOF:
		return ""
	}
	if t.Kind.IsKeyword() {
		word := t.Kind.String()
		if v, ok := in.Get(word); ok {
			return v
		}
		return word
	}
	return t.Kind.String()
}

// RawName renders a token as written, without resolving variables.
func (in *Interpreter) RawName(t token.Token) string {
	switch t.Kind {
	case token.Identifier, token.String, token.ForeignCode:
		return t.Text
	case token.Number:
		return types.FormatNumber(t.Num)
	case token.Rate:
		return types.FormatNumber(t.Num) + "x"
	case token.Char:
		return string(t.Char)
	case token.EOF:
		return ""
	}
	return t.Kind.String()
}

// BracedName reads a variable name written either bare or as {Name}. i is
// left on the last token of the name.
func (in *Interpreter) BracedName(i *int, toks []token.Token) string {
	if peek(toks, *i).Kind == token.LBrace {
		name := in.RawName(peek(toks, *i+1))
		if peek(toks, *i+2).Kind == token.RBrace {
			*i += 2
		} else {
			*i++
		}
		return name
	}
	return in.RawName(peek(toks, *i))
}

// ComplexValue reads one value starting at toks[*i] and leaves i on its
// last token. It understands len X, $Name, {Name}, the w(...) text builder,
// S[...] math and interpolated strings.
func (in *Interpreter) ComplexValue(i *int, toks []token.Token) string {
	for {
		k := peek(toks, *i).Kind
		if (k != token.At && k != token.AtWord) || *i+1 >= len(toks) {
			break
		}
		*i++
	}
	t := peek(toks, *i)
	next := peek(toks, *i+1)

	switch {
	case t.Kind == token.Len:
		*i++
		name := in.BracedName(i, toks)
		v, ok := in.Get(name)
		if !ok {
			v = name
		}
		return types.FormatNumber(float64(utf8.RuneCountInString(in.Interpolate(v))))
	case t.Kind == token.Dollar && next.Kind == token.Identifier:
		*i++
		if v, ok := in.Get(next.Text); ok {
			return v
		}
		return "$" + next.Text
	case t.Kind == token.LBrace && peek(toks, *i+2).Kind == token.RBrace:
		name := in.BracedName(i, toks)
		if v, ok := in.Get(name); ok {
			return v
		}
		return name
	case isWarpCall(toks, *i):
		return in.warp(i, toks)
	case t.Kind == token.Solve && next.Kind == token.LBracket:
		return types.FormatNumber(in.solve(i, toks))
	case t.Kind == token.String:
		return in.Interpolate(t.Text)
	}
	return in.TokenValue(t)
}

func isWarpCall(toks []token.Token, i int) bool {
	t := peek(toks, i)
	if peek(toks, i+1).Kind != token.LParen {
		return false
	}
	return t.Kind == token.Warp || (t.Kind == token.Identifier && (t.Text == "w" || t.Text == "warp"))
}

// warp builds text from the raw tokens between the parentheses, restoring a
// space wherever the source had a gap or a line break.
func (in *Interpreter) warp(i *int, toks []token.Token) string {
	j := *i + 2
	depth := 1
	var sb strings.Builder
	var prev *token.Token
	for ; j < len(toks) && toks[j].Kind != token.EOF; j++ {
		t := toks[j]
		if t.Kind == token.LParen {
			depth++
		}
		if t.Kind == token.RParen {
			depth--
			if depth == 0 {
				break
			}
		}
		if prev != nil && (t.Line != prev.Line || t.Column > prev.Column+prev.Width()) {
			sb.WriteByte(' ')
		}
		sb.WriteString(in.RawName(t))
		prev = &toks[j]
	}
	if j >= len(toks) || toks[j].Kind == token.EOF {
		j--
	}
	*i = j
	return in.Interpolate(strings.TrimSpace(sb.String()))
}

// solve evaluates S[...] and leaves i on the closing bracket.
func (in *Interpreter) solve(i *int, toks []token.Token) float64 {
	j := *i + 2
	depth := 1
	start := j
	for ; j < len(toks) && toks[j].Kind != token.EOF; j++ {
		if toks[j].Kind == token.LBracket {
			depth++
		}
		if toks[j].Kind == token.RBracket {
			depth--
			if depth == 0 {
				break
			}
		}
	}
	res := in.Evaluate(toks[start:min(j, len(toks))])
	if j >= len(toks) || toks[j].Kind == token.EOF {
		j--
	}
	*i = j
	return res
}

// SetAs consumes an optional "& set as {A} {B}" or "& set as list {L}" tail
// after toks[*i] and binds results in order. Names without a result get
// "nothing". i is left on the last consumed token.
func (in *Interpreter) SetAs(i *int, toks []token.Token, results []string) {
	j := *i + 1
	if peek(toks, j).Kind == token.Ampersand {
		j++
	}
	if peek(toks, j).Kind != token.Set || peek(toks, j+1).Kind != token.As {
		return
	}
	line := toks[j].Line
	j += 2

	if t := peek(toks, j); t.Kind == token.List && t.Line == line {
		j++
		name := in.BracedName(&j, toks)
		in.Set(name, types.EncodeList(results))
		*i = j
		return
	}

	for n := 0; ; n++ {
		t := peek(toks, j)
		if t.Line != line || (t.Kind != token.LBrace && t.Kind != token.Identifier && !t.Kind.IsKeyword()) {
			break
		}
		name := in.BracedName(&j, toks)
		value := types.Nothing
		if n < len(results) {
			value = results[n]
		}
		in.Set(name, value)
		j++
	}
	*i = j - 1
}

// CheckAt validates the spacing around the '@' at toks[i]: a space before
// it and the target attached directly after it.
func (in *Interpreter) CheckAt(i int, toks []token.Token) bool {
	at := peek(toks, i)
	if i > 0 {
		prev := toks[i-1]
		if prev.Line == at.Line && at.Column <= prev.Column+prev.Width() {
			fmt.Fprintf(in.out, "Big Error: Missing space before '@'! (Line %d)\n", at.Line)
			return false
		}
	}
	if next := peek(toks, i+1); next.Line != at.Line || next.Column != at.Column+1 {
		fmt.Fprintf(in.out, "Big Error: The target must be attached directly to '@'. No spaces allowed! (Line %d)\n", at.Line)
		return false
	}
	return true
}
