package runtime

import (
	"github.com/lemonberrylabs/bigrun/pkg/token"
)

// HealTokens closes loops the script forgot to close. When a line dedents
// to or left of an open "start loop", a virtual "keep 1" is inserted before
// it; loops still open at the end get one before EOF. A written keep closes
// the innermost open loop.
func HealTokens(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks)+8)
	var open []token.Token
	line := 0

	closeLoop := func(at token.Token) {
		keep := token.New(token.Keep, at.Line, at.Column)
		one := token.New(token.Number, at.Line, at.Column+len("keep "))
		one.Num = 1
		out = append(out, keep, one)
		open = open[:len(open)-1]
	}

	for k, t := range toks {
		if t.Kind == token.EOF {
			for len(open) > 0 {
				closeLoop(open[len(open)-1])
			}
			out = append(out, t)
			continue
		}
		if t.Line != line {
			line = t.Line
			for len(open) > 0 && open[len(open)-1].Column >= t.Column && t.Kind != token.Keep {
				closeLoop(open[len(open)-1])
			}
		}
		switch {
		case t.Kind == token.Start && k+1 < len(toks) && toks[k+1].Kind == token.Loop,
			t.Kind == token.Sloop:
			open = append(open, t)
		case t.Kind == token.Keep && len(open) > 0:
			open = open[:len(open)-1]
		}
		out = append(out, t)
	}
	return out
}
