package runtime

import (
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// isAssignment reports whether toks[i] starts "Name = v" or "Obj.prop = v".
func isAssignment(toks []token.Token, i int) bool {
	t := peek(toks, i)
	if t.Kind != token.Identifier && !t.Kind.IsKeyword() {
		return false
	}
	next := peek(toks, i+1)
	if next.Kind == token.Assign && next.Line == t.Line {
		return true
	}
	return next.Kind == token.Dot && peek(toks, i+3).Kind == token.Assign && peek(toks, i+3).Line == t.Line
}

// doSet handles "set", "update" and "global" assignments. "global" also
// copies the result into the global store.
func (in *Interpreter) doSet(i *int, toks []token.Token) {
	kw := toks[*i]
	if !isAssignment(toks, *i+1) {
		*i = lineEnd(toks, *i)
		return
	}
	name := in.doAssign(i, toks, *i+1)
	if kw.Kind == token.Global && name != "" {
		if v, ok := in.Get(name); ok {
			in.globals.Set(name, v)
		}
	}
}

// doAssign performs the assignment whose target starts at toks[at] and
// returns the assigned variable name. Nothing is assigned when computing
// the value raised a bug.
func (in *Interpreter) doAssign(i *int, toks []token.Token, at int) string {
	target := toks[at]
	if peek(toks, at+1).Kind == token.Dot {
		obj := in.RawName(target)
		field := in.RawName(peek(toks, at+2))
		*i = at + 4
		value := in.Interpolate(in.TokenValue(peek(toks, *i)))
		raw, _ := in.Get(obj)
		if updated, ok := types.SetObjectField(raw, field, value); ok {
			in.Set(obj, updated)
		}
		return ""
	}

	name := in.RawName(target)
	bugBefore := in.bug.IsSet()
	value := in.assignValue(i, toks, at+2)
	if in.bug.IsSet() && !bugBefore {
		return ""
	}
	in.Set(name, value)
	return name
}

// assignValue reads the value of an assignment starting at toks[start]:
// the w(...) builder, S[...] math, arithmetic on the rest of the statement,
// or a single complex value. i is left on the last token read.
func (in *Interpreter) assignValue(i *int, toks []token.Token, start int) string {
	*i = start
	if isWarpCall(toks, start) {
		return in.warp(i, toks)
	}
	if peek(toks, start).Kind == token.Solve && peek(toks, start+1).Kind == token.LBracket {
		return types.FormatNumber(in.solve(i, toks))
	}
	if end := mathSpan(toks, start); end > start && hasMath(toks[start:end]) {
		*i = end - 1
		return types.FormatNumber(in.Evaluate(toks[start:end]))
	}
	if peek(toks, start).Kind == token.EOF {
		*i = start - 1
		return ""
	}
	return in.ComplexValue(i, toks)
}
