package runtime

import (
	"math"
	"strings"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// mathItem is either an operator or a value in a flattened expression.
type mathItem struct {
	op  token.Kind // zero for values
	val float64
}

var unaryFuncs = map[token.Kind]func(float64) float64{
	token.Sqrt:  math.Sqrt,
	token.Sin:   func(x float64) float64 { return math.Sin(x * math.Pi / 180) },
	token.Cos:   func(x float64) float64 { return math.Cos(x * math.Pi / 180) },
	token.Tan:   func(x float64) float64 { return math.Tan(x * math.Pi / 180) },
	token.Abs:   math.Abs,
	token.Log:   math.Log10,
	token.Floor: math.Floor,
	token.Ceil:  math.Ceil,
	token.Round: math.Round,
}

// Evaluate computes the arithmetic value of toks. Powers and remainders bind
// tightest, then products and quotients, then sums. Division by zero yields
// 0 and raises the DivisionByZero bug.
func (in *Interpreter) Evaluate(toks []token.Token) float64 {
	items := in.flatten(toks)
	items = foldUnary(items)
	items = reduce(items, func(op token.Kind) bool { return op == token.Caret || op == token.Remainder },
		func(op token.Kind, a, b float64) float64 {
			if op == token.Caret {
				return math.Pow(a, b)
			}
			if b == 0 {
				return 0
			}
			return math.Mod(a, b)
		})
	items = reduce(items, func(op token.Kind) bool { return op == token.Star || op == token.Slash },
		func(op token.Kind, a, b float64) float64 {
			if op == token.Star {
				return a * b
			}
			if b == 0 {
				in.RaiseBug("DivisionByZero")
				return 0
			}
			return a / b
		})

	acc := 0.0
	op := token.Plus
	for _, it := range items {
		switch it.op {
		case 0:
			if op == token.Minus {
				acc -= it.val
			} else {
				acc += it.val
			}
		case token.Plus, token.Minus:
			op = it.op
		}
	}
	return acc
}

// flatten resolves groups, functions and operands into a list of values and
// binary operators.
func (in *Interpreter) flatten(toks []token.Token) []mathItem {
	var items []mathItem
	for j := 0; j < len(toks); j++ {
		t := toks[j]
		switch t.Kind {
		case token.Plus, token.Minus, token.Star, token.Slash, token.Caret, token.Remainder:
			items = append(items, mathItem{op: t.Kind})
		case token.LParen:
			end := closingParen(toks, j)
			items = append(items, mathItem{val: in.Evaluate(toks[j+1 : end])})
			j = end
		case token.Sqrt, token.Sin, token.Cos, token.Tan, token.Abs, token.Log,
			token.Floor, token.Ceil, token.Round:
			v, next := in.operand(toks, j+1)
			items = append(items, mathItem{val: unaryFuncs[t.Kind](v)})
			j = next
		case token.Minimum, token.Maximum:
			a, next := in.operand(toks, j+1)
			k := next + 1
			if k < len(toks) && toks[k].Kind == token.Identifier && strings.EqualFold(toks[k].Text, "and") {
				k++
			}
			b, next := in.operand(toks, k)
			if t.Kind == token.Minimum {
				items = append(items, mathItem{val: math.Min(a, b)})
			} else {
				items = append(items, mathItem{val: math.Max(a, b)})
			}
			j = next
		case token.Pi:
			items = append(items, mathItem{val: math.Pi})
		case token.Euler:
			items = append(items, mathItem{val: math.E})
		case token.BigTick:
			items = append(items, mathItem{val: float64(in.Tick())})
		case token.BigDelta:
			items = append(items, mathItem{val: in.FrameDelta()})
		case token.Dollar:
		case token.Len:
			v, _ := types.ParseNumber(in.ComplexValue(&j, toks))
			items = append(items, mathItem{val: v})
		default:
			items = append(items, mathItem{val: in.resolveNumber(t)})
		}
	}
	return items
}

// operand reads a parenthesised group or a single value at toks[j] and
// returns it with the index of its last token.
func (in *Interpreter) operand(toks []token.Token, j int) (float64, int) {
	for j < len(toks) && toks[j].Kind == token.Dollar {
		j++
	}
	if j >= len(toks) {
		return 0, len(toks) - 1
	}
	if toks[j].Kind == token.LParen {
		end := closingParen(toks, j)
		return in.Evaluate(toks[j+1 : end]), end
	}
	return in.resolveNumber(toks[j]), j
}

func (in *Interpreter) resolveNumber(t token.Token) float64 {
	switch t.Kind {
	case token.Number, token.Rate:
		return t.Num
	case token.Identifier, token.String:
		v, _ := types.ParseNumber(in.TokenValue(t))
		return v
	}
	if t.Kind.IsKeyword() {
		v, _ := types.ParseNumber(in.TokenValue(t))
		return v
	}
	return 0
}

// closingParen returns the index of the parenthesis matching toks[open], or
// len(toks) when it is unclosed.
func closingParen(toks []token.Token, open int) int {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch toks[j].Kind {
		case token.LParen:
			depth++
		case token.RParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return len(toks)
}

// foldUnary turns a sign that follows another operator into part of the
// value after it. A leading sign is left to the final sum.
func foldUnary(items []mathItem) []mathItem {
	out := make([]mathItem, 0, len(items))
	for k := 0; k < len(items); k++ {
		it := items[k]
		signed := it.op == token.Minus || it.op == token.Plus
		afterOp := len(out) > 0 && out[len(out)-1].op != 0
		if signed && afterOp && k+1 < len(items) && items[k+1].op == 0 {
			v := items[k+1].val
			if it.op == token.Minus {
				v = -v
			}
			out = append(out, mathItem{val: v})
			k++
			continue
		}
		out = append(out, it)
	}
	return out
}

// reduce applies the operators selected by match left to right.
func reduce(items []mathItem, match func(token.Kind) bool, apply func(token.Kind, float64, float64) float64) []mathItem {
	out := make([]mathItem, 0, len(items))
	for k := 0; k < len(items); k++ {
		it := items[k]
		if it.op != 0 && match(it.op) && len(out) > 0 && out[len(out)-1].op == 0 && k+1 < len(items) && items[k+1].op == 0 {
			prev := &out[len(out)-1]
			prev.val = apply(it.op, prev.val, items[k+1].val)
			k++
			continue
		}
		out = append(out, it)
	}
	return out
}

// Condition evaluates an if/keep condition.
func (in *Interpreter) Condition(toks []token.Token) bool {
	if len(toks) == 0 {
		return true
	}
	if len(toks) == 3 && toks[0].Kind == token.Any && toks[1].Kind == token.Bug && toks[2].Kind == token.Found {
		return in.bug.IsSet()
	}

	for k, t := range toks {
		switch t.Kind {
		case token.Greater, token.Less, token.GreaterEqual, token.LessEqual, token.NotEqual, token.Assign:
			return compare(t.Kind, in.side(toks[:k]), in.side(toks[k+1:]))
		}
	}
	return in.Evaluate(toks) > 0
}

// side renders one operand of a comparison. Arithmetic is evaluated; any
// other tokens are concatenated as values.
func (in *Interpreter) side(toks []token.Token) string {
	if hasMath(toks) {
		return types.FormatNumber(in.Evaluate(toks))
	}
	var sb strings.Builder
	for j := 0; j < len(toks); j++ {
		if toks[j].Kind == token.Dollar && j+1 < len(toks) {
			if v, ok := in.Get(in.RawName(toks[j+1])); ok {
				sb.WriteString(v)
				j++
				continue
			}
		}
		if toks[j].Kind == token.String {
			sb.WriteString(in.Interpolate(toks[j].Text))
			continue
		}
		sb.WriteString(in.TokenValue(toks[j]))
	}
	return sb.String()
}

const epsilon = 0.00001

func compare(op token.Kind, left, right string) bool {
	ln, lok := types.ParseNumber(left)
	rn, rok := types.ParseNumber(right)
	if lok && rok {
		switch op {
		case token.Greater:
			return ln > rn
		case token.Less:
			return ln < rn
		case token.GreaterEqual:
			return ln >= rn
		case token.LessEqual:
			return ln <= rn
		case token.NotEqual:
			return math.Abs(ln-rn) > epsilon
		case token.Assign:
			return math.Abs(ln-rn) < epsilon
		}
		return false
	}
	switch op {
	case token.Greater:
		return left > right
	case token.Less:
		return left < right
	case token.GreaterEqual:
		return left >= right
	case token.LessEqual:
		return left <= right
	case token.NotEqual:
		return left != right
	case token.Assign:
		return left == right
	}
	return false
}

// mathKinds mark a value as arithmetic.
var mathKinds = map[token.Kind]bool{
	token.Plus: true, token.Minus: true, token.Star: true, token.Slash: true, token.Caret: true,
	token.Remainder: true, token.Sqrt: true, token.Sin: true, token.Cos: true, token.Tan: true,
	token.Abs: true, token.Log: true, token.Minimum: true, token.Maximum: true,
	token.Pi: true, token.Euler: true,
}

func hasMath(toks []token.Token) bool {
	for _, t := range toks {
		if mathKinds[t.Kind] {
			return true
		}
	}
	return false
}

// statement keywords end a math value on an assignment line.
var mathStops = map[token.Kind]bool{
	token.Ampersand: true, token.Print: true, token.Set: true, token.Start: true,
	token.Loop: true, token.If: true, token.Or: true, token.End: true,
}

// mathSpan returns the end (exclusive) of an arithmetic value starting at
// toks[start].
func mathSpan(toks []token.Token, start int) int {
	line := peek(toks, start).Line
	j := start
	for j < len(toks) && toks[j].Kind != token.EOF && toks[j].Line == line && !mathStops[toks[j].Kind] {
		j++
	}
	return j
}

// layout words end a math operand in step and drawing statements.
var layoutStops = map[token.Kind]bool{
	token.At: true, token.AtWord: true, token.Ampersand: true,
	token.Fill: true, token.Stroke: true, token.Spacing: true, token.Padding: true,
	token.Font: true, token.Rotate: true, token.Scale: true, token.Alpha: true,
	token.Tint: true, token.Layer: true, token.Tag: true,
}

var layoutWords = map[string]bool{
	"size": true, "font": true, "radius": true, "fill": true, "color": true,
	"fontsize": true, "width": true, "tag": true, "layer": true,
}

func isMathValue(t token.Token) bool {
	switch t.Kind {
	case token.Number, token.Rate, token.Identifier, token.String, token.RParen:
		return true
	}
	return false
}

// consumeMath evaluates the arithmetic operand starting at toks[*i] and
// leaves i on its last token. It stops at the end of the line, at layout
// keywords, and where one value directly follows another.
func (in *Interpreter) consumeMath(i *int, toks []token.Token) float64 {
	start := *i
	line := peek(toks, start).Line
	j := start
	for ; j < len(toks); j++ {
		t := toks[j]
		if t.Kind == token.EOF || t.Line != line || layoutStops[t.Kind] {
			break
		}
		if t.Kind == token.Identifier && layoutWords[strings.ToLower(t.Text)] {
			break
		}
		if j > start && (isMathValue(t) || t.Kind == token.LParen || t.Kind.IsKeyword() && !mathKinds[t.Kind]) && isMathValue(toks[j-1]) {
			break
		}
	}
	if j == start {
		return 0
	}
	*i = j - 1
	return in.Evaluate(toks[start:j])
}
