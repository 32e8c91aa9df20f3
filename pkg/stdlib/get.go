package stdlib

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerGet registers the get verb, which reads a value from one of many
// sources and hands it to the "& set as" tail.
func (r *Registry) registerGet() {
	r.Register(token.Get, r.get)
}

func (r *Registry) get(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if !onLine(toks, *i, j) {
		return
	}
	t := toks[j]

	if t.Kind == token.Identifier {
		switch strings.ToLower(t.Text) {
		case "web":
			r.getWeb(h, i, toks, j)
			return
		case "time":
			getTime(h, i, toks, j)
			return
		case "count":
			getCount(h, i, toks, j)
			return
		}
	}

	if as := asPosition(toks, j); as > 0 && t.Kind != token.Len {
		getAs(h, i, toks, j, as)
		return
	}

	switch t.Kind {
	case token.Len:
		v, end := value(h, toks, j)
		bind(h, i, toks, end, v)
	case token.From:
		getFrom(h, i, toks, j)
	case token.Warp:
		v, end := text(h, toks, j+1)
		bind(h, i, toks, end, v)
	case token.Luck:
		getLuck(h, i, toks, j)
	case token.Markdown:
		src, end := value(h, toks, j+1)
		bind(h, i, toks, end, renderMarkdown(src))
	case token.Setting:
		key := h.TokenValue(peek(toks, j+1))
		bind(h, i, toks, j+1, os.Getenv(key))
	case token.Map:
		bind(h, i, toks, j, "{}")
	case token.Sql:
		*i = j
		sqlQuery(h, i, toks)
	case token.Post:
		r.getPost(h, i, toks, j)
	case token.LBrace:
		end := j
		name := h.BracedName(&end, toks)
		bind(h, i, toks, end, varOr(h, name, "{}"))
	case token.String, token.Dollar, token.Identifier, token.Value,
		token.TextShape, token.Image, token.Button, token.Font:
		getValues(h, i, toks, j)
	default:
		abandon(i, toks)
	}
}

// asPosition returns the index of an "as" between toks[j] and the first
// '&' of the line, or -1.
func asPosition(toks []token.Token, j int) int {
	for k := j; onLine(toks, j, k); k++ {
		switch toks[k].Kind {
		case token.Ampersand:
			return -1
		case token.As:
			return k
		}
	}
	return -1
}

// getValues binds one or more values, each optionally rewritten in place:
// get "a" B "c" replace x with y & set as {A} {B} {C}.
func getValues(h types.Host, i *int, toks []token.Token, j int) {
	var items []string
	end := j - 1
	for onLine(toks, *i, end+1) {
		v, e := text(h, toks, end+1)
		end = e
		if peek(toks, end+1).Kind == token.Replace {
			old, e := text(h, toks, end+2)
			end = e
			if peek(toks, end+1).Kind == token.With {
				repl, e := text(h, toks, end+2)
				end = e
				v = strings.ReplaceAll(v, old, repl)
			}
		}
		items = append(items, v)
		if k := peek(toks, end+1).Kind; k != token.String && k != token.Dollar && k != token.Identifier {
			break
		}
	}
	bind(h, i, toks, end, items...)
}

// getAs validates or transforms a value: get X [Y Z] as kind & set as {R}.
func getAs(h types.Host, i *int, toks []token.Token, j, as int) {
	var inputs []string
	for k := j; k < as; k++ {
		inputs = append(inputs, h.Interpolate(h.TokenValue(toks[k])))
	}
	kind := word(h, peek(toks, as+1))
	bind(h, i, toks, as+1, convert(kind, inputs))
}

func convert(kind string, inputs []string) string {
	arg := func(k int) string {
		if k < len(inputs) {
			return inputs[k]
		}
		return ""
	}
	val := arg(0)
	num := func(k int) float64 {
		n, _ := strconv.ParseFloat(arg(k), 64)
		return n
	}

	switch kind {
	case "email":
		return boolText(emailPattern.MatchString(val))
	case "number":
		_, err := strconv.ParseFloat(val, 64)
		return boolText(err == nil)
	case "url":
		return boolText(strings.HasPrefix(val, "http://") || strings.HasPrefix(val, "https://"))
	case "alphanumeric":
		for _, c := range val {
			if !unicode.IsLetter(c) && !unicode.IsDigit(c) {
				return "false"
			}
		}
		return "true"
	case "clean":
		return strings.TrimSpace(val)
	case "bigcap":
		return strings.ToUpper(val)
	case "lower":
		return strings.ToLower(val)
	case "floor":
		return types.FormatNumber(math.Floor(num(0)))
	case "ceil":
		return types.FormatNumber(math.Ceil(num(0)))
	case "round":
		return types.FormatNumber(math.Round(num(0)))
	case "abs", "positive":
		if val == "-" && len(inputs) > 1 {
			return types.FormatNumber(math.Abs(num(1)))
		}
		return types.FormatNumber(math.Abs(num(0)))
	case "smaller":
		return types.FormatNumber(math.Min(num(0), num(1)))
	case "bigger":
		return types.FormatNumber(math.Max(num(0), num(1)))
	case "between":
		lo, hi := num(1), num(2)
		return types.FormatNumber(math.Max(lo, math.Min(hi, num(0))))
	case "len", "length", "count":
		if strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]") {
			return strconv.Itoa(len(types.ParseList(val)))
		}
		return strconv.Itoa(utf8.RuneCountInString(val))
	}
	return "false"
}

// getFrom reads a list element: get from {L} @N & set as {Item}.
func getFrom(h types.Host, i *int, toks []token.Token, j int) {
	end := j + 1
	name := h.BracedName(&end, toks)
	pos, end, ok := atValue(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	item, ok := listItem(varOr(h, name, "[]"), pos)
	if !ok {
		*i = end
		return
	}
	bind(h, i, toks, end, item)
}

// getCount binds a list's length: get count of {L} & set as {N}.
func getCount(h types.Host, i *int, toks []token.Token, j int) {
	if peek(toks, j+1).Kind != token.Of {
		abandon(i, toks)
		return
	}
	end := j + 2
	name := h.BracedName(&end, toks)
	bind(h, i, toks, end, strconv.Itoa(listLen(varOr(h, name, "[]"))))
}

// getTime binds a clock reading: get time unix|tick|delta.
func getTime(h types.Host, i *int, toks []token.Token, j int) {
	var v string
	switch word(h, peek(toks, j+1)) {
	case "unix":
		v = strconv.FormatInt(time.Now().Unix(), 10)
	case "tick":
		v = strconv.FormatInt(h.Tick(), 10)
	case "delta":
		v = strconv.FormatInt(h.TimeDelta(), 10)
	default:
		abandon(i, toks)
		return
	}
	bind(h, i, toks, j+1, v)
}
