package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// defineFunction captures "start doing Name(a, b) ... end doing". The body
// ends at the first "end doing"; definitions do not nest.
func (in *Interpreter) defineFunction(i *int, toks []token.Token) {
	j := *i + 2
	fn := &function{name: in.RawName(peek(toks, j))}
	j++
	if peek(toks, j).Kind == token.LParen {
		for j++; j < len(toks) && toks[j].Kind != token.RParen && toks[j].Kind != token.EOF; j++ {
			if toks[j].IsChar(',') {
				continue
			}
			fn.params = append(fn.params, in.RawName(toks[j]))
		}
		j++
	}

	bodyStart := j
	end := bodyStart
	for end < len(toks) && toks[end].Kind != token.EOF {
		if toks[end].Kind == token.End && peek(toks, end+1).Kind == token.Doing {
			break
		}
		end++
	}
	fn.body = make([]token.Token, 0, end-bodyStart+1)
	fn.body = append(fn.body, toks[bodyStart:min(end, len(toks))]...)
	fn.body = append(fn.body, token.New(token.EOF, peek(toks, end).Line, peek(toks, end).Column))

	in.fnMu.Lock()
	in.funcs[fn.name] = fn
	in.fnMu.Unlock()

	if end < len(toks) && toks[end].Kind == token.End {
		*i = end + 1
	} else {
		*i = end - 1
	}
}

func (in *Interpreter) lookupFunction(name string) (*function, bool) {
	in.fnMu.RLock()
	defer in.fnMu.RUnlock()
	fn, ok := in.funcs[name]
	return fn, ok
}

// doRun dispatches "run sql ...", "run background Name" and function calls.
func (in *Interpreter) doRun(i *int, toks []token.Token) {
	next := peek(toks, *i+1)
	switch next.Kind {
	case token.Sql:
		*i++
		in.runVerb(token.Sql, i, toks)
		return
	case token.Background:
		*i += 2
		name := in.RawName(peek(toks, *i))
		fn, ok := in.lookupFunction(name)
		if !ok {
			in.RaiseBug(fmt.Sprintf("Function '%s' is not defined", name))
			return
		}
		in.background(fn)
		return
	}

	call := toks[*i]
	*i++
	name := in.RawName(peek(toks, *i))
	var args []string
	if peek(toks, *i+1).Kind == token.LParen {
		j := *i + 2
		for ; j < len(toks) && toks[j].Kind != token.RParen && toks[j].Kind != token.EOF; j++ {
			if toks[j].IsChar(',') {
				continue
			}
			args = append(args, in.ComplexValue(&j, toks))
		}
		if j >= len(toks) || toks[j].Kind == token.EOF {
			j--
		}
		*i = j
	}

	fn, ok := in.lookupFunction(name)
	if !ok {
		in.RaiseBug(fmt.Sprintf("Function '%s' is not defined", name))
		return
	}
	ret := in.invoke(fn, args, call)
	if in.halt != nil {
		return
	}
	in.SetAs(i, toks, []string{ret})
}

func (in *Interpreter) runVerb(k token.Kind, i *int, toks []token.Token) {
	if in.verbs == nil {
		return
	}
	if verb, ok := in.verbs.Lookup(k); ok {
		verb(in, i, toks)
	}
}

// invoke runs fn in a fresh local frame and returns its ReturnValue.
func (in *Interpreter) invoke(fn *function, args []string, call token.Token) string {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > MaxCallDepth {
		in.Fatal(types.NewStackOverflowError(MaxCallDepth))
		return types.Nothing
	}

	vars := make(map[string]string, len(fn.params))
	for k, p := range fn.params {
		if k < len(args) {
			vars[p] = args[k]
		} else {
			vars[p] = types.Nothing
		}
	}
	in.pushScope(vars)
	in.calls = append(in.calls, types.Frame{Name: fn.name, Line: call.Line, Column: call.Column})
	savedLoops, savedCond := in.loops, in.cond
	in.loops = nil
	in.globals.Delete("ReturnValue")

	in.exec(fn.body)
	in.endInvocation()

	in.returning.UnSet()
	in.loops, in.cond = savedLoops, savedCond
	in.calls = in.calls[:len(in.calls)-1]
	in.popScope()

	if v, ok := in.globals.Get("ReturnValue"); ok {
		return v
	}
	return types.Nothing
}

// background runs fn on its own goroutine with a fresh interpreter sharing
// the global store, function table and verbs.
func (in *Interpreter) background(fn *function) {
	child := newInterpreter(in.shared)
	child.ctx = in.ctx
	call := in.pos
	in.bg.Add(1)
	go func() {
		defer in.bg.Done()
		child.invoke(fn, nil, call)
	}()
}

// doAddrun runs a function body inline in the current scope, or ends the
// run for "addrun end".
func (in *Interpreter) doAddrun(i *int, toks []token.Token) {
	next := peek(toks, *i+1)
	*i++
	if next.Kind == token.End {
		in.stopRun.Set()
		return
	}
	name := in.RawName(next)
	fn, ok := in.lookupFunction(name)
	if !ok {
		in.RaiseBug(fmt.Sprintf("Function '%s' is not defined", name))
		return
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > MaxCallDepth {
		in.Fatal(types.NewStackOverflowError(MaxCallDepth))
		return
	}
	savedLoops := in.loops
	in.loops = nil
	in.exec(fn.body)
	in.loops = savedLoops
}

// features that are switched on by "use".
var switchable = map[token.Kind]string{
	token.Sql:   "sql",
	token.PyBig: "pybig",
	token.Sbig:  "sbig",
}

// doUse handles feature switches and includes.
func (in *Interpreter) doUse(i *int, toks []token.Token) {
	next := peek(toks, *i+1)
	*i++
	if name, ok := switchable[next.Kind]; ok {
		in.Enable(name)
		return
	}
	switch {
	case next.Kind == token.Lab:
		*i++
		in.include(in.Interpolate(peek(toks, *i).Text))
	case next.Kind == token.String:
		in.include(in.Interpolate(next.Text))
	case next.Kind == token.Identifier && strings.EqualFold(next.Text, "web"):
		in.Enable("web")
	case next.Kind == token.Guy, next.Kind == token.Sound, next.Kind == token.Autolayering:
		fmt.Fprintf(in.out, "Big Error: '%s' is not available in this build. (Line %d)\n", next.Kind, next.Line)
	default:
		*i--
	}
}

// include runs another script file in the current scope.
func (in *Interpreter) include(path string) {
	if !filepath.IsAbs(path) && in.dir != "" {
		path = filepath.Join(in.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		in.RaiseBug(fmt.Sprintf("File Error: Could not read '%s'", path))
		return
	}
	in.exec(lexer.Tokenize(string(data)))
}
