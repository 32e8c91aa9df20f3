package runtime

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// loopFrame is the state of one open loop. resume is the index of the
// first body token.
type loopFrame struct {
	resume int
	count  int
	limit  int
	valid  bool

	foreach bool
	items   []string
	raw     string
	isMap   bool
	varName string
	valName string
	cursor  int
}

func (in *Interpreter) pushLoop(f *loopFrame) { in.loops = append(in.loops, f) }

func (in *Interpreter) popLoop() (*loopFrame, bool) {
	if len(in.loops) == 0 {
		return nil, false
	}
	f := in.loops[len(in.loops)-1]
	in.loops = in.loops[:len(in.loops)-1]
	return f, true
}

// doIf evaluates the condition up to '&' or the end of the line. A false
// condition skips the block indented under the if.
func (in *Interpreter) doIf(i *int, toks []token.Token) {
	start := *i
	line := toks[start].Line
	j := start + 1
	for j < len(toks) && toks[j].Kind != token.EOF && toks[j].Line == line && toks[j].Kind != token.Ampersand {
		j++
	}
	ok := in.Condition(toks[start+1 : j])
	if isBugCheck(toks, start) {
		in.ClearBug()
	}
	in.cond = ok
	if !ok {
		*i = skipBlock(toks, start, toks[start].Column)
		return
	}
	if peek(toks, j).Kind == token.Ampersand && toks[j].Line == line {
		*i = j
		return
	}
	*i = j - 1
}

// doOr runs its block only when no earlier branch of the chain matched.
func (in *Interpreter) doOr(i *int, toks []token.Token) {
	if !in.cond {
		in.cond = true
		return
	}
	col := toks[*i].Column
	j := lineEnd(toks, *i) + 1
	for j < len(toks) && toks[j].Kind != token.EOF && toks[j].Column > col {
		j = lineEnd(toks, j) + 1
	}
	*i = j - 1
}

// doStart handles "start loop", "start doing" and the block forms of
// subsystems that have no runtime here.
func (in *Interpreter) doStart(i *int, toks []token.Token) {
	next := peek(toks, *i+1)
	switch next.Kind {
	case token.Loop:
		in.startLoop(i, toks, *i+2)
	case token.Doing:
		in.defineFunction(i, toks)
	case token.Server:
		fmt.Fprintf(in.out, "Big Error: 'start server' is not available in scripts. Serve them with 'bigrun serve'. (Line %d)\n", next.Line)
		*i = skipBlock(toks, *i, toks[*i].Column)
	default:
		*i = skipBlock(toks, *i, toks[*i].Column)
	}
}

// startLoop opens a loop whose header begins at toks[*i] with options from
// toks[j]: ".r.N" caps the iterations and "on {Src} as {Var} [{Val}]"
// walks a list or map.
func (in *Interpreter) startLoop(i *int, toks []token.Token, j int) {
	head := toks[*i]
	f := &loopFrame{}

	if peek(toks, j).Line == head.Line && peek(toks, j).Kind == token.Dot && peek(toks, j+1).Kind == token.Identifier &&
		strings.EqualFold(toks[j+1].Text, "r") && peek(toks, j+2).Kind == token.Dot {
		f.limit = int(in.resolveNumber(peek(toks, j+3)))
		j += 4
	}

	if t := peek(toks, j); t.Line == head.Line && (t.Kind == token.On || t.Kind == token.AtWord) {
		j++
		f.foreach = true
		if peek(toks, j).Kind == token.String {
			f.raw = in.Interpolate(toks[j].Text)
		} else {
			name := in.BracedName(&j, toks)
			f.raw, _ = in.Get(name)
		}
		j++
		if peek(toks, j).Kind == token.As {
			j++
			f.varName = in.BracedName(&j, toks)
			j++
			if t := peek(toks, j); t.Line == head.Line && (t.Kind == token.LBrace || t.Kind == token.Identifier) {
				f.valName = in.BracedName(&j, toks)
			}
		}
		if strings.HasPrefix(strings.TrimSpace(f.raw), "{") {
			f.isMap = true
			f.items = types.MapKeys(f.raw)
		} else {
			f.items = types.ParseList(f.raw)
		}
	}

	end := lineEnd(toks, *i)
	f.resume = end + 1
	f.valid = f.resume < len(toks) && toks[f.resume].Kind != token.EOF && toks[f.resume].Column > head.Column

	if f.foreach && len(f.items) == 0 {
		*i = in.scanPastKeep(toks, end, 1)
		return
	}
	if f.foreach {
		in.bindItem(f)
	}
	in.pushLoop(f)
	*i = end
}

func (in *Interpreter) bindItem(f *loopFrame) {
	item := f.items[f.cursor]
	if f.varName != "" {
		in.Set(f.varName, item)
	}
	if f.valName == "" {
		return
	}
	if f.isMap {
		in.Set(f.valName, types.MapValue(f.raw, item))
	} else {
		in.Set(f.valName, types.FormatNumber(float64(f.cursor+1)))
	}
}

// doKeep closes one loop iteration and decides whether to jump back.
func (in *Interpreter) doKeep(i *int, toks []token.Token) {
	end := lineEnd(toks, *i)
	f, ok := in.popLoop()
	if !ok {
		in.Fatal(types.NewBlockError("'keep' without an open loop"))
		return
	}
	if !f.valid {
		*i = end
		return
	}

	if f.foreach {
		f.cursor++
		if f.cursor < len(f.items) {
			in.bindItem(f)
			in.pushLoop(f)
			*i = f.resume - 1
			return
		}
		*i = end
		return
	}

	f.count++
	if f.limit > 0 && f.count+1 >= f.limit {
		*i = end
		return
	}
	cond := toks[*i+1 : end+1]
	if len(cond) == 1 && cond[0].Kind == token.Loop {
		f.count = 0
		in.pushLoop(f)
		*i = f.resume - 1
		return
	}
	if in.Condition(cond) {
		in.pushLoop(f)
		*i = f.resume - 1
		return
	}
	*i = end
}

// doStop handles "stop loop", "stop all" and "stop run".
func (in *Interpreter) doStop(i *int, toks []token.Token) {
	next := peek(toks, *i+1)
	switch {
	case next.Kind == token.Loop:
		*i++
		in.stopLoop(i, toks)
	case next.Kind == token.Run:
		in.stopRun.Set()
		*i++
	case next.Kind == token.Identifier && strings.EqualFold(next.Text, "all"):
		n := len(in.loops)
		in.loops = nil
		if n == 0 {
			*i++
			return
		}
		*i = in.scanPastKeep(toks, *i+1, n)
	default:
		*i = lineEnd(toks, *i)
	}
}

// stopLoop leaves the innermost loop and resumes after its keep line.
func (in *Interpreter) stopLoop(i *int, toks []token.Token) {
	if _, ok := in.popLoop(); !ok {
		in.Fatal(types.NewBlockError("'stop loop' without an open loop"))
		return
	}
	*i = in.scanPastKeep(toks, *i, 1)
}

// scanPastKeep walks forward from toks[from+1] until depth keep lines have
// closed, counting nested loop openings, and returns the index of the last
// token on the final keep line.
func (in *Interpreter) scanPastKeep(toks []token.Token, from, depth int) int {
	for j := from + 1; j < len(toks) && toks[j].Kind != token.EOF; j++ {
		switch {
		case toks[j].Kind == token.Start && peek(toks, j+1).Kind == token.Loop, toks[j].Kind == token.Sloop:
			depth++
		case toks[j].Kind == token.Keep:
			depth--
			if depth == 0 {
				return lineEnd(toks, j)
			}
		}
	}
	return len(toks) - 1
}

const maxStepDelta = 0.1

// doStep eases a variable towards a target: step X towards <math> [speed Nx].
func (in *Interpreter) doStep(i *int, toks []token.Token) {
	j := *i + 1
	name := in.BracedName(&j, toks)
	j++
	if peek(toks, j).Kind != token.Towards {
		*i = lineEnd(toks, *i)
		return
	}
	j++
	target := in.consumeMath(&j, toks)

	speed := 1.0
	if peek(toks, j+1).Kind == token.Speed {
		j += 2
		rate := peek(toks, j)
		if rate.Kind != token.Rate {
			fmt.Fprintln(in.out, "Speed must use 'Nx' syntax (e.g. 0.5x).")
			*i = lineEnd(toks, *i)
			return
		}
		speed = rate.Num
	}
	*i = j

	now := time.Now()
	dt := 0.016
	switch {
	case in.frameDelta.Load() > 0:
		dt = in.FrameDelta()
	case !in.lastStep.IsZero():
		dt = now.Sub(in.lastStep).Seconds()
	}
	in.lastStep = now
	dt = math.Min(dt, maxStepDelta)

	current := 0.0
	if v, ok := in.Get(name); ok {
		current, _ = types.ParseNumber(v)
	}
	diff := target - current
	if math.Abs(diff) < 0.5 {
		in.Set(name, types.FormatNumber(target))
		return
	}
	t := 1 - math.Exp(-speed*5*dt)
	in.Set(name, types.FormatNumber(current+diff*t))
}

// doReturn stores the value on the rest of the line in ReturnValue and
// unwinds the current invocation.
func (in *Interpreter) doReturn(i *int, toks []token.Token) {
	value := ""
	if next := peek(toks, *i+1); next.Kind != token.EOF && next.Line == toks[*i].Line && next.Kind != token.Ampersand {
		value = in.assignValue(i, toks, *i+1)
		if in.bug.IsSet() {
			return
		}
	}
	in.globals.Set("ReturnValue", value)
	in.returning.Set()
}
