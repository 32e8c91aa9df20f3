// Package runtime implements the script interpreter: a single loop over the
// token stream that resolves blocks from token columns, with a shared global
// store, per-invocation local frames and the bug/halt protocol.
package runtime

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool/v2"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// MaxCallDepth is the deepest allowed function invocation nesting. The top
// level counts as depth 1.
const MaxCallDepth = 100

// VerbRegistry resolves builtin verbs by the token kind that selects them.
type VerbRegistry interface {
	Lookup(k token.Kind) (types.Verb, bool)
}

// Options configures a new interpreter.
type Options struct {
	Stdout  io.Writer
	Stdin   io.Reader
	Args    []string
	Verbs   VerbRegistry
	Dir     string // base directory for includes and env_lib
	Debug   bool
	Heal    bool
	Globals map[string]string // initial global bindings
}

// function is a user definition captured from a "start doing" block.
type function struct {
	name   string
	params []string
	body   []token.Token
}

// shared is the state a run shares with its background runs.
type shared struct {
	globals *Store
	verbs   VerbRegistry

	fnMu  sync.RWMutex
	funcs map[string]*function

	featMu   sync.RWMutex
	features map[string]bool

	out   *syncWriter
	in    *bufio.Reader
	args  []string
	dir   string
	debug bool
	heal  bool
	start time.Time

	srcMu sync.RWMutex
	lines []string

	stopRun *abool.AtomicBool
	bg      sync.WaitGroup

	// frame time supplied by a host loop, in nanoseconds; 0 means wall clock
	frameDelta atomic.Int64
}

// Interpreter executes a token stream. It implements types.Host for the
// builtin verbs.
type Interpreter struct {
	*shared

	ctx    context.Context
	locals []map[string]string
	loops  []*loopFrame
	calls  []types.Frame
	depth  int

	bug    *abool.AtomicBool
	bugMsg string

	returning *abool.AtomicBool
	halt      *types.EngineError
	cond      bool

	pos       token.Token
	traced    int
	lastStep  time.Time
	lastDelta time.Time
}

// New creates an interpreter.
func New(opts Options) *Interpreter {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	var stdin io.Reader = opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	sh := &shared{
		globals:  NewStore(),
		verbs:    opts.Verbs,
		funcs:    make(map[string]*function),
		features: make(map[string]bool),
		out:      &syncWriter{w: out},
		in:       bufio.NewReader(stdin),
		args:     opts.Args,
		dir:      opts.Dir,
		debug:    opts.Debug,
		heal:     opts.Heal,
		start:    time.Now(),
		stopRun:  abool.New(),
	}
	for k, v := range opts.Globals {
		sh.globals.Set(k, v)
	}
	if opts.Debug {
		sh.globals.Set("BigDebug", "true")
	}
	return newInterpreter(sh)
}

func newInterpreter(sh *shared) *Interpreter {
	now := time.Now()
	return &Interpreter{
		shared:    sh,
		ctx:       context.Background(),
		depth:     1,
		bug:       abool.New(),
		returning: abool.New(),
		lastDelta: now,
	}
}

// RunSource lexes src, applies the heal pass when requested, validates the
// tokens and runs them.
func (in *Interpreter) RunSource(ctx context.Context, src string) *types.EngineError {
	toks := in.prepare(src)
	if !Validate(toks, in.out) {
		return types.NewSyntaxError("script failed validation")
	}
	return in.Run(ctx, toks)
}

// RunFile reads and runs path. The file's directory becomes the include
// base unless one was configured.
func (in *Interpreter) RunFile(ctx context.Context, path string) *types.EngineError {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.NewNotFoundError("could not read script '" + path + "': " + err.Error())
	}
	if in.dir == "" {
		in.dir = filepath.Dir(path)
	}
	return in.RunSource(ctx, string(data))
}

func (in *Interpreter) prepare(src string) []token.Token {
	in.srcMu.Lock()
	in.lines = strings.Split(src, "\n")
	in.srcMu.Unlock()
	toks := lexer.Tokenize(src)
	if in.heal || strings.Contains(src, "attach fixer") {
		toks = HealTokens(toks)
	}
	return toks
}

// Run executes toks as the top-level invocation and returns the error that
// halted the run, if any.
func (in *Interpreter) Run(ctx context.Context, toks []token.Token) *types.EngineError {
	if ctx == nil {
		ctx = context.Background()
	}
	in.ctx = ctx
	in.exec(toks)
	in.endInvocation()
	return in.halt
}

// Reset clears the halt, pending bug and stop flags so the interpreter can
// run more source. Globals and functions are kept.
func (in *Interpreter) Reset() {
	in.halt = nil
	in.ClearBug()
	in.returning.UnSet()
	in.stopRun.UnSet()
	in.locals = nil
	in.loops = nil
	in.calls = nil
	in.depth = 1
}

// Wait blocks until every background run started so far has finished.
func (in *Interpreter) Wait() {
	in.bg.Wait()
}

// Output returns the writer script output goes to.
func (in *Interpreter) Output() io.Writer {
	return in.out
}

// exec is the instruction-pointer loop. Handlers leave i on the last token
// they consumed.
func (in *Interpreter) exec(toks []token.Token) {
	for i := 0; i < len(toks); i++ {
		if in.stopped() {
			return
		}
		select {
		case <-in.ctx.Done():
			in.Fatal(types.NewCancelledError(in.ctx.Err()))
			return
		default:
		}
		t := toks[i]
		if t.Kind == token.EOF {
			return
		}
		in.trace(t)
		in.pos = t
		if in.bug.IsSet() && !isBugCheck(toks, i) {
			in.haltOnBug()
			return
		}
		in.dispatch(&i, toks)
	}
}

func (in *Interpreter) stopped() bool {
	return in.halt != nil || in.returning.IsSet() || in.stopRun.IsSet()
}

// endInvocation turns a bug nobody checked into a halt.
func (in *Interpreter) endInvocation() {
	if in.halt == nil && in.bug.IsSet() {
		in.haltOnBug()
	}
}

func isBugCheck(toks []token.Token, i int) bool {
	return i+3 < len(toks) &&
		toks[i].Kind == token.If &&
		toks[i+1].Kind == token.Any &&
		toks[i+2].Kind == token.Bug &&
		toks[i+3].Kind == token.Found
}

func (in *Interpreter) dispatch(i *int, toks []token.Token) {
	t := toks[*i]
	switch t.Kind {
	case token.Return:
		in.doReturn(i, toks)
	case token.If:
		in.doIf(i, toks)
	case token.Or:
		in.doOr(i, toks)
	case token.Start:
		in.doStart(i, toks)
	case token.Sloop:
		in.startLoop(i, toks, *i+1)
	case token.Keep:
		in.doKeep(i, toks)
	case token.Stop:
		in.doStop(i, toks)
	case token.Loops:
		in.stopLoop(i, toks)
	case token.Addrun:
		in.doAddrun(i, toks)
	case token.Run:
		in.doRun(i, toks)
	case token.Step:
		in.doStep(i, toks)
	case token.Use:
		in.doUse(i, toks)
	case token.Set, token.Update, token.Global:
		in.doSet(i, toks)
	case token.On, token.Pin, token.Control:
		*i = skipBlock(toks, *i, t.Column)
	case token.LBracket:
		if next := peek(toks, *i+1); next.Kind == token.Blueprint || next.Kind == token.Style {
			*i = skipBlock(toks, *i, t.Column)
		}
	case token.Ampersand:
	default:
		if in.verbs != nil {
			if verb, ok := in.verbs.Lookup(t.Kind); ok {
				verb(in, i, toks)
				return
			}
		}
		if isAssignment(toks, *i) {
			in.doAssign(i, toks, *i)
			return
		}
		if t.Kind.IsKeyword() {
			*i = lineEnd(toks, *i)
		}
	}
}

// peek returns toks[i], or an EOF token when i is out of range.
func peek(toks []token.Token, i int) token.Token {
	if i < 0 || i >= len(toks) {
		return token.New(token.EOF, 0, 0)
	}
	return toks[i]
}

// lineEnd returns the index of the last token on the line of toks[i].
func lineEnd(toks []token.Token, i int) int {
	line := toks[i].Line
	for i+1 < len(toks) && toks[i+1].Kind != token.EOF && toks[i+1].Line == line {
		i++
	}
	return i
}

// skipBlock skips the rest of the line at i, then every following line
// whose first token sits right of base or starts with '&'. It returns the
// index of the last skipped token.
func skipBlock(toks []token.Token, i, base int) int {
	j := lineEnd(toks, i) + 1
	for j < len(toks) && toks[j].Kind != token.EOF {
		if toks[j].Column <= base && toks[j].Kind != token.Ampersand {
			break
		}
		j = lineEnd(toks, j) + 1
	}
	return j - 1
}

// Exec runs toks in the current scope.
func (in *Interpreter) Exec(toks []token.Token) {
	in.exec(toks)
}

// Enabled reports whether "use <feature>" has been executed.
func (in *Interpreter) Enabled(feature string) bool {
	in.featMu.RLock()
	defer in.featMu.RUnlock()
	return in.features[strings.ToLower(feature)]
}

// Enable turns a feature switch on.
func (in *Interpreter) Enable(feature string) {
	in.featMu.Lock()
	in.features[strings.ToLower(feature)] = true
	in.featMu.Unlock()
}

func (in *Interpreter) Stdout() io.Writer        { return in.out }
func (in *Interpreter) Stdin() *bufio.Reader     { return in.in }
func (in *Interpreter) Args() []string           { return in.args }
func (in *Interpreter) Context() context.Context { return in.ctx }

// Tick is milliseconds since the run started.
func (in *Interpreter) Tick() int64 {
	return time.Since(in.start).Milliseconds()
}

// SetFrameDelta supplies the frame time measured by a host loop. BigDelta
// and step use it instead of wall-clock time until it is set back to zero.
// It is safe to call while a run is in progress.
func (in *Interpreter) SetFrameDelta(d time.Duration) {
	in.frameDelta.Store(int64(d))
}

// FrameDelta is BigDelta in seconds: the supplied frame time, else the time
// since the last get time delta reading. Reading it changes nothing.
func (in *Interpreter) FrameDelta() float64 {
	if d := in.frameDelta.Load(); d > 0 {
		return time.Duration(d).Seconds()
	}
	return time.Since(in.lastDelta).Seconds()
}

// TimeDelta is milliseconds since the previous TimeDelta call. It backs
// get time delta and restarts the clock FrameDelta falls back to.
func (in *Interpreter) TimeDelta() int64 {
	now := time.Now()
	d := now.Sub(in.lastDelta).Milliseconds()
	in.lastDelta = now
	return d
}

// sourceLine returns the trimmed text of a 1-based source line.
func (in *Interpreter) sourceLine(n int) string {
	in.srcMu.RLock()
	defer in.srcMu.RUnlock()
	if n < 1 || n > len(in.lines) {
		return ""
	}
	return strings.TrimSpace(in.lines[n-1])
}

// syncWriter serialises writes from background runs.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var _ types.Host = (*Interpreter)(nil)
