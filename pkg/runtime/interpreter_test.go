package runtime

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/stdlib"
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

func init() {
	color.NoColor = true
}

func newTestInterpreter(out *bytes.Buffer, opts Options) *Interpreter {
	opts.Stdout = out
	if opts.Stdin == nil {
		opts.Stdin = strings.NewReader("")
	}
	opts.Verbs = stdlib.NewRegistry()
	return New(opts)
}

func runScript(t *testing.T, source string) (string, *Interpreter) {
	t.Helper()

	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	if err := in.RunSource(context.Background(), source); err != nil {
		t.Fatalf("run error: %v\noutput:\n%s", err, out.String())
	}
	return out.String(), in
}

func runScriptExpectError(t *testing.T, source string) (*types.EngineError, string) {
	t.Helper()

	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	err := in.RunSource(context.Background(), source)
	if err == nil {
		t.Fatalf("expected error but got nil\noutput:\n%s", out.String())
	}
	return err, out.String()
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"A + B - C", "6"},
		{"2 + 3 * 4", "14"},
		{"2 ^ 3 * 2", "16"},
		{"10 remainder 4", "2"},
		{"10 remainder 0", "0"},
		{"(2 + 3) * 4", "20"},
		{"sqrt 16 + 1", "5"},
		{"maximum 3 and 7", "7"},
		{"minimum (1 + 1) 9", "2"},
		{"-5 + 2", "-3"},
		{"2 * -3", "-6"},
		{"7 / 2", "3.5"},
		{"abs (0 - 4)", "4"},
		{"cos 0 * 10", "10"},
		{"$A * 2", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, in := runScript(t, "A = 5\nB = 3\nC = 2\nR = "+tt.expr)
			got, _ := in.Get("R")
			if got != tt.want {
				t.Errorf("R = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSolveBrackets(t *testing.T) {
	_, in := runScript(t, "R = S[2 * (3 + 1)]\nQ = solve[10 / 4]")
	if got, _ := in.Get("R"); got != "8" {
		t.Errorf("R = %q, want 8", got)
	}
	if got, _ := in.Get("Q"); got != "2.5" {
		t.Errorf("Q = %q, want 2.5", got)
	}
}

func TestDivisionByZeroIsCheckable(t *testing.T) {
	out, in := runScript(t, `X = 4 / 0
if any bug found
    print "caught"
print "after"`)

	if out != "caught\nafter\n" {
		t.Errorf("output = %q", out)
	}
	if _, ok := in.Get("X"); ok {
		t.Error("X was assigned despite the bug")
	}
	if got, _ := in.Get("BugType"); got != "DivisionByZero" {
		t.Errorf("BugType = %q", got)
	}
	if in.BugPending() {
		t.Error("bug still pending after check")
	}
}

func TestUncheckedBugHalts(t *testing.T) {
	err, out := runScriptExpectError(t, "X = 4 / 0\nprint \"never\"")

	if !err.HasTag(types.TagBugError) {
		t.Errorf("tags = %v, want BugError", err.Tags)
	}
	if err.Message != "DivisionByZero" {
		t.Errorf("message = %q", err.Message)
	}
	for _, line := range strings.Split(out, "\n") {
		if line == "never" {
			t.Errorf("statement after bug ran: %q", out)
		}
	}
	if !strings.Contains(out, `| Trigger:  print "never"`) {
		t.Errorf("diagnostic does not quote the halting statement: %q", out)
	}
	if !strings.Contains(out, "+--- BIG ERROR ---+") || !strings.Contains(out, "| Message:  DivisionByZero") {
		t.Errorf("missing diagnostic block: %q", out)
	}
}

func TestBugAtEndOfScriptHalts(t *testing.T) {
	err, _ := runScriptExpectError(t, "X = 1 / 0")
	if !err.HasTag(types.TagBugError) {
		t.Errorf("tags = %v", err.Tags)
	}
}

func TestIfBlocks(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name: "false skips indented lines",
			source: `X = 1
if X > 5
    print "a"
    print "b"
print "c"`,
			want: "c\n",
		},
		{
			name: "true runs block",
			source: `X = 9
if X > 5
    print "a"
print "c"`,
			want: "a\nc\n",
		},
		{
			name:   "inline ampersand",
			source: "X = 1\nif X = 1 & print \"one\"\nprint \"end\"",
			want:   "one\nend\n",
		},
		{
			name: "or branch",
			source: `X = 1
if X > 5
    print "big"
or
    print "small"`,
			want: "small\n",
		},
		{
			name: "or skipped after match",
			source: `X = 9
if X > 5
    print "big"
or
    print "small"
print "done"`,
			want: "big\ndone\n",
		},
		{
			name: "or if chain",
			source: `X = 3
if X > 5
    print "big"
or if X > 2
    print "mid"
or
    print "small"`,
			want: "mid\n",
		},
		{
			name: "string compare",
			source: `Name = "bob"
if Name = "bob"
    print "hi bob"
if Name != "bob"
    print "not bob"`,
			want: "hi bob\n",
		},
		{
			name: "nested",
			source: `X = 3
if X > 1
    if X > 5
        print "inner"
    print "outer"
print "end"`,
			want: "outer\nend\n",
		},
		{
			name: "continuation line starting with ampersand is skipped",
			source: `X = 0
if X > 1
& print "no"
print "yes"`,
			want: "yes\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := runScript(t, tt.source)
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestCappedLoopRunsTwice(t *testing.T) {
	_, in := runScript(t, `N = 0
start loop .r.3
    N = N + 1
keep
print N`)
	if got, _ := in.Get("N"); got != "2" {
		t.Errorf("N = %q, want 2", got)
	}
}

func TestConditionalKeep(t *testing.T) {
	_, in := runScript(t, `N = 0
start loop
    N = N + 1
keep N < 5`)
	if got, _ := in.Get("N"); got != "5" {
		t.Errorf("N = %q, want 5", got)
	}
}

func TestForeachList(t *testing.T) {
	out, _ := runScript(t, `L = "[a, b, c]"
start loop on {L} as {Item}
    print Item
keep
print "done"`)
	if out != "a\nb\nc\ndone\n" {
		t.Errorf("output = %q", out)
	}
}

func TestForeachMap(t *testing.T) {
	out, _ := runScript(t, `M = "{\"y\": 2, \"x\": 1}"
s.loop on {M} as {K} {V}
    print K & "=" & V
keep`)
	if out != "x=1\ny=2\n" {
		t.Errorf("output = %q", out)
	}
}

func TestForeachEmptySkipsBody(t *testing.T) {
	out, _ := runScript(t, `L = "[]"
start loop on {L} as {Item}
    print "body"
keep
print "after"`)
	if out != "after\n" {
		t.Errorf("output = %q", out)
	}
}

func TestStopLoop(t *testing.T) {
	out, in := runScript(t, `N = 0
start loop
    N = N + 1
    if N = 3
        stop loop
keep
print "out"`)
	if got, _ := in.Get("N"); got != "3" {
		t.Errorf("N = %q, want 3", got)
	}
	if out != "out\n" {
		t.Errorf("output = %q", out)
	}
}

func TestStopLoopSkipsNestedLoops(t *testing.T) {
	_, in := runScript(t, `N = 0
start loop
    N = N + 1
    if N = 2
        loop.s
    start loop .r.2
        M = 1
    keep
keep
print N`)
	if got, _ := in.Get("N"); got != "2" {
		t.Errorf("N = %q, want 2", got)
	}
}

func TestStopRun(t *testing.T) {
	out, _ := runScript(t, "print \"a\"\nstop run\nprint \"b\"")
	if out != "a\n" {
		t.Errorf("output = %q", out)
	}
}

func TestKeepWithoutLoopIsBlockError(t *testing.T) {
	err, _ := runScriptExpectError(t, "print \"x\"\nkeep")
	if !err.HasTag(types.TagBlockError) {
		t.Errorf("tags = %v, want BlockError", err.Tags)
	}
	if err.Line != 2 {
		t.Errorf("line = %d, want 2", err.Line)
	}
}

const diveScript = `start doing Dive(N)
    if N > 1
        M = N - 1
        run Dive(M)
end doing
run Dive(%s)
print "done"`

func TestRecursionDepth(t *testing.T) {
	out, _ := runScript(t, strings.Replace(diveScript, "%s", "99", 1))
	if out != "done\n" {
		t.Errorf("output = %q", out)
	}

	err, out := runScriptExpectError(t, strings.Replace(diveScript, "%s", "101", 1))
	if !err.HasTag(types.TagStackOverflowError) {
		t.Errorf("tags = %v, want StackOverflowError", err.Tags)
	}
	if err.Message != "Stack Overflow! (Recursion Limit: 100)" {
		t.Errorf("message = %q", err.Message)
	}
	if strings.Contains(out, "done") {
		t.Error("run continued after overflow")
	}
	if !strings.Contains(out, "|   > inside doing Dive (Line 4, Col 9)") {
		t.Errorf("call stack missing from diagnostics: %q", out)
	}
	if len(err.Stack) != MaxCallDepth-1 {
		t.Errorf("stack depth = %d, want %d", len(err.Stack), MaxCallDepth-1)
	}
}

func TestFunctionReturnValue(t *testing.T) {
	out, _ := runScript(t, `start doing Total(A, B)
    return A + B
end doing
run Total(2, 3) & set as {Sum}
print Sum`)
	if out != "5\n" {
		t.Errorf("output = %q", out)
	}
}

func TestReturnValueDefaultsToNothing(t *testing.T) {
	out, _ := runScript(t, `start doing Quiet
    X = 1
end doing
ReturnValue = "stale"
run Quiet & set as {R}
print R`)
	if out != "nothing\n" {
		t.Errorf("output = %q", out)
	}
}

func TestGlobalAndLocalScopes(t *testing.T) {
	out, in := runScript(t, `X = "top"
start doing Change()
    print X
    X = "inner"
    Y = "local"
    global Z = "shared"
end doing
run Change()
print X
print Y
print Z`)

	if out != "top\ntop\nY\nshared\n" {
		t.Errorf("output = %q", out)
	}
	if _, ok := in.Globals()["Y"]; ok {
		t.Error("local leaked into global store")
	}
}

func TestAlwaysGlobalNames(t *testing.T) {
	_, in := runScript(t, `start doing Respond()
    Sbig_Response_Body = "ok"
    PageHtml = "<p>"
end doing
run Respond()`)
	g := in.Globals()
	if g["Sbig_Response_Body"] != "ok" || g["PageHtml"] != "<p>" {
		t.Errorf("globals = %v", g)
	}
}

func TestUndefinedFunctionRaisesBug(t *testing.T) {
	err, _ := runScriptExpectError(t, "run Missing()\nprint 1")
	if !err.HasTag(types.TagBugError) {
		t.Errorf("tags = %v", err.Tags)
	}
}

func TestBackgroundRun(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	err := in.RunSource(context.Background(), `start doing Work()
    global Done = "yes"
end doing
run background Work`)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}
	in.Wait()
	if got := in.Globals()["Done"]; got != "yes" {
		t.Errorf("Done = %q", got)
	}
}

func TestInterpolate(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	in.Set("Name", "Bob")
	in.Set("User", `{"name":"Ann","age":3}`)

	tests := []struct {
		input string
		want  string
	}{
		{"Hi $Name!", "Hi Bob!"},
		{"Hi $Missing!", "Hi $Missing!"},
		{"${Name}by", "Bobby"},
		{"${Nope}", "${Nope}"},
		{`cost \$5`, "cost $5"},
		{"$User.name is $User.age", "Ann is 3"},
		{"end $Name.", "end Bob."},
		{"lone $ sign", "lone $ sign"},
		{"$name", "$name"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := in.Interpolate(tt.input); got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestInterpolatedStringUnsetNameUnchanged(t *testing.T) {
	out, _ := runScript(t, `print "Hi $Name!"`)
	if out != "Hi $Name!\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLowercaseFallback(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	in.Set("count", "4")
	if v, ok := in.Get("Count"); !ok || v != "4" {
		t.Errorf("Get(Count) = %q, %v", v, ok)
	}
}

func TestWarpBuilder(t *testing.T) {
	_, in := runScript(t, "Name = \"Bob\"\nMsg = w(Hello   $Name!)")
	if got, _ := in.Get("Msg"); got != "Hello Bob!" {
		t.Errorf("Msg = %q", got)
	}
}

func TestWarpBuilderNonASCII(t *testing.T) {
	_, in := runScript(t, "Msg = w(wörld x)")
	if got, _ := in.Get("Msg"); got != "wörld x" {
		t.Errorf("Msg = %q", got)
	}
}

func TestLenValue(t *testing.T) {
	_, in := runScript(t, "Name = \"hello\"\nN = len Name\nM = len {Name} + 1")
	if got, _ := in.Get("N"); got != "5" {
		t.Errorf("N = %q", got)
	}
	if got, _ := in.Get("M"); got != "6" {
		t.Errorf("M = %q", got)
	}
}

func TestObjectFieldAssignment(t *testing.T) {
	_, in := runScript(t, "User = \"{\\\"name\\\": \\\"Ann\\\"}\"\nUser.name = \"Bo\"")
	if got, _ := in.Get("User"); got != `{"name":"Bo"}` {
		t.Errorf("User = %q", got)
	}
	if got, _ := in.Get("User.name"); got != "Bo" {
		t.Errorf("User.name = %q", got)
	}
}

func TestStep(t *testing.T) {
	out, in := runScript(t, "X = 0\nstep X towards 100 speed 2")
	if !strings.Contains(out, "Speed must use 'Nx' syntax (e.g. 0.5x).") {
		t.Errorf("output = %q", out)
	}
	if got, _ := in.Get("X"); got != "0" {
		t.Errorf("X = %q after rejected step", got)
	}

	_, in = runScript(t, "X = 0\nstep X towards 50 + 50 speed 2x")
	got, _ := in.Get("X")
	x, ok := types.ParseNumber(got)
	if !ok || x <= 0 || x >= 100 {
		t.Errorf("X = %q, want strictly between 0 and 100", got)
	}

	_, in = runScript(t, "X = 99.8\nstep X towards 100")
	if got, _ := in.Get("X"); got != "100" {
		t.Errorf("X = %q, want snap to 100", got)
	}
}

func TestFrameDelta(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	in.SetFrameDelta(100 * time.Millisecond)
	src := "X = 0\nstep X towards 100 speed 1x\nMs = bigdelta * 1000"
	if err := in.RunSource(context.Background(), src); err != nil {
		t.Fatalf("run error: %v\noutput:\n%s", err, out.String())
	}
	if got, _ := in.Get("BigDelta"); got != "0.1" {
		t.Errorf("BigDelta = %q, want 0.1", got)
	}
	if got, _ := in.Get("Ms"); got != "100" {
		t.Errorf("Ms = %q, want 100", got)
	}
	got, _ := in.Get("X")
	x, _ := types.ParseNumber(got)
	want := 100 * (1 - math.Exp(-0.5))
	if math.Abs(x-want) > 0.01 {
		t.Errorf("X = %q, want %.4f", got, want)
	}
}

func TestBigDeltaReadIsSideEffectFree(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	time.Sleep(20 * time.Millisecond)

	first, _ := in.Get("BigDelta")
	second, _ := in.Get("bigdelta")
	a, _ := types.ParseNumber(first)
	b, _ := types.ParseNumber(second)
	if a < 0.02 || b < a {
		t.Errorf("BigDelta reads = %s, %s; want seconds that keep growing", first, second)
	}
}

func TestHealClosesLoops(t *testing.T) {
	src := `N = 0
start loop .r.3
    N = N + 1
print N`
	toks := HealTokens(lexer.Tokenize(src))
	keeps := 0
	for _, tok := range toks {
		if tok.Kind == token.Keep {
			keeps++
		}
	}
	if keeps != 1 {
		t.Fatalf("heal inserted %d keeps, want 1", keeps)
	}

	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{Heal: true})
	if err := in.RunSource(context.Background(), src); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "2\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestHealClosesAtEOF(t *testing.T) {
	toks := HealTokens(lexer.Tokenize("start loop\n    X = 1\n    start loop\n        Y = 2"))
	if toks[len(toks)-1].Kind != token.EOF {
		t.Fatal("last token is not EOF")
	}
	keeps := 0
	for _, tok := range toks {
		if tok.Kind == token.Keep {
			keeps++
		}
	}
	if keeps != 2 {
		t.Errorf("keeps = %d, want 2", keeps)
	}
}

func TestHealLeavesWrittenKeep(t *testing.T) {
	src := "start loop .r.2\n    X = 1\nkeep\nprint X"
	before := lexer.Tokenize(src)
	after := HealTokens(before)
	if len(after) != len(before) {
		t.Errorf("heal changed a closed loop: %d -> %d tokens", len(before), len(after))
	}
}

func TestValidateRejectsVal(t *testing.T) {
	err, out := runScriptExpectError(t, "Val = 3\nprint Val")
	if !err.HasTag(types.TagSyntaxError) {
		t.Errorf("tags = %v", err.Tags)
	}
	for _, want := range []string{
		"Big Error: 'Val' is a reserved internal keyword!",
		"  > Line 1: Do not use 'Val' as a variable name.",
		"  > Fix: Rename it to 'Value', 'Num', or 'MyVal'.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := in.RunSource(ctx, "start loop\n    X = 1\nkeep")
	if err == nil || !err.HasTag(types.TagCancelledError) {
		t.Fatalf("err = %v, want CancelledError", err)
	}
}

func TestCheckAt(t *testing.T) {
	tests := []struct {
		src  string
		want bool
		msg  string
	}{
		{`write "x" @"f.txt"`, true, ""},
		{`write "x"@"f.txt"`, false, "Missing space before '@'"},
		{`write "x" @ "f.txt"`, false, "attached directly to '@'"},
		{`write "é" @"f.txt"`, true, ""},
		{`write "é"@"f.txt"`, false, "Missing space before '@'"},
		{`write s @"f.txt"`, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			var out bytes.Buffer
			in := newTestInterpreter(&out, Options{})
			toks := lexer.Tokenize(tt.src)
			at := -1
			for k, tok := range toks {
				if tok.Kind == token.At {
					at = k
				}
			}
			if got := in.CheckAt(at, toks); got != tt.want {
				t.Errorf("CheckAt = %v, want %v", got, tt.want)
			}
			if tt.msg != "" && !strings.Contains(out.String(), tt.msg) {
				t.Errorf("output = %q, want %q", out.String(), tt.msg)
			}
		})
	}
}

func TestSetAsList(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	toks := lexer.Tokenize(`x & set as list {L}`)
	i := 0
	in.SetAs(&i, toks, []string{"a", `b"c`})
	if got, _ := in.Get("L"); got != `["a","b\"c"]` {
		t.Errorf("L = %q", got)
	}
	if toks[i].Kind != token.RBrace {
		t.Errorf("i left on %v, want closing brace", toks[i])
	}

	toks = lexer.Tokenize(`x & set as {A} B {C}`)
	i = 0
	in.SetAs(&i, toks, []string{"1", "2"})
	g := in.Globals()
	if g["A"] != "1" || g["B"] != "2" || g["C"] != types.Nothing {
		t.Errorf("globals = %v", g)
	}
}

func TestIncludeRunsInCurrentScope(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.big"), []byte("Shared = \"from lib\""), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{Dir: dir})
	if err := in.RunSource(context.Background(), "use \"lib.big\"\nprint Shared"); err != nil {
		t.Fatalf("run error: %v", err)
	}
	if out.String() != "from lib\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestResetAllowsFurtherRuns(t *testing.T) {
	var out bytes.Buffer
	in := newTestInterpreter(&out, Options{})
	if err := in.RunSource(context.Background(), "start doing Twice(N)\n    return N * 2\nend doing\nX = 1 / 0"); err == nil {
		t.Fatal("expected the unchecked bug to halt")
	}

	in.Reset()
	out.Reset()
	if err := in.RunSource(context.Background(), "run Twice(4) & set as {Y}\nprint Y\nstop run\nprint \"hidden\""); err != nil {
		t.Fatalf("run after reset: %v", err)
	}
	in.Reset()
	if err := in.RunSource(context.Background(), `print "again"`); err != nil {
		t.Fatalf("run after stop: %v", err)
	}
	if out.String() != "8\nagain\n" {
		t.Errorf("output = %q", out.String())
	}
}
