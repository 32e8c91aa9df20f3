package types

import (
	"bufio"
	"context"
	"io"

	"github.com/lemonberrylabs/bigrun/pkg/token"
)

// Host is the view of a running interpreter that builtin verbs work against.
//
// Verbs receive the instruction pointer by reference. On entry it points at
// the token that selected the verb; on return it must point at the last
// token the verb consumed. The interpreter advances past it.
type Host interface {
	// Variables
	Get(name string) (string, bool)
	Set(name, value string)
	SetGlobal(name, value string)

	// Values
	Interpolate(text string) string
	Evaluate(toks []token.Token) float64
	ComplexValue(i *int, toks []token.Token) string
	TokenValue(t token.Token) string
	RawName(t token.Token) string
	BracedName(i *int, toks []token.Token) string

	// SetAs consumes an optional "& set as {A} {B}" or "& set as list {L}"
	// tail and binds results to the named variables.
	SetAs(i *int, toks []token.Token, results []string)

	// Bug state
	RaiseBug(msg string)
	ClearBug()
	Fatal(err *EngineError)

	// CheckAt validates the spacing around the '@' at toks[i]. On failure it
	// reports the problem and the verb must abandon the statement.
	CheckAt(i int, toks []token.Token) bool

	// Enabled reports whether a "use <feature>" switch is active.
	Enabled(feature string) bool

	Stdout() io.Writer
	Stdin() *bufio.Reader
	Args() []string
	Context() context.Context

	// Tick is milliseconds since the run started; TimeDelta is the last
	// frame delta in milliseconds.
	Tick() int64
	TimeDelta() int64

	// Exec runs toks in the current scope.
	Exec(toks []token.Token)
}

// Verb is a builtin statement handler.
type Verb func(h Host, i *int, toks []token.Token)
