package runtime

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

var (
	bannerColor = color.New(color.FgRed, color.Bold)
	labelColor  = color.New(color.FgYellow)
	stackColor  = color.New(color.FgCyan)
)

// RaiseBug records a recoverable fault. The run halts at the next statement
// unless the script checks it with "if any bug found".
func (in *Interpreter) RaiseBug(msg string) {
	in.bugMsg = msg
	in.bug.Set()
	in.globals.Set("BugType", msg)
}

// ClearBug drops the pending bug.
func (in *Interpreter) ClearBug() {
	in.bug.UnSet()
	in.bugMsg = ""
}

// BugPending reports whether a bug is waiting to be checked.
func (in *Interpreter) BugPending() bool {
	return in.bug.IsSet()
}

// Fatal halts the run with err at the current position.
func (in *Interpreter) Fatal(err *types.EngineError) {
	if in.halt != nil {
		return
	}
	in.halt = in.annotate(err)
	Report(in.out, in.halt)
}

func (in *Interpreter) haltOnBug() {
	msg := in.bugMsg
	if msg == "" {
		msg = "unknown bug"
	}
	in.Fatal(types.NewBugError(msg))
}

// annotate attaches the current position, the trigger line and the call
// stack to err.
func (in *Interpreter) annotate(err *types.EngineError) *types.EngineError {
	if err.Line == 0 {
		err.At(in.pos.Line, in.pos.Column)
	}
	if err.Trigger == "" {
		err.Trigger = in.sourceLine(err.Line)
	}
	if err.Stack == nil {
		for k := len(in.calls) - 1; k >= 0; k-- {
			f := in.calls[k]
			f.Source = in.sourceLine(f.Line)
			err.Stack = append(err.Stack, f)
		}
	}
	return err
}

// Report writes the diagnostic block for a halted run.
func Report(w io.Writer, err *types.EngineError) {
	bannerColor.Fprintln(w, "+--- BIG ERROR ---+")
	labelColor.Fprint(w, "| Message:  ")
	fmt.Fprintln(w, err.Message)
	labelColor.Fprint(w, "| Location: ")
	fmt.Fprintf(w, "Line %d, Column %d\n", err.Line, err.Column)
	labelColor.Fprint(w, "| Trigger:  ")
	fmt.Fprintln(w, err.Trigger)
	if len(err.Stack) > 0 {
		labelColor.Fprintln(w, "| Call Stack (Recent calls first):")
		for _, f := range err.Stack {
			stackColor.Fprintf(w, "|   > inside doing %s (Line %d, Col %d)\n", f.Name, f.Line, f.Column)
			fmt.Fprintf(w, "|     Source: %s\n", f.Source)
		}
	}
	bannerColor.Fprintln(w, "+------------------+")
}

// trace logs each new source line when debugging is on.
func (in *Interpreter) trace(t token.Token) {
	if t.Line == in.traced || !in.debugging() {
		return
	}
	in.traced = t.Line
	log.Printf("[TRACE] Line %d: %s", t.Line, in.sourceLine(t.Line))
}
