package runtime

import (
	"fmt"
	"io"

	"github.com/lemonberrylabs/bigrun/pkg/token"
)

// reserved identifiers may not be used as variable names.
var reserved = map[string][]string{
	"Val": {"Value", "Num", "MyVal"},
}

// Validate checks toks for reserved identifiers and writes a report for the
// first offence. It returns false when the script must not run.
func Validate(toks []token.Token, w io.Writer) bool {
	for _, t := range toks {
		if t.Kind != token.Identifier {
			continue
		}
		alt, ok := reserved[t.Text]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "Big Error: '%s' is a reserved internal keyword!\n", t.Text)
		fmt.Fprintf(w, "  > Line %d: Do not use '%s' as a variable name.\n", t.Line, t.Text)
		fmt.Fprintf(w, "  > Fix: Rename it to '%s', '%s', or '%s'.\n", alt[0], alt[1], alt[2])
		return false
	}
	return true
}
