package stdlib

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-python/gpython/parser"
	"github.com/go-python/gpython/py"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

const pyLocked = "Big Error: pyBig is locked! Use 'use pyBig' first."

// PythonBinary is the interpreter used for python3 start ... python3 end
// blocks.
var PythonBinary = "python3"

func (r *Registry) registerPython() {
	r.Register(token.ForeignCode, pythonBlock)
}

// checkPython parses code without running it.
func checkPython(code string) error {
	_, err := parser.Parse(strings.NewReader(code), "<pybig>", py.ExecMode)
	return err
}

// pythonBlock writes the block to a temp file and runs it with python3.
// Output goes to stdout; stderr is printed as a PyBig error. Without a
// python3 binary the block is only syntax checked.
func pythonBlock(h types.Host, i *int, toks []token.Token) {
	code := toks[*i].Text
	if !h.Enabled("pybig") {
		fmt.Fprintln(h.Stdout(), pyLocked)
		return
	}
	if _, err := exec.LookPath(PythonBinary); err != nil {
		if perr := checkPython(code); perr != nil {
			h.RaiseBug(fmt.Sprintf("PyBig Error: %v", perr))
			return
		}
		h.RaiseBug("PyBig Error: python3 was not found")
		return
	}

	f, err := os.CreateTemp("", "pybig-*.py")
	if err != nil {
		h.RaiseBug(fmt.Sprintf("PyBig Error: %v", err))
		return
	}
	defer os.Remove(f.Name())
	_, err = f.WriteString(code)
	f.Close()
	if err != nil {
		h.RaiseBug(fmt.Sprintf("PyBig Error: %v", err))
		return
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(h.Context(), PythonBinary, f.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if stdout.Len() > 0 {
		fmt.Fprint(h.Stdout(), stdout.String())
	}
	if stderr.Len() > 0 {
		fmt.Fprintf(h.Stdout(), "PyBig Error: %s", stderr.String())
	}
	if runErr != nil {
		h.RaiseBug(fmt.Sprintf("PyBig Error: %v", runErr))
	}
}
