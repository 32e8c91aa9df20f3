package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/runtime"
	"github.com/lemonberrylabs/bigrun/pkg/stdlib"
	"github.com/lemonberrylabs/bigrun/pkg/token"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return repl(newSession(os.Stdout, os.Stdin, debug))
	},
}

func init() {
	replCmd.Flags().Bool("debug", false, "Trace execution and log variable changes")
}

// session is one interactive interpreter. Globals and functions survive
// between entries, halts do not.
type session struct {
	interp *runtime.Interpreter
}

func newSession(out io.Writer, in io.Reader, debug bool) *session {
	return &session{interp: runtime.New(runtime.Options{
		Stdout: out,
		Stdin:  in,
		Verbs:  stdlib.NewRegistry(),
		Debug:  debug,
	})}
}

func (s *session) eval(src string) {
	if strings.TrimSpace(src) == "" {
		return
	}
	s.interp.RunSource(context.Background(), src)
	s.interp.Wait()
	s.interp.Reset()
}

// needsMore reports whether an entry opens a block that is not finished
// yet. Blocks end with an empty line.
func needsMore(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	if strings.TrimSpace(lines[len(lines)-1]) == "" {
		return false
	}
	toks := lexer.Tokenize(lines[0])
	if len(toks) == 0 {
		return false
	}
	switch toks[0].Kind {
	case token.If, token.Or, token.Start:
		return true
	}
	return false
}

func completeKeyword(line string) []string {
	start := strings.LastIndexAny(line, " \t") + 1
	prefix := strings.ToLower(line[start:])
	if prefix == "" {
		return nil
	}
	var out []string
	for _, k := range token.Keywords() {
		if strings.HasPrefix(k, prefix) {
			out = append(out, line[:start]+k)
		}
	}
	sort.Strings(out)
	return out
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bigrun_history")
}

func repl(s *session) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeKeyword)

	hist := historyPath()
	if f, err := os.Open(hist); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if hist == "" {
			return
		}
		if f, err := os.Create(hist); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("bigrun %s. Blocks end with an empty line; type exit to leave.\n", version)
	var block []string
	for {
		prompt := "big> "
		if len(block) > 0 {
			prompt = "...> "
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			block = nil
			continue
		}
		if err != nil {
			return nil
		}
		if len(block) == 0 && strings.TrimSpace(input) == "exit" {
			return nil
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		block = append(block, input)
		if needsMore(block) {
			continue
		}
		s.eval(strings.Join(block, "\n"))
		block = nil
	}
}
