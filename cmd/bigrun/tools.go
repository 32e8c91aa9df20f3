package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/token"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens <file.big>",
	Short: "Print the token stream of a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}
		printTokens(cmd.OutOrStdout(), lexer.Tokenize(string(data)))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <file.big>",
	Short: "Summarize the structure of a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Big Error: Could not open '%s'\n", args[0])
			return nil
		}
		analyze(string(data)).print(cmd.OutOrStdout(), args[0])
		return nil
	},
}

var whatisCmd = &cobra.Command{
	Use:   "whatis <keyword>",
	Short: "Explain a keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		whatis(cmd.OutOrStdout(), loadTextbook(), args[0])
	},
}

func printTokens(w io.Writer, toks []token.Token) {
	for _, t := range toks {
		fmt.Fprintf(w, "%4d:%-4d %s\n", t.Line, t.Column, t)
	}
}

// analysis is the summary printed by "bigrun show".
type analysis struct {
	Lines     int
	Branches  int // if and or blocks
	Loops     int
	Functions []string
	Math      int
}

func analyze(src string) analysis {
	a := analysis{Lines: len(strings.Split(strings.TrimRight(src, "\n"), "\n"))}
	if src == "" {
		a.Lines = 0
	}
	toks := lexer.Tokenize(src)
	for i, t := range toks {
		switch t.Kind {
		case token.If, token.Or:
			a.Branches++
		case token.Start:
			if i+1 < len(toks) && toks[i+1].Kind == token.Loop {
				a.Loops++
			}
		case token.Doing:
			if i+1 < len(toks) && toks[i+1].Kind == token.Identifier {
				a.Functions = append(a.Functions, toks[i+1].Text)
			}
		case token.Plus, token.Minus, token.Star, token.Slash:
			a.Math++
		}
	}
	return a
}

var (
	headColor  = color.New(color.FgCyan, color.Bold)
	fieldColor = color.New(color.FgYellow)
)

func (a analysis) print(w io.Writer, name string) {
	headColor.Fprintf(w, "--- Analysis for: %s ---\n", name)
	fieldColor.Fprint(w, "Lines:   ")
	fmt.Fprintf(w, "%d\n", a.Lines)
	fieldColor.Fprint(w, "Logic:   ")
	fmt.Fprintf(w, "%d if/or blocks\n", a.Branches)
	fieldColor.Fprint(w, "Loops:   ")
	fmt.Fprintf(w, "%d loop blocks\n", a.Loops)
	fieldColor.Fprint(w, "Doing:   ")
	fmt.Fprintf(w, "%d defined blocks: [%s]\n", len(a.Functions), strings.Join(a.Functions, ", "))
	fieldColor.Fprint(w, "Math:    ")
	fmt.Fprintf(w, "%d math operations\n", a.Math)
	headColor.Fprintln(w, "----------------------------------")
}

// entry is one textbook page.
type entry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

//go:embed textbook.json
var builtinTextbook []byte

// textbookOverride is read relative to the working directory and replaces
// builtin entries of the same keyword.
var textbookOverride = filepath.Join("assets", "textbook.json")

func loadTextbook() map[string]entry {
	book := make(map[string]entry)
	_ = json.Unmarshal(builtinTextbook, &book)
	if data, err := os.ReadFile(textbookOverride); err == nil {
		var extra map[string]entry
		if json.Unmarshal(data, &extra) == nil {
			for k, v := range extra {
				book[strings.ToLower(k)] = v
			}
		}
	}
	return book
}

func whatis(w io.Writer, book map[string]entry, keyword string) {
	lookup := strings.ToLower(keyword)
	if e, ok := book[lookup]; ok {
		title := e.Title
		if title == "" {
			title = "Untitled"
		}
		headColor.Fprintf(w, "+--- Textbook: %s ---+\n", title)
		fmt.Fprintf(w, "| Description: %s\n", orDefault(e.Description, "No description."))
		fmt.Fprintf(w, "| Example:     %s\n", orDefault(e.Example, "No example provided."))
		headColor.Fprintln(w, "+----------------------------+")
		return
	}

	headColor.Fprintf(w, "+--- BigHelp: %s ---+\n", keyword)
	fmt.Fprintln(w, "| I don't have a textbook entry for that keyword yet.")
	if _, ok := token.Lookup(lookup); ok {
		fmt.Fprintf(w, "| '%s' is a reserved keyword.\n", lookup)
	}
	if s := suggest(book, lookup); len(s) > 0 {
		fmt.Fprintf(w, "| Did you mean: %s?\n", strings.Join(s, ", "))
	}
	headColor.Fprintln(w, "+----------------------------+")
}

// suggest ranks textbook keywords by edit distance to word.
func suggest(book map[string]entry, word string) []string {
	keys := make([]string, 0, len(book))
	for k := range book {
		keys = append(keys, k)
	}
	ranks := fuzzy.RankFindFold(word, keys)
	if len(ranks) == 0 {
		// word may be longer than every key: match the other way round.
		for _, k := range keys {
			if fuzzy.MatchFold(k, word) {
				ranks = append(ranks, fuzzy.Rank{Target: k, Distance: fuzzy.LevenshteinDistance(k, word)})
			}
		}
	}
	sort.Sort(ranks)
	var out []string
	for i := 0; i < len(ranks) && i < 3; i++ {
		out = append(out, ranks[i].Target)
	}
	return out
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
