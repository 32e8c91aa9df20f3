package stdlib

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerText registers text verbs: split, replace, bmath.
func (r *Registry) registerText() {
	r.Register(token.Split, textSplit)
	r.Register(token.Replace, textReplace)
	r.Register(token.Bmath, textMatch)
}

// textSplit splits a value: split X by D & set as {A} {B}. Parts are
// trimmed.
func textSplit(h types.Host, i *int, toks []token.Token) {
	src, end := value(h, toks, *i+1)
	if peek(toks, end+1).Kind != token.By {
		abandon(i, toks)
		return
	}
	delim, end := value(h, toks, end+2)
	var parts []string
	if delim == "" {
		parts = []string{strings.TrimSpace(src)}
	} else {
		parts = strings.Split(src, delim)
		for k, p := range parts {
			parts[k] = strings.TrimSpace(p)
		}
	}
	bind(h, i, toks, end, parts...)
}

// textReplace rewrites a variable or a file in place:
// replace A with B @{Var} or replace A with B @"file".
func textReplace(h types.Host, i *int, toks []token.Token) {
	old, end := text(h, toks, *i+1)
	if peek(toks, end+1).Kind != token.With {
		abandon(i, toks)
		return
	}
	repl, end := text(h, toks, end+2)
	at := end + 1
	if peek(toks, at).Kind != token.At || !h.CheckAt(at, toks) {
		abandon(i, toks)
		return
	}
	j := at + 1
	isVar := braced(toks, j)
	target := h.BracedName(&j, toks)
	*i = j

	if isVar {
		h.Set(target, strings.ReplaceAll(varOr(h, target, ""), old, repl))
		return
	}
	if t := toks[at+1]; t.Kind == token.String {
		target = h.Interpolate(t.Text)
	}
	content, err := os.ReadFile(target)
	if err != nil {
		h.RaiseBug("File Error: Could not read file for replace")
		return
	}
	if err := os.WriteFile(target, []byte(strings.ReplaceAll(string(content), old, repl)), 0o644); err != nil {
		h.RaiseBug(fmt.Sprintf("File Error: %v", err))
	}
}

// textMatch tests a regular expression: bmath "text" @"pattern" & set as
// {Matched}. An invalid pattern never matches.
func textMatch(h types.Host, i *int, toks []token.Token) {
	subject, end := value(h, toks, *i+1)
	pattern, end, ok := atValue(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	matched := false
	if re, err := regexp.Compile(pattern); err == nil {
		matched = re.MatchString(subject)
	}
	bind(h, i, toks, end, boolText(matched))
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))

// renderMarkdown converts markdown source to HTML.
func renderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
