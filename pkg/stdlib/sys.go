package stdlib

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/lemonberrylabs/bigrun/pkg/lexer"
	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// Names of the globals a request-bound run reads and writes.
const (
	RequestBody    = "RequestBody"
	RequestPath    = "RequestPath"
	RequestMethod  = "RequestMethod"
	ResponseBody   = "Sbig_Response_Body"
	ResponseFile   = "Sbig_Response_File"
	ResponseStatus = "Sbig_Response_Status"
	ResponseHeader = "Sbig_Response_Headers"
)

// EnvLibDir holds the environments loaded by "attach name".
var EnvLibDir = "env_lib"

// registerSys registers console, process and request verbs:
// print, wait, ask, take, reset, command, attach, build, reply.
func (r *Registry) registerSys() {
	r.Register(token.Print, sysPrint)
	r.Register(token.Wait, sysWait)
	r.Register(token.Ask, sysAsk)
	r.Register(token.Take, sysTake)
	r.Register(token.Reset, sysReset)
	r.Register(token.Command, sysCommand)
	r.Register(token.Attach, sysAttach)
	r.Register(token.Build, sysBuild)
	r.Register(token.Reply, sysReply)
}

// sysPrint writes values joined by '&' followed by a newline. "print
// update" rewrites the current console line instead.
func sysPrint(h types.Host, i *int, toks []token.Token) {
	start := *i
	j := start + 1
	update := false
	if peek(toks, j).Kind == token.Update && onLine(toks, start, j) {
		update = true
		*i = j
		j++
	}

	var sb strings.Builder
	for onLine(toks, start, j) && peek(toks, j).Kind != token.Ampersand {
		v, end := value(h, toks, j)
		sb.WriteString(v)
		*i = end
		if peek(toks, end+1).Kind == token.Ampersand && onLine(toks, start, end+1) && isValueStart(peek(toks, end+2)) {
			j = end + 2
			continue
		}
		break
	}

	if update {
		fmt.Fprint(h.Stdout(), "\r"+sb.String())
		return
	}
	fmt.Fprintln(h.Stdout(), sb.String())
}

// sysWait sleeps for "wait N s". The sleep ends early when the run is
// cancelled.
func sysWait(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	n, ok := types.ParseNumber(h.TokenValue(peek(toks, j)))
	if !ok || !onLine(toks, *i, j) {
		return
	}
	*i = j
	unit := peek(toks, j+1)
	if !onLine(toks, j, j+1) || (unit.Kind != token.Solve && !(unit.Kind == token.Identifier && unit.Text == "s")) {
		return
	}
	*i = j + 1
	sleep(h.Context(), time.Duration(n*float64(time.Second)))
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// sysAsk reads one line from the input: ask input ["prompt"] & set as {V}.
func sysAsk(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if peek(toks, j).Kind != token.Input {
		abandon(i, toks)
		return
	}
	*i = j
	if p := peek(toks, j+1); p.Kind == token.String && onLine(toks, j, j+1) {
		fmt.Fprint(h.Stdout(), h.Interpolate(p.Text))
		*i = j + 1
	}
	line, _ := h.Stdin().ReadString('\n')
	h.SetAs(i, toks, []string{strings.TrimSpace(line)})
}

// sysTake binds the request body of a request-bound run.
func sysTake(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if peek(toks, j).Kind != token.Body {
		abandon(i, toks)
		return
	}
	bind(h, i, toks, j, varOr(h, RequestBody, ""))
}

// sysReset copies a value into a variable ("reset X @Name") or looks a key
// up in the query string of the request path ("reset "key" & set as {V}").
func sysReset(h types.Host, i *int, toks []token.Token) {
	src, end := text(h, toks, *i+1)
	*i = end
	if peek(toks, end+1).Kind == token.At && onLine(toks, end, end+1) {
		j := end + 2
		name := h.BracedName(&j, toks)
		if name != "" {
			h.Set(name, src)
		}
		*i = j
		return
	}
	h.SetAs(i, toks, []string{queryValue(varOr(h, RequestPath, ""), src)})
}

// queryValue returns the value of key in the query part of path, with '+'
// decoded as a space, or "nothing".
func queryValue(path, key string) string {
	q := strings.IndexByte(path, '?')
	if q < 0 {
		return types.Nothing
	}
	for _, pair := range strings.Split(path[q+1:], "&") {
		k, v, _ := strings.Cut(pair, "=")
		if k == key {
			return strings.ReplaceAll(v, "+", " ")
		}
	}
	return types.Nothing
}

// sysCommand binds the script's command-line arguments.
func sysCommand(h types.Host, i *int, toks []token.Token) {
	h.SetAs(i, toks, h.Args())
}

// sysAttach runs env_lib/<name>.bigenv in the current scope. "attach fixer"
// only switches on the heal pass, which happens before the run.
func sysAttach(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if !onLine(toks, *i, j) {
		return
	}
	*i = j
	name := h.RawName(toks[j])
	if name == "" || strings.EqualFold(name, "fixer") {
		return
	}
	data, err := os.ReadFile(filepath.Join(EnvLibDir, name+".bigenv"))
	if err != nil {
		return
	}
	h.Exec(lexer.Tokenize(string(data)))
}

// sysBuild runs a shell command: build task "cmd" & set as {Out}.
func sysBuild(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if peek(toks, j).Kind != token.Task {
		abandon(i, toks)
		return
	}
	cmdline, end := text(h, toks, j+1)
	var stdout bytes.Buffer
	cmd := exec.CommandContext(h.Context(), "sh", "-c", cmdline)
	cmd.Stdout = &stdout
	result := ""
	if err := cmd.Run(); err != nil && stdout.Len() == 0 {
		result = fmt.Sprintf("Build Task Error: %v", err)
	} else {
		result = strings.TrimSpace(stdout.String())
	}
	bind(h, i, toks, end, result)
}

// sysReply shapes the response of a request-bound run:
// reply with X, reply point N, reply note K as V, reply file F.
func sysReply(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	switch peek(toks, j).Kind {
	case token.With:
		t := peek(toks, j+1)
		var body string
		if t.Kind == token.Identifier {
			body = varOr(h, t.Text, "")
			*i = j + 1
		} else {
			body, *i = text(h, toks, j+1)
		}
		h.SetGlobal(ResponseBody, body)
		h.SetGlobal(ResponseFile, "")
	case token.Point:
		status := h.TokenValue(peek(toks, j+1))
		if _, ok := types.ParseNumber(status); !ok {
			status = "200"
		}
		h.SetGlobal(ResponseStatus, status)
		*i = j + 1
	case token.Note:
		key := h.TokenValue(peek(toks, j+1))
		if peek(toks, j+2).Kind != token.As {
			abandon(i, toks)
			return
		}
		val := h.TokenValue(peek(toks, j+3))
		headers := varOr(h, ResponseHeader, "{}")
		if updated, ok := types.SetObjectField(headers, key, val); ok {
			h.SetGlobal(ResponseHeader, updated)
		} else {
			h.SetGlobal(ResponseHeader, types.EncodeJSON(map[string]string{key: val}))
		}
		*i = j + 3
	case token.File:
		file, end := text(h, toks, j+1)
		h.SetGlobal(ResponseFile, file)
		h.SetGlobal(ResponseBody, "")
		*i = end
	default:
		abandon(i, toks)
	}
}
