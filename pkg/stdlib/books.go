package stdlib

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// registerBooks registers the file verbs: open, write, add, create,
// delete, copy, move.
func (r *Registry) registerBooks() {
	r.Register(token.Open, bookOpen)
	r.Register(token.Write, bookWrite)
	r.Register(token.Add, bookWrite)
	r.Register(token.Create, bookCreate)
	r.Register(token.Delete, bookDelete)
	r.Register(token.Copy, bookCopy)
	r.Register(token.Move, bookMove)
}

// open "file" & set as {Content}
func bookOpen(h types.Host, i *int, toks []token.Token) {
	name, end := value(h, toks, *i+1)
	if name == "" {
		abandon(i, toks)
		return
	}
	data, err := os.ReadFile(name)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("File Error: Could not read '%s'", name))
	}
	bind(h, i, toks, end, string(data))
}

// write "text" @"file" truncates; add "text" @"file" appends.
func bookWrite(h types.Host, i *int, toks []token.Token) {
	appending := toks[*i].Kind == token.Add
	content, end := text(h, toks, *i+1)
	name, end, ok := atValue(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end

	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appending {
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(name, flag, 0o644)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("Open Error: %v", err))
		return
	}
	defer f.Close()
	if _, err := io.WriteString(f, content); err != nil {
		h.RaiseBug(fmt.Sprintf("Write Error: %v", err))
	}
}

// create folder "Name" @"dir" / create file "Name" @"dir"
func bookCreate(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	kind := peek(toks, j).Kind
	if kind != token.Folder && kind != token.File {
		abandon(i, toks)
		return
	}
	name, end := text(h, toks, j+1)
	dir, end, ok := atValue(h, toks, end+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	path := filepath.Join(dir, name)
	if kind == token.Folder {
		if err := os.MkdirAll(path, 0o755); err != nil {
			h.RaiseBug(fmt.Sprintf("Create Folder Error: %v", err))
		}
		return
	}
	f, err := os.Create(path)
	if err != nil {
		h.RaiseBug(fmt.Sprintf("Create File Error: %v", err))
		return
	}
	f.Close()
}

// delete file @"path" removes a file or a whole directory.
func bookDelete(h types.Host, i *int, toks []token.Token) {
	j := *i + 1
	if peek(toks, j).Kind != token.File {
		abandon(i, toks)
		return
	}
	path, end, ok := atValue(h, toks, j+1)
	if !ok {
		abandon(i, toks)
		return
	}
	*i = end
	if err := os.Remove(path); err != nil {
		if err2 := os.RemoveAll(path); err2 != nil || os.IsNotExist(err) {
			h.RaiseBug(fmt.Sprintf("Delete Error: %v", err))
		}
	}
}

// srcDst parses "file @"src" to @"dst"" starting at toks[j] on "file".
func srcDst(h types.Host, i *int, toks []token.Token, j int) (src, dst string, ok bool) {
	if peek(toks, j).Kind != token.File {
		return "", "", false
	}
	src, end, ok := atValue(h, toks, j+1)
	if !ok || peek(toks, end+1).Kind != token.To {
		return "", "", false
	}
	dst, end, ok = atValue(h, toks, end+2)
	if !ok {
		return "", "", false
	}
	*i = end
	return src, dst, true
}

// copy file @"src" to @"dst"
func bookCopy(h types.Host, i *int, toks []token.Token) {
	src, dst, ok := srcDst(h, i, toks, *i+1)
	if !ok {
		abandon(i, toks)
		return
	}
	if err := copyFile(src, dst); err != nil {
		h.RaiseBug(fmt.Sprintf("Copy Error: %v", err))
	}
}

// move file @"src" to @"dst"
func bookMove(h types.Host, i *int, toks []token.Token) {
	src, dst, ok := srcDst(h, i, toks, *i+1)
	if !ok {
		abandon(i, toks)
		return
	}
	if err := os.Rename(src, dst); err != nil {
		h.RaiseBug(fmt.Sprintf("Move Error: %v", err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
